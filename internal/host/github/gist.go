package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxErrorBody = 512

// GistFile is one file of a gist as sent and returned by the API.
type GistFile struct {
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
	RawURL   string `json:"raw_url,omitempty"`
}

// Gist is the subset of the gist payload gtipsync uses.
type Gist struct {
	ID      string              `json:"id"`
	HTMLURL string              `json:"html_url"`
	Files   map[string]GistFile `json:"files"`
}

type gistPatch struct {
	Files map[string]gistContent `json:"files"`
}

type gistContent struct {
	Content string `json:"content"`
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("github api status %d", e.StatusCode)
	}
	return fmt.Sprintf("github api status %d: %s", e.StatusCode, e.Body)
}

// UpdateGistFile replaces the content of one file in a gist. Files not named
// in the request keep their content.
func (c *Client) UpdateGistFile(ctx context.Context, gistID, filename, content string) (*Gist, error) {
	payload, err := json.Marshal(gistPatch{Files: map[string]gistContent{filename: {Content: content}}})
	if err != nil {
		return nil, fmt.Errorf("encode gist patch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	endpoint := c.apiBase + "/gists/" + url.PathEscape(gistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("patch gist %s: %w", gistID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var gist Gist
	if err := json.NewDecoder(resp.Body).Decode(&gist); err != nil {
		return nil, fmt.Errorf("decode gist response: %w", err)
	}
	return &gist, nil
}
