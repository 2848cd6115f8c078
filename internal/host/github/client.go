package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.github.com"

	apiTimeout = 30 * time.Second
)

// TokenFromEnv returns the first non-empty token from the tool-specific or generic variable.
func TokenFromEnv() string {
	if tok := strings.TrimSpace(os.Getenv("GTIPSYNC_GITHUB_TOKEN")); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
}

func UserAgent(version string) string {
	return fmt.Sprintf("gtipsync/%s", version)
}

// Client talks to github.com release downloads and the REST API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIBase points API calls at another host (GitHub Enterprise, tests).
func WithAPIBase(base string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(base); b != "" {
			c.apiBase = strings.TrimRight(b, "/")
		}
	}
}

func NewClient(token, userAgent string, opts ...Option) *Client {
	c := &Client{
		// No client-wide timeout: downloads are bounded by the caller's context.
		httpClient: &http.Client{},
		apiBase:    DefaultAPIBase,
		token:      strings.TrimSpace(token),
		userAgent:  userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) APIBase() string { return c.apiBase }

// Get issues a GET and returns the unread response. The token is only sent to
// github.com hosts, never to mirrors.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" && isGitHubHost(rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func isGitHubHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" || strings.HasSuffix(host, ".github.com")
}
