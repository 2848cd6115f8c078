package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromEnvPrefersToolVariable(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "generic")
	t.Setenv("GTIPSYNC_GITHUB_TOKEN", " specific ")
	assert.Equal(t, "specific", TokenFromEnv())

	t.Setenv("GTIPSYNC_GITHUB_TOKEN", "")
	assert.Equal(t, "generic", TokenFromEnv())
}

func TestGetOnlySendsTokenToGitHub(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient("secret", UserAgent("test"))
	resp, err := c.Get(context.Background(), srv.URL+"/asset.zip")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, gotAuth)
	assert.Equal(t, "gtipsync/test", gotUA)
	assert.True(t, isGitHubHost("https://github.com/Ponderfly/GoogleTranslateIpCheck/releases"))
	assert.True(t, isGitHubHost("https://api.github.com/gists/1"))
	assert.False(t, isGitHubHost("https://github.com.evil.example/x"))
}

func TestUpdateGistFile(t *testing.T) {
	const content = "# header\n\n1.2.3.4 translate.googleapis.com\n5.6.7.8 translate-pa.googleapis.com"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/gists/abc123", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var patch struct {
			Files map[string]struct {
				Content string `json:"content"`
			} `json:"files"`
		}
		require.NoError(t, json.Unmarshal(body, &patch))
		require.Len(t, patch.Files, 1)
		assert.Equal(t, content, patch.Files["hosts.txt"].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Gist{
			ID:      "abc123",
			HTMLURL: "https://gist.github.com/abc123",
			Files: map[string]GistFile{
				"hosts.txt": {Filename: "hosts.txt", RawURL: "https://gist.githubusercontent.com/u/abc123/raw/sha/hosts.txt"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("tok", UserAgent("test"), WithAPIBase(srv.URL+"/"))
	gist, err := c.UpdateGistFile(context.Background(), "abc123", "hosts.txt", content)
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/abc123", gist.HTMLURL)
	assert.Contains(t, gist.Files["hosts.txt"].RawURL, "/raw/")
}

func TestUpdateGistFileAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := NewClient("bad", UserAgent("test"), WithAPIBase(srv.URL))
	_, err := c.UpdateGistFile(context.Background(), "abc123", "hosts.txt", "x")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Bad credentials")
}
