package oauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "abc", r.Header.Get("X-Test"))
		w.Header().Set("X-Echo", string(body))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("X-Test", "abc")

	resp, err := NewHTTPTransport(nil).Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Header: header,
		Body:   []byte("ping"),
	})
	require.NoError(t, err)

	// Non-2xx is a response, not an error.
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, "ping", resp.Header.Get("X-Echo"))
	assert.Equal(t, "short and stout", string(resp.Body))
}

func TestHTTPTransport_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPTransport(nil).Do(ctx, &Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "v", r.PostForm.Get("k"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := PostForm(context.Background(), NewHTTPTransport(server.Client()), server.URL, url.Values{"k": {"v"}})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://s/oauth/token", JoinURL("https://s", "/oauth/token"))
	assert.Equal(t, "https://s/oauth/token", JoinURL("https://s/", "oauth/token"))
	assert.True(t, strings.HasSuffix(JoinURL("https://s/api/", "/auth/players/1"), "/api/auth/players/1"))
}
