package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/projectquik/spherekit/pkg/oauth"
)

var oauthResponse404 = oauth.Response{StatusCode: http.StatusNotFound}

func staticToken(access string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"})
}

func TestGetPlayer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/players/player-1", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "my-project", r.Header.Get(ProjectHeader))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"uid": "player-1",
			"name": "nova",
			"realName": "Nova Reyes",
			"email": "nova@example.com",
			"joinDate": "2024-03-05",
			"level": 7,
			"score": 12345,
			"metadata": {"guild": "north"},
			"isBanned": false
		}`))
	}))
	defer server.Close()

	c := New(server.URL, "my-project", nil)
	player, err := c.GetPlayer(context.Background(), staticToken("access-1"), "player-1")
	require.NoError(t, err)

	assert.Equal(t, "player-1", player.UID)
	assert.Equal(t, "Nova Reyes", player.Name())
	require.NotNil(t, player.Level)
	assert.Equal(t, 7, *player.Level)
	assert.Equal(t, "north", player.Metadata["guild"])

	joined, ok := player.Joined()
	require.True(t, ok)
	assert.Equal(t, 2024, joined.Year())
}

func TestGetPlayer_RequiresUID(t *testing.T) {
	c := New("http://127.0.0.1:1", "my-project", nil)
	_, err := c.GetPlayer(context.Background(), staticToken("a"), "")
	assert.Equal(t, CodeBadRequest, ErrorCode(err))
}

func TestSignOut(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SignOutPath, r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "my-project", r.Header.Get(ProjectHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "my-project", nil)
	require.NoError(t, c.SignOut(context.Background(), staticToken("access-1")))
	assert.True(t, called)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		body       any
		wantCode   string
		wantSphere string
	}{
		{"internal server", 500, errorResponse{Code: "internal", Message: "boom", StatusCode: 500}, CodeInternalServer, "internal"},
		{"rate limited", 429, errorResponse{Code: "rate-limit", Message: "slow down", StatusCode: 429}, CodeRateLimited, "rate-limit"},
		{"not found", 404, errorResponse{Code: "auth/player-not-found", Message: "no such player", StatusCode: 404}, CodeNotFound, "auth/player-not-found"},
		{"forbidden", 403, errorResponse{Code: "auth/forbidden", Message: "nope", StatusCode: 403}, CodeForbidden, "auth/forbidden"},
		{"unauthenticated", 401, errorResponse{Code: "auth/invalid-token", Message: "bad token", StatusCode: 401}, CodeUnauthenticated, "auth/invalid-token"},
		{"bad request", 400, errorResponse{Code: "invalid-argument", Message: "bad", StatusCode: 400}, CodeBadRequest, "invalid-argument"},
		{"unknown status", 418, errorResponse{Code: "teapot", Message: "short", StatusCode: 418}, CodeUnknown, "teapot"},
		{"body status wins", 400, errorResponse{Code: "auth/invalid-token", Message: "bad token", StatusCode: 401}, CodeUnauthenticated, "auth/invalid-token"},
		{"no body falls back to HTTP status", 404, nil, CodeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.httpStatus)
				if tt.body != nil {
					_ = json.NewEncoder(w).Encode(tt.body)
				}
			}))
			defer server.Close()

			c := New(server.URL, "my-project", nil)
			_, err := c.GetPlayer(context.Background(), staticToken("a"), "player-1")
			require.Error(t, err)

			assert.Equal(t, tt.wantCode, ErrorCode(err))
			assert.Equal(t, tt.wantSphere, SphereCode(err))

			oopsErr, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.Equal(t, "get_player", oopsErr.Context()["operation"])
		})
	}
}

func TestHelpers(t *testing.T) {
	notFound := responseError("x", &oauthResponse404)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsUnauthenticated(notFound))
	assert.False(t, IsTemporary(notFound))

	assert.True(t, IsTemporary(errors.New("dial tcp: connection refused")))
	assert.False(t, IsTemporary(nil))
	assert.Empty(t, ErrorCode(errors.New("plain")))
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := New(addr, "my-project", nil)
	err := c.SignOut(context.Background(), staticToken("a"))
	require.Error(t, err)
	assert.Empty(t, ErrorCode(err))
	assert.True(t, IsTemporary(err))
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("not signed in")
}

func TestTokenSourceFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", "my-project", nil)
	err := c.SignOut(context.Background(), failingTokenSource{})
	assert.True(t, IsUnauthenticated(err))
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(logger, "player lookup failed", responseError("get_player", &oauthResponse404))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, CodeNotFound, entry["code"])

	buf.Reset()
	LogError(logger, "plain failure", errors.New("standard error"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "standard error")
}
