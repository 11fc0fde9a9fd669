package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/samber/oops"
	"golang.org/x/oauth2"

	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
)

const (
	// ProjectHeader names the Sphere project on every backend request.
	ProjectHeader = "X-Sphere-Project-Name"

	PlayersPath = "/auth/players/"
	SignOutPath = "/oauth/signout"
)

// Client calls the Sphere backend on behalf of the signed-in player.
type Client struct {
	serverURL string
	projectID string
	transport oauth.Transport
}

// New returns a backend client. A nil transport uses oauth.NewHTTPTransport.
func New(serverURL, projectID string, transport oauth.Transport) *Client {
	if transport == nil {
		transport = oauth.NewHTTPTransport(nil)
	}
	return &Client{
		serverURL: serverURL,
		projectID: projectID,
		transport: transport,
	}
}

// GetPlayer fetches the profile of the player with the given ID.
func (c *Client) GetPlayer(ctx context.Context, ts oauth2.TokenSource, uid string) (*Player, error) {
	if uid == "" {
		return nil, oops.In("client").Code(CodeBadRequest).Errorf("player ID is required")
	}

	resp, err := c.do(ctx, ts, "get_player", http.MethodGet, PlayersPath+url.PathEscape(uid))
	if err != nil {
		return nil, err
	}

	var player Player
	if err := json.Unmarshal(resp.Body, &player); err != nil {
		return nil, oops.In("client").With("operation", "get_player").Wrapf(err, "failed to decode player")
	}
	return &player, nil
}

// SignOut tells the backend the current token is no longer in use.
func (c *Client) SignOut(ctx context.Context, ts oauth2.TokenSource) error {
	_, err := c.do(ctx, ts, "sign_out", http.MethodPost, SignOutPath)
	return err
}

func (c *Client) do(ctx context.Context, ts oauth2.TokenSource, op, method, path string) (*oauth.Response, error) {
	tok, err := ts.Token()
	if err != nil {
		return nil, oops.In("client").Code(CodeUnauthenticated).With("operation", op).Wrapf(err, "no access token")
	}

	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	header.Set("Accept", "application/json")
	header.Set(ProjectHeader, c.projectID)

	resp, err := c.transport.Do(ctx, &oauth.Request{
		Method: method,
		URL:    oauth.JoinURL(c.serverURL, path),
		Header: header,
	})
	if err != nil {
		return nil, oops.In("client").With("operation", op).Wrapf(err, "backend request failed")
	}

	logging.Debug("Client", "%s %s -> %d", method, path, resp.StatusCode)

	if !resp.IsSuccess() {
		return nil, responseError(op, resp)
	}
	return resp, nil
}
