package auth

import (
	"time"

	"github.com/projectquik/spherekit/pkg/oauth"
)

// StatusResponse is the structured authentication status. This is the
// form printed by `spherekit auth status --json`.
type StatusResponse struct {
	SignedIn bool   `json:"signed_in"`
	Reason   string `json:"reason"`

	// Player is present when a player ID is known
	Player *PlayerStatus `json:"player,omitempty"`

	// Token is present while a credential is held
	Token *TokenStatus `json:"token,omitempty"`

	// LastRefreshError is the most recent refresh failure, if any
	LastRefreshError string `json:"last_refresh_error,omitempty"`
}

// PlayerStatus identifies the signed-in player.
type PlayerStatus struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
}

// TokenStatus describes the lifetime of the held credential. Token values
// are never included.
type TokenStatus struct {
	Scope                 string     `json:"scope,omitempty"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	Expired               bool       `json:"expired"`
	HasRefreshToken       bool       `json:"has_refresh_token"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at,omitempty"`
}

// Status reports the current identity with credential lifetimes.
func (m *Manager) Status() StatusResponse {
	id := m.identity.Load()
	resp := buildStatus(id.state(), id.cred, m.now())
	if err := m.LastRefreshError(); err != nil {
		resp.LastRefreshError = err.Error()
	}
	return resp
}

// StoredStatus reports cred as read from a credential store, without a
// manager. Nothing is refreshed, scheduled or cleared, so it is safe to call
// while another process owns the credential. A nil cred reports absent.
//
// An expired access token with a usable refresh token still counts as signed
// in: the owning manager refreshes it on next use. The player name is not
// known without a backend call and is left empty.
func StoredStatus(cred *oauth.Credential, absent Reason, now time.Time) StatusResponse {
	st := State{Reason: absent}
	if cred != nil {
		st = State{IsSignedIn: true, Reason: ReasonSignedIn}
		if cred.IsExpiredAt(now) && !cred.RefreshTokenUsableAt(now, 0) {
			st = State{Reason: ReasonExpired}
		}
	}
	return buildStatus(st, cred, now)
}

func buildStatus(st State, cred *oauth.Credential, now time.Time) StatusResponse {
	resp := StatusResponse{
		SignedIn: st.IsSignedIn,
		Reason:   st.Reason.String(),
	}
	if cred == nil {
		return resp
	}

	if uid := cred.PlayerID(); uid != "" {
		resp.Player = &PlayerStatus{UID: uid, Name: st.Player.Name()}
	}

	ts := &TokenStatus{
		Scope:           cred.Scope,
		Expired:         cred.IsExpiredAt(now),
		HasRefreshToken: cred.HasRefreshToken(),
	}
	if exp, ok := cred.ExpiresAt(); ok {
		ts.ExpiresAt = &exp
	}
	if exp, ok := cred.RefreshTokenExpiresAt(); ok {
		ts.RefreshTokenExpiresAt = &exp
	}
	resp.Token = ts
	return resp
}
