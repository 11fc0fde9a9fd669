package auth

import (
	"github.com/projectquik/spherekit/pkg/client"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// Reason explains the current signed-in or signed-out state.
type Reason int

const (
	// ReasonUnknown means Initialize has not run yet.
	ReasonUnknown Reason = iota

	// ReasonSignedIn means a credential is held.
	ReasonSignedIn

	// ReasonNeverSignedIn means no credential was persisted.
	ReasonNeverSignedIn

	// ReasonSignedOut means the user signed out explicitly.
	ReasonSignedOut

	// ReasonExpired means the credential could no longer be refreshed silently.
	ReasonExpired

	// ReasonRefreshRejected means the token endpoint rejected the refresh token.
	ReasonRefreshRejected
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonSignedIn:
		return "signed_in"
	case ReasonNeverSignedIn:
		return "never_signed_in"
	case ReasonSignedOut:
		return "signed_out"
	case ReasonExpired:
		return "expired"
	case ReasonRefreshRejected:
		return "refresh_rejected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// State is the observable identity state delivered to listeners.
type State struct {
	IsSignedIn bool           `json:"isSignedIn"`
	Player     *client.Player `json:"player,omitempty"`
	Reason     Reason         `json:"reason"`
}

// identity is the unit swapped atomically on every transition. State is
// always projected from it, never stored separately.
type identity struct {
	cred   *oauth.Credential
	player *client.Player
	reason Reason
}

func (id *identity) state() State {
	if id == nil {
		return State{Reason: ReasonUnknown}
	}
	return State{
		IsSignedIn: id.cred != nil && id.reason == ReasonSignedIn,
		Player:     id.player.Clone(),
		Reason:     id.reason,
	}
}

func (id *identity) playerID() string {
	if id == nil {
		return ""
	}
	return id.cred.PlayerID()
}
