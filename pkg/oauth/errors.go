package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	strutil "github.com/projectquik/spherekit/pkg/strings"
)

// FailureReason classifies an AuthFailure.
type FailureReason string

const (
	// ReasonServerRejected means the authorization server refused the
	// authorization code or reported an error in the redirect.
	ReasonServerRejected FailureReason = "server_rejected"
	// ReasonMalformedRedirect means the redirect could not be trusted or parsed:
	// missing code, state mismatch, or no authorization in progress.
	ReasonMalformedRedirect FailureReason = "malformed_redirect"
	// ReasonRefreshRejected means the token endpoint refused the refresh token.
	// The refresh token is dead and the user must sign in again.
	ReasonRefreshRejected FailureReason = "refresh_rejected"
)

// AuthFailure is an explicit rejection by the authorization server, or a
// redirect that cannot be exchanged. Transport failures are never AuthFailures.
type AuthFailure struct {
	Reason FailureReason
	// StatusCode is the HTTP status of the token response, or 0.
	StatusCode int
	// Code is the OAuth error code or the Sphere error code.
	Code        string
	Description string
}

func (e *AuthFailure) Error() string {
	var b strings.Builder
	b.WriteString("authentication failed (")
	b.WriteString(string(e.Reason))
	b.WriteString(")")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return b.String()
}

// Is matches another AuthFailure with the same reason, so the sentinels below
// work with errors.Is.
func (e *AuthFailure) Is(target error) bool {
	t, ok := target.(*AuthFailure)
	return ok && t.Reason == e.Reason
}

var (
	ErrServerRejected    = &AuthFailure{Reason: ReasonServerRejected}
	ErrMalformedRedirect = &AuthFailure{Reason: ReasonMalformedRedirect}
	ErrRefreshRejected   = &AuthFailure{Reason: ReasonRefreshRejected}
)

// ErrUnreadableTokenResponse is returned when the token endpoint answers 2xx
// with a body that is not a usable token response. It is transient.
var ErrUnreadableTokenResponse = errors.New("unreadable token response")

// IsAuthFailure reports whether err is, or wraps, an AuthFailure.
func IsAuthFailure(err error) bool {
	var af *AuthFailure
	return errors.As(err, &af)
}

// AsAuthFailure extracts the AuthFailure from err.
func AsAuthFailure(err error) (*AuthFailure, bool) {
	var af *AuthFailure
	if errors.As(err, &af) {
		return af, true
	}
	return nil, false
}

// errorBody decodes both the OAuth error form and the Sphere error form.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             string `json:"code"`
	Message          string `json:"message"`
	StatusCode       int    `json:"statusCode"`
}

func failureFromResponse(reason FailureReason, resp *Response) *AuthFailure {
	af := &AuthFailure{Reason: reason, StatusCode: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		af.Description = strutil.Snippet(string(resp.Body), strutil.BodySnippetLen)
		return af
	}

	af.Code = body.Error
	if af.Code == "" {
		af.Code = body.Code
	}
	af.Description = body.ErrorDescription
	if af.Description == "" {
		af.Description = body.Message
	}
	return af
}
