package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// DefaultLoginTimeout bounds how long Authenticate waits for the browser.
const DefaultLoginTimeout = 10 * time.Minute

// CodeFlow is the OAuth client a Session drives. *oauth.CodeFlow implements it.
type CodeFlow interface {
	RedirectURI() string
	BuildAuthorizationURL() (string, error)
	ExchangeCodeForCredential(ctx context.Context, redirectURL string) (*oauth.Credential, error)
	ExchangeRefreshTokenForCredential(ctx context.Context, refreshToken string) (*oauth.Credential, error)
}

// SessionState is the progress of one sign-in attempt.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionAwaitingBrowser
	SessionExchangingCode
	SessionCompleted
	SessionCancelled
	SessionTimedOut
	SessionFailed
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionAwaitingBrowser:
		return "awaiting_browser"
	case SessionExchangingCode:
		return "exchanging_code"
	case SessionCompleted:
		return "completed"
	case SessionCancelled:
		return "cancelled"
	case SessionTimedOut:
		return "timed_out"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the attempt has finished.
func (s SessionState) Terminal() bool {
	return s >= SessionCompleted
}

// Session runs a single sign-in attempt. It is not reusable: once it leaves
// SessionIdle a further Authenticate returns ErrSessionUsed.
type Session struct {
	flow    CodeFlow
	browser browser.Browser

	mu    sync.Mutex
	state SessionState
}

// NewSession creates a session in SessionIdle.
func NewSession(flow CodeFlow, br browser.Browser) *Session {
	return &Session{flow: flow, browser: br}
}

// State returns the current state of the attempt.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(to SessionState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	logging.Debug("Session", "Session %s -> %s", from, to)
}

// Authenticate opens the browser on a fresh authorization URL and exchanges
// the captured redirect for a credential. The browser wait ends when ctx is
// done or timeout elapses, whichever is first; the cause decides between
// ErrSignInCancelled and ErrSignInTimeout. A non-positive timeout means
// DefaultLoginTimeout.
//
// Browser-level failures are *SignInError. Failures of the code exchange are
// returned unchanged, usually as *oauth.AuthFailure.
func (s *Session) Authenticate(ctx context.Context, timeout time.Duration) (*oauth.Credential, error) {
	s.mu.Lock()
	if s.state != SessionIdle {
		s.mu.Unlock()
		return nil, ErrSessionUsed
	}
	s.state = SessionAwaitingBrowser
	s.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	authURL, err := s.flow.BuildAuthorizationURL()
	if err != nil {
		s.transition(SessionFailed)
		return nil, newSignInError(CodeSignInFailed, err, "could not build authorization URL")
	}

	attemptCtx, cancel := context.WithTimeoutCause(ctx, timeout, errLoginTimeout)
	defer cancel()

	result, err := s.browser.Start(attemptCtx, authURL, s.flow.RedirectURI())
	if attemptCtx.Err() != nil && (err != nil || result.Status != browser.StatusSuccess) {
		return nil, s.interrupted(context.Cause(attemptCtx), timeout)
	}
	if err != nil {
		s.transition(SessionFailed)
		return nil, newSignInError(CodeSignInFailed, err, "browser could not start")
	}

	switch result.Status {
	case browser.StatusUserCanceled:
		s.transition(SessionCancelled)
		return nil, newSignInError(CodeSignInCancelled, nil, "user cancelled sign-in")
	case browser.StatusError:
		s.transition(SessionFailed)
		return nil, newSignInError(CodeSignInFailed, nil, "%s", result.Message)
	}

	s.transition(SessionExchangingCode)
	cred, err := s.flow.ExchangeCodeForCredential(ctx, result.RedirectURL)
	if err != nil {
		s.transition(SessionFailed)
		return nil, err
	}

	s.transition(SessionCompleted)
	return cred, nil
}

// interrupted maps the cause of the ended attempt context to exactly one of
// the timeout and cancellation errors.
func (s *Session) interrupted(cause error, timeout time.Duration) error {
	if errors.Is(cause, errLoginTimeout) {
		s.transition(SessionTimedOut)
		return newSignInError(CodeSignInTimeout, cause, "no redirect within %s", timeout)
	}
	s.transition(SessionCancelled)
	return newSignInError(CodeSignInCancelled, cause, "sign-in interrupted")
}

// Refresh exchanges the refresh token of current for a new credential. The
// browser is never involved. AuthFailures are returned unchanged.
func (s *Session) Refresh(ctx context.Context, current *oauth.Credential) (*oauth.Credential, error) {
	if !current.HasRefreshToken() {
		return nil, fmt.Errorf("cannot refresh: %w", ErrRefreshTokenExpired)
	}
	return s.flow.ExchangeRefreshTokenForCredential(ctx, current.RefreshToken)
}
