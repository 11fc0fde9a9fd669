package auth

import (
	"errors"
	"fmt"
)

// SignInCode classifies why an interactive sign-in did not complete.
type SignInCode string

const (
	// CodeSignInCancelled means the user or the caller backed out.
	CodeSignInCancelled SignInCode = "sign_in_cancelled"
	// CodeSignInTimeout means the browser flow did not finish before the login timeout.
	CodeSignInTimeout SignInCode = "sign_in_timeout"
	// CodeSignInFailed means the browser capability failed before producing a redirect.
	CodeSignInFailed SignInCode = "sign_in_failed"
)

// SignInError is returned by Session.Authenticate and Manager.SignIn when the
// browser part of the flow does not complete. Failures of the code exchange
// itself are returned as *oauth.AuthFailure instead.
type SignInError struct {
	Code    SignInCode
	Message string
	Err     error
}

func (e *SignInError) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SignInError) Unwrap() error {
	return e.Err
}

// Is matches any *SignInError with the same code, so errors.Is works against
// the sentinels below.
func (e *SignInError) Is(target error) bool {
	var t *SignInError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrSignInCancelled = &SignInError{Code: CodeSignInCancelled}
	ErrSignInTimeout   = &SignInError{Code: CodeSignInTimeout}
	ErrSignInFailed    = &SignInError{Code: CodeSignInFailed}
)

var (
	// ErrSessionUsed is returned when Authenticate is called on a session
	// that already left the idle state.
	ErrSessionUsed = errors.New("authentication session already used")

	// ErrNotSignedIn is returned by operations that need a credential.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("auth manager closed")

	// ErrRefreshTokenExpired is returned when the refresh token is too close
	// to its own expiry to be presented. The user has to sign in again.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// errLoginTimeout is the cancellation cause of the login timeout.
var errLoginTimeout = errors.New("login timeout elapsed")

func newSignInError(code SignInCode, err error, format string, args ...interface{}) *SignInError {
	return &SignInError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsSignInCancelled reports whether err is a user or caller cancellation.
// Cancellations are expected and should not be logged as failures.
func IsSignInCancelled(err error) bool {
	return errors.Is(err, ErrSignInCancelled)
}
