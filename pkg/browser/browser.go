package browser

import (
	"context"
	"fmt"
)

// Status is the outcome of a browser round trip.
type Status int

const (
	// StatusSuccess means the authorization server redirected back.
	StatusSuccess Status = iota
	// StatusUserCanceled means the user closed or declined the login page.
	StatusUserCanceled
	// StatusError means the capability failed before a redirect arrived.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUserCanceled:
		return "user_canceled"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is what a Browser reports when the round trip ends.
type Result struct {
	Status Status
	// RedirectURL is the full redirect, query included. Set on StatusSuccess.
	RedirectURL string
	// Message describes a StatusError.
	Message string
}

func Success(redirectURL string) Result {
	return Result{Status: StatusSuccess, RedirectURL: redirectURL}
}

func Canceled() Result {
	return Result{Status: StatusUserCanceled}
}

func Failure(format string, args ...interface{}) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Browser presents the authorization URL to the user and captures the
// redirect back to redirectURL.
//
// Start blocks until the round trip ends. A non-nil error means the context
// ended or the capability could not start at all; in both cases the Result is
// zero. Implementations must release every resource they hold (listeners,
// registrations) before returning.
type Browser interface {
	Start(ctx context.Context, authorizationURL, redirectURL string) (Result, error)
}

// Func adapts a function to Browser.
type Func func(ctx context.Context, authorizationURL, redirectURL string) (Result, error)

func (f Func) Start(ctx context.Context, authorizationURL, redirectURL string) (Result, error) {
	return f(ctx, authorizationURL, redirectURL)
}
