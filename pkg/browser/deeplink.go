package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// MobileRedirectURL returns the deep-link redirect for an app scheme.
func MobileRedirectURL(scheme string) string {
	return scheme + "://oauth"
}

// DeepLink is the Browser for platforms where the redirect arrives as an app
// deep link. The embedding app forwards the link with Deliver, or calls
// Cancel when the user dismisses the login sheet.
type DeepLink struct {
	open Opener

	mu      sync.Mutex
	attempt *deepLinkAttempt
}

type deepLinkAttempt struct {
	redirectPrefix string
	resultCh       chan Result
}

func NewDeepLink(open Opener) *DeepLink {
	if open == nil {
		open = OpenURL
	}
	return &DeepLink{open: open}
}

// Start implements Browser. Only one attempt waits at a time; starting a new
// one supersedes the previous attempt, which reports UserCanceled.
func (d *DeepLink) Start(ctx context.Context, authorizationURL, redirectURL string) (Result, error) {
	attempt := &deepLinkAttempt{
		redirectPrefix: strings.TrimSuffix(redirectURL, "/"),
		resultCh:       make(chan Result, 1),
	}

	d.mu.Lock()
	if prev := d.attempt; prev != nil {
		prev.resultCh <- Canceled()
	}
	d.attempt = attempt
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.attempt == attempt {
			d.attempt = nil
		}
		d.mu.Unlock()
	}()

	if err := d.open(authorizationURL); err != nil {
		return Result{}, fmt.Errorf("failed to open login page: %w", err)
	}

	select {
	case result := <-attempt.resultCh:
		return result, nil
	case <-ctx.Done():
		return Result{}, context.Cause(ctx)
	}
}

// Deliver hands an incoming deep link to the waiting attempt. It returns
// false when nothing is waiting or the link is not the expected redirect.
func (d *DeepLink) Deliver(link string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	attempt := d.attempt
	if attempt == nil || !strings.HasPrefix(link, attempt.redirectPrefix) {
		return false
	}
	d.attempt = nil

	result := Success(link)
	if u, err := url.Parse(link); err == nil && u.Query().Get("error") == "access_denied" {
		result = Canceled()
	}
	attempt.resultCh <- result
	return true
}

// Cancel ends the waiting attempt with UserCanceled.
func (d *DeepLink) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attempt == nil {
		return false
	}
	d.attempt.resultCh <- Canceled()
	d.attempt = nil
	return true
}
