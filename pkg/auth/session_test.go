package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/oauth"
)

func TestSession_AuthenticateSuccess(t *testing.T) {
	flow := newFakeFlow(newFakeClock())
	var gotAuthURL, gotRedirect string
	br := browser.Func(func(ctx context.Context, authorizationURL, redirectURL string) (browser.Result, error) {
		gotAuthURL, gotRedirect = authorizationURL, redirectURL
		return browser.Success(redirectURL + "?code=abc"), nil
	})

	s := NewSession(flow, br)
	assert.Equal(t, SessionIdle, s.State())

	cred, err := s.Authenticate(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "signed-in", cred.AccessToken)
	assert.Equal(t, SessionCompleted, s.State())
	assert.Equal(t, "https://sphere.test/oauth/authorize?attempt=1", gotAuthURL)
	assert.Equal(t, testRedirectURI, gotRedirect)
}

func TestSession_NotReusable(t *testing.T) {
	s := NewSession(newFakeFlow(newFakeClock()), successBrowser())

	_, err := s.Authenticate(context.Background(), time.Minute)
	require.NoError(t, err)

	_, err = s.Authenticate(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrSessionUsed)
	assert.Equal(t, SessionCompleted, s.State())
}

func TestSession_BrowserOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		result    browser.Result
		startErr  error
		wantErr   error
		wantState SessionState
	}{
		{
			name:      "user cancelled",
			result:    browser.Canceled(),
			wantErr:   ErrSignInCancelled,
			wantState: SessionCancelled,
		},
		{
			name:      "browser error",
			result:    browser.Failure("no network"),
			wantErr:   ErrSignInFailed,
			wantState: SessionFailed,
		},
		{
			name:      "browser could not start",
			startErr:  errors.New("address already in use"),
			wantErr:   ErrSignInFailed,
			wantState: SessionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := newFakeFlow(newFakeClock())
			br := browser.Func(func(ctx context.Context, authorizationURL, redirectURL string) (browser.Result, error) {
				return tt.result, tt.startErr
			})
			s := NewSession(flow, br)

			_, err := s.Authenticate(context.Background(), time.Minute)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantState, s.State())
			exchanges, _ := flow.counts()
			assert.Zero(t, exchanges)
		})
	}
}

func TestSession_ExchangeFailureIsReturnedUnchanged(t *testing.T) {
	flow := newFakeFlow(newFakeClock())
	failure := &oauth.AuthFailure{Reason: oauth.ReasonMalformedRedirect, Description: "state mismatch"}
	flow.exchangeErr = failure

	s := NewSession(flow, successBrowser())
	_, err := s.Authenticate(context.Background(), time.Minute)

	assert.Same(t, failure, err)
	assert.Equal(t, SessionFailed, s.State())
}

func TestSession_TimeoutVersusCancel(t *testing.T) {
	waiting := &scriptedBrowser{wait: true}

	t.Run("timeout", func(t *testing.T) {
		s := NewSession(newFakeFlow(newFakeClock()), waiting)
		_, err := s.Authenticate(context.Background(), 10*time.Millisecond)

		assert.ErrorIs(t, err, ErrSignInTimeout)
		assert.Equal(t, SessionTimedOut, s.State())
	})

	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := NewSession(newFakeFlow(newFakeClock()), waiting)
		_, err := s.Authenticate(ctx, time.Minute)

		assert.ErrorIs(t, err, ErrSignInCancelled)
		assert.Equal(t, SessionCancelled, s.State())
	})

	t.Run("caller deadline counts as cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		s := NewSession(newFakeFlow(newFakeClock()), waiting)
		_, err := s.Authenticate(ctx, time.Minute)

		assert.ErrorIs(t, err, ErrSignInCancelled)
	})
}

func TestSession_CancellationRaceReportsExactlyOne(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(time.Millisecond, cancel)

		s := NewSession(newFakeFlow(newFakeClock()), &scriptedBrowser{wait: true})
		_, err := s.Authenticate(ctx, time.Millisecond)
		cancel()

		timedOut := errors.Is(err, ErrSignInTimeout)
		cancelled := errors.Is(err, ErrSignInCancelled)
		assert.True(t, timedOut != cancelled, "iteration %d: %v", i, err)
	}
}

func TestSession_SuccessWinsOverLateDeadline(t *testing.T) {
	br := browser.Func(func(ctx context.Context, authorizationURL, redirectURL string) (browser.Result, error) {
		<-ctx.Done()
		// a redirect captured just as the deadline fired is still used
		return browser.Success(redirectURL + "?code=late"), nil
	})
	s := NewSession(newFakeFlow(newFakeClock()), br)

	cred, err := s.Authenticate(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestSession_Refresh(t *testing.T) {
	flow := newFakeFlow(newFakeClock())
	s := NewSession(flow, &scriptedBrowser{})

	cred, err := s.Refresh(context.Background(), newCred(testEpoch, "old", time.Hour, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", cred.AccessToken)
	assert.Equal(t, SessionIdle, s.State(), "refresh does not touch the attempt state")

	_, err = s.Refresh(context.Background(), &oauth.Credential{AccessToken: "no-refresh"})
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	flow.refreshErr = &oauth.AuthFailure{Reason: oauth.ReasonRefreshRejected}
	_, err = s.Refresh(context.Background(), newCred(testEpoch, "old", time.Hour, time.Hour))
	assert.ErrorIs(t, err, oauth.ErrRefreshRejected)
}

func TestSessionStateString(t *testing.T) {
	states := map[SessionState]string{
		SessionIdle:            "idle",
		SessionAwaitingBrowser: "awaiting_browser",
		SessionExchangingCode:  "exchanging_code",
		SessionCompleted:       "completed",
		SessionCancelled:       "cancelled",
		SessionTimedOut:        "timed_out",
		SessionFailed:          "failed",
		SessionState(99):       "unknown",
	}
	for state, want := range states {
		assert.Equal(t, want, state.String())
	}
	assert.False(t, SessionExchangingCode.Terminal())
	assert.True(t, SessionTimedOut.Terminal())
}

func TestSignInError(t *testing.T) {
	cause := fmt.Errorf("wrapped: %w", context.Canceled)
	err := newSignInError(CodeSignInCancelled, cause, "sign-in interrupted")

	assert.Equal(t, "sign_in_cancelled: sign-in interrupted: wrapped: context canceled", err.Error())
	assert.ErrorIs(t, err, ErrSignInCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSignInTimeout)
	assert.True(t, IsSignInCancelled(fmt.Errorf("login: %w", err)))
	assert.False(t, IsSignInCancelled(ErrSignInFailed))
}
