package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	AuthorizationPath = "/oauth/authorize"
	TokenPath         = "/oauth/token"

	// DefaultScope is requested when the configuration leaves scope empty.
	DefaultScope = "profile project"
)

// CodeFlowConfig identifies the client to the Sphere authorization server.
type CodeFlowConfig struct {
	ClientID    string
	ServerURL   string
	RedirectURI string
	Scope       string
}

// pendingAuthorization is the secret half of an authorization attempt.
type pendingAuthorization struct {
	verifier string
	state    string
}

// CodeFlow runs the OAuth2 authorization code flow with PKCE against the
// Sphere token endpoint.
//
// Each BuildAuthorizationURL call starts a new attempt and replaces any
// pending verifier. The verifier is consumed by the next exchange whatever
// its outcome, so it is never presented twice.
type CodeFlow struct {
	config    CodeFlowConfig
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending *pendingAuthorization
}

// CodeFlowOption configures a CodeFlow.
type CodeFlowOption func(*CodeFlow)

// WithTransport sets the transport used for token requests.
func WithTransport(t Transport) CodeFlowOption {
	return func(f *CodeFlow) {
		f.transport = t
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) CodeFlowOption {
	return func(f *CodeFlow) {
		f.logger = logger
	}
}

// WithClock overrides the time source used to stamp issue times.
func WithClock(now func() time.Time) CodeFlowOption {
	return func(f *CodeFlow) {
		f.now = now
	}
}

// NewCodeFlow creates a code flow client.
func NewCodeFlow(cfg CodeFlowConfig, opts ...CodeFlowOption) (*CodeFlow, error) {
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, "client ID")
	}
	if cfg.ServerURL == "" {
		missing = append(missing, "server URL")
	}
	if cfg.RedirectURI == "" {
		missing = append(missing, "redirect URI")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("code flow: missing %s", strings.Join(missing, ", "))
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}

	f := &CodeFlow{
		config:    cfg,
		transport: NewHTTPTransport(nil),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// RedirectURI returns the redirect URI registered for this client.
func (f *CodeFlow) RedirectURI() string {
	return f.config.RedirectURI
}

func (f *CodeFlow) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.config.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   JoinURL(f.config.ServerURL, AuthorizationPath),
			TokenURL:  JoinURL(f.config.ServerURL, TokenPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: f.config.RedirectURI,
		Scopes:      strings.Fields(f.config.Scope),
	}
}

// BuildAuthorizationURL starts a new authorization attempt and returns the
// URL to open in the browser.
func (f *CodeFlow) BuildAuthorizationURL() (string, error) {
	pkce := GeneratePKCE()
	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	if f.pending != nil {
		f.logger.Debug("Discarding stale authorization attempt")
	}
	f.pending = &pendingAuthorization{verifier: pkce.CodeVerifier, state: state}
	f.mu.Unlock()

	return f.oauth2Config().AuthCodeURL(state, oauth2.S256ChallengeOption(pkce.CodeVerifier)), nil
}

func (f *CodeFlow) takePending() *pendingAuthorization {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pending
	f.pending = nil
	return p
}

// ExchangeCodeForCredential exchanges the authorization code carried by the
// captured redirect URL for a credential.
func (f *CodeFlow) ExchangeCodeForCredential(ctx context.Context, redirectURL string) (*Credential, error) {
	pending := f.takePending()

	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, &AuthFailure{Reason: ReasonMalformedRedirect, Description: "unparseable redirect URL"}
	}
	query := u.Query()

	if errCode := query.Get("error"); errCode != "" {
		return nil, &AuthFailure{
			Reason:      ReasonServerRejected,
			Code:        errCode,
			Description: query.Get("error_description"),
		}
	}
	if pending == nil {
		return nil, &AuthFailure{Reason: ReasonMalformedRedirect, Description: "no authorization in progress"}
	}
	if query.Get("state") != pending.state {
		f.logger.Warn("SECURITY_AUDIT: redirect state mismatch, possible CSRF attempt")
		return nil, &AuthFailure{Reason: ReasonMalformedRedirect, Description: "state mismatch"}
	}
	code := query.Get("code")
	if code == "" {
		return nil, &AuthFailure{Reason: ReasonMalformedRedirect, Description: "redirect carries no authorization code"}
	}

	f.logger.Debug("Exchanging authorization code", "code", NewRedactedToken(code))

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {pending.verifier},
		"client_id":     {f.config.ClientID},
		"redirect_uri":  {f.config.RedirectURI},
	}
	return f.doTokenRequest(ctx, form, ReasonServerRejected)
}

// ExchangeRefreshTokenForCredential exchanges a refresh token for a new
// credential. The response may omit the refresh token; callers merge with
// Credential.InheritFrom.
func (f *CodeFlow) ExchangeRefreshTokenForCredential(ctx context.Context, refreshToken string) (*Credential, error) {
	if refreshToken == "" {
		return nil, &AuthFailure{Reason: ReasonRefreshRejected, Description: "no refresh token"}
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {f.config.ClientID},
	}
	return f.doTokenRequest(ctx, form, ReasonRefreshRejected)
}

func (f *CodeFlow) doTokenRequest(ctx context.Context, form url.Values, rejected FailureReason) (*Credential, error) {
	resp, err := PostForm(ctx, f.transport, f.oauth2Config().Endpoint.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if !resp.IsSuccess() {
		af := failureFromResponse(rejected, resp)
		f.logger.Debug("Token request rejected",
			"grant_type", form.Get("grant_type"),
			"status", resp.StatusCode,
			"code", af.Code)
		return nil, af
	}

	// A 2xx body that is not a token response (a captive portal page, a
	// truncated proxy reply) says nothing about the grant, so it is not an
	// AuthFailure and a refresh keeps the stored credential.
	var cred Credential
	if err := json.Unmarshal(resp.Body, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableTokenResponse, err)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", ErrUnreadableTokenResponse)
	}
	cred.stampIssueTimes(f.now())

	f.logger.Debug("Token request succeeded",
		"grant_type", form.Get("grant_type"),
		"credential", &cred)
	return &cred, nil
}
