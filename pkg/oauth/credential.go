package oauth

import (
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// UserInfo is the user block Sphere returns alongside a token.
type UserInfo struct {
	UID string `json:"uid"`
}

// Credential is the token bundle issued by the Sphere token endpoint.
//
// The JSON encoding is both the wire format of a token response and the
// persisted form. Times are unix seconds and lifetimes are seconds, so a
// credential read back from disk evaluates expiry exactly as it did when
// it was written.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// ExpiresIn is the access token lifetime in seconds, counted from IssuedAt.
	ExpiresIn int64 `json:"expires_in,omitempty"`
	IssuedAt  int64 `json:"issued_at,omitempty"`

	RefreshTokenExpiresIn int64 `json:"refresh_token_expires_in,omitempty"`
	RefreshTokenIssuedAt  int64 `json:"refresh_token_issued_at,omitempty"`

	User *UserInfo `json:"user,omitempty"`
}

func lifetimeEnd(issuedAt, expiresIn int64) (time.Time, bool) {
	if issuedAt <= 0 || expiresIn <= 0 {
		return time.Time{}, false
	}
	return time.Unix(issuedAt, 0).Add(time.Duration(expiresIn) * time.Second), true
}

// ExpiresAt returns the access token expiry. The bool is false when the
// issue time or the lifetime is unknown.
func (c *Credential) ExpiresAt() (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	return lifetimeEnd(c.IssuedAt, c.ExpiresIn)
}

// RefreshTokenExpiresAt returns the refresh token expiry. The bool is false
// when the issue time or the lifetime is unknown.
func (c *Credential) RefreshTokenExpiresAt() (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	return lifetimeEnd(c.RefreshTokenIssuedAt, c.RefreshTokenExpiresIn)
}

// IsExpired reports whether the access token is unusable now.
func (c *Credential) IsExpired() bool {
	return c.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the access token is unusable at now.
// An empty token or an unknown expiry counts as expired.
func (c *Credential) IsExpiredAt(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return true
	}
	exp, ok := c.ExpiresAt()
	if !ok {
		return true
	}
	return !now.Before(exp)
}

// Remaining returns the access token lifetime left at now, or zero when the
// expiry is unknown or already passed.
func (c *Credential) Remaining(now time.Time) time.Duration {
	exp, ok := c.ExpiresAt()
	if !ok || !now.Before(exp) {
		return 0
	}
	return exp.Sub(now)
}

// HasRefreshToken reports whether a refresh token is present.
func (c *Credential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// RefreshTokenUsableAt reports whether the refresh token is worth presenting
// at now. A token within margin of its own expiry is not. When the server
// never sent a refresh token lifetime the token is presented and the token
// endpoint decides.
func (c *Credential) RefreshTokenUsableAt(now time.Time, margin time.Duration) bool {
	if !c.HasRefreshToken() {
		return false
	}
	exp, ok := c.RefreshTokenExpiresAt()
	if !ok {
		return true
	}
	return exp.Sub(now) > margin
}

// PlayerID returns the Sphere user ID bound to the credential. It prefers the
// user block of the token response and falls back to the sub claim of a JWT
// access token. The claim is read without signature verification, so it is
// only suitable for display and cache keys.
func (c *Credential) PlayerID() string {
	if c == nil {
		return ""
	}
	if c.User != nil && c.User.UID != "" {
		return c.User.UID
	}
	if strings.Count(c.AccessToken, ".") != 2 {
		return ""
	}
	token, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// AuthorizationHeader returns the value for an Authorization header.
func (c *Credential) AuthorizationHeader() string {
	return c.Token().Type() + " " + c.AccessToken
}

// Token converts the credential to an oauth2.Token.
func (c *Credential) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
	}
	if exp, ok := c.ExpiresAt(); ok {
		token.Expiry = exp
	} else {
		// oauth2 treats a zero expiry as "never expires"; unknown must not be valid.
		token.Expiry = time.Unix(1, 0)
	}
	if c.ExpiresIn > 0 {
		token.ExpiresIn = c.ExpiresIn
	}
	if id := c.PlayerID(); id != "" {
		token = token.WithExtra(map[string]interface{}{"uid": id})
	}
	return token
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.User != nil {
		u := *c.User
		out.User = &u
	}
	return &out
}

// InheritFrom fills the fields a refresh response may omit from the
// credential it replaces: the refresh token with its expiry metadata, and the
// user block. It returns a new credential and leaves c unchanged.
func (c *Credential) InheritFrom(prev *Credential) *Credential {
	out := c.Clone()
	if out == nil || prev == nil {
		return out
	}
	if out.RefreshToken == "" {
		out.RefreshToken = prev.RefreshToken
		out.RefreshTokenExpiresIn = prev.RefreshTokenExpiresIn
		out.RefreshTokenIssuedAt = prev.RefreshTokenIssuedAt
	}
	if out.User == nil && prev.User != nil {
		u := *prev.User
		out.User = &u
	}
	if out.Scope == "" {
		out.Scope = prev.Scope
	}
	return out
}

// stampIssueTimes records now as the issue time of any lifetime the server
// sent without one.
func (c *Credential) stampIssueTimes(now time.Time) {
	if c.ExpiresIn > 0 && c.IssuedAt <= 0 {
		c.IssuedAt = now.Unix()
	}
	if c.RefreshTokenExpiresIn > 0 && c.RefreshTokenIssuedAt <= 0 {
		c.RefreshTokenIssuedAt = now.Unix()
	}
}

// LogValue implements slog.LogValuer. Token values never appear in logs.
func (c *Credential) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.Any("access_token", NewRedactedToken(c.AccessToken)),
		slog.Bool("has_refresh_token", c.HasRefreshToken()),
		slog.String("player_id", c.PlayerID()),
	}
	if exp, ok := c.ExpiresAt(); ok {
		attrs = append(attrs, slog.Time("expires_at", exp))
	}
	if exp, ok := c.RefreshTokenExpiresAt(); ok {
		attrs = append(attrs, slog.Time("refresh_expires_at", exp))
	}
	return slog.GroupValue(attrs...)
}
