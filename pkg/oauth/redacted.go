package oauth

import "log/slog"

const redacted = "[REDACTED]"

// RedactedToken wraps a secret (token, authorization code, verifier) so that
// formatting, JSON encoding and slog all print [REDACTED].
//
//	code := oauth.NewRedactedToken(rawCode)
//	log.Debug("exchanging code", "code", code) // code=[REDACTED]
type RedactedToken struct {
	value string
}

func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped secret. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

func (t RedactedToken) String() string {
	return redacted
}

func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{" + redacted + "}"
}

func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer.
func (t RedactedToken) LogValue() slog.Value {
	if t.value == "" {
		return slog.StringValue("")
	}
	return slog.StringValue(redacted)
}
