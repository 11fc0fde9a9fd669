package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/projectquik/spherekit/pkg/oauth"
)

// Error codes carried by backend errors.
const (
	CodeInternalServer  = "internal_server"
	CodeRateLimited     = "rate_limited"
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
	CodeUnauthenticated = "unauthenticated"
	CodeBadRequest      = "bad_request"
	CodeUnknown         = "unknown"
)

// errorResponse is the Sphere error body.
type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusInternalServerError:
		return CodeInternalServer
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusBadRequest:
		return CodeBadRequest
	default:
		return CodeUnknown
	}
}

// responseError converts a non-2xx backend response into an oops error. The
// statusCode in the body decides the code; the HTTP status is the fallback.
func responseError(op string, resp *oauth.Response) error {
	var body errorResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.StatusCode == 0 {
		body.StatusCode = resp.StatusCode
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	return oops.
		In("client").
		Code(codeForStatus(body.StatusCode)).
		With("operation", op).
		With("status", body.StatusCode).
		With("sphere_code", body.Code).
		Errorf("%s", body.Message)
}

// ErrorCode returns the code of a backend error, or "" for other errors.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// SphereCode returns the Sphere error code (such as "auth/invalid-token")
// of a backend error.
func SphereCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Context()["sphere_code"].(string)
	return code
}

func IsUnauthenticated(err error) bool { return ErrorCode(err) == CodeUnauthenticated }
func IsNotFound(err error) bool        { return ErrorCode(err) == CodeNotFound }
func IsRateLimited(err error) bool     { return ErrorCode(err) == CodeRateLimited }

// IsTemporary reports whether retrying err may succeed: transport failures,
// server errors and rate limiting.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	switch ErrorCode(err) {
	case "", CodeInternalServer, CodeRateLimited, CodeUnknown:
		return true
	default:
		return false
	}
}

// LogError logs err with its code and context when it is a backend error.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := ErrorCode(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, "error", fmt.Sprint(err))
}
