package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/projectquik/spherekit/pkg/logging"
)

// DefaultRedirectURL is the loopback redirect registered for desktop clients.
const DefaultRedirectURL = "http://localhost:8000/spherekit/oauth"

// DefaultShutdownTimeout bounds how long the listener waits for the close page
// to be delivered before it is torn down.
const DefaultShutdownTimeout = 2 * time.Second

//go:embed templates/success.html
var successHTML string

//go:embed templates/error.html
var errorHTML string

var (
	successTemplate = template.Must(template.New("success").Parse(successHTML))
	errorTemplate   = template.Must(template.New("error").Parse(errorHTML))
)

// Loopback captures the redirect with a temporary HTTP listener bound to the
// redirect URL's host and port. It serves one redirect, then shuts down.
type Loopback struct {
	open            Opener
	shutdownTimeout time.Duration
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithOpener replaces the system browser. Tests and headless CLIs use it to
// print the URL instead.
func WithOpener(open Opener) LoopbackOption {
	return func(l *Loopback) {
		l.open = open
	}
}

// WithShutdownTimeout sets how long shutdown waits for in-flight responses.
func WithShutdownTimeout(d time.Duration) LoopbackOption {
	return func(l *Loopback) {
		l.shutdownTimeout = d
	}
}

func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		open:            OpenURL,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// listenAddress maps a loopback redirect URL to the address to bind.
func listenAddress(redirect *url.URL) (string, error) {
	if redirect.Scheme != "http" {
		return "", fmt.Errorf("loopback redirect must use http, got %q", redirect.Scheme)
	}
	host := redirect.Hostname()
	switch host {
	case "localhost", "127.0.0.1":
		host = "127.0.0.1"
	case "::1":
	default:
		return "", fmt.Errorf("loopback redirect host must be localhost, got %q", host)
	}
	port := redirect.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(host, port), nil
}

// origin returns scheme://host of a URL, the form CORS compares against.
func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Start implements Browser.
func (l *Loopback) Start(ctx context.Context, authorizationURL, redirectURL string) (Result, error) {
	log := logging.Logger("Browser")

	redirect, err := url.Parse(redirectURL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid redirect URL: %w", err)
	}
	addr, err := listenAddress(redirect)
	if err != nil {
		return Result{}, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return Result{}, fmt.Errorf("failed to start redirect listener on %s: %w", addr, err)
	}

	h := &redirectHandler{
		base:          redirect.Scheme + "://" + redirect.Host,
		allowedOrigin: origin(authorizationURL),
		resultCh:      make(chan Result, 1),
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, h)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	defer l.stop(server, listener, serveErr)

	log.Debug("Redirect listener started", "addr", listener.Addr().String(), "path", path)

	if err := l.open(authorizationURL); err != nil {
		return Result{}, fmt.Errorf("failed to open login page: %w", err)
	}

	select {
	case result := <-h.resultCh:
		log.Debug("Redirect received", "status", result.Status.String())
		return result, nil
	case err := <-serveErr:
		// Serve only returns early on a listener failure.
		serveErr <- err
		return Failure("redirect listener failed: %v", err), nil
	case <-ctx.Done():
		return Result{}, context.Cause(ctx)
	}
}

// stop shuts the server down and waits for Serve to return, so the port is
// free again once Start returns.
func (l *Loopback) stop(server *http.Server, listener net.Listener, serveErr chan error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
	}
	_ = listener.Close()

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Debug("Browser", "Redirect listener stopped: %v", err)
	}
}

// redirectHandler serves the redirect path. Only the first GET counts.
type redirectHandler struct {
	base          string
	allowedOrigin string
	once          sync.Once
	resultCh      chan Result
}

func (h *redirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	if h.allowedOrigin != "" && r.Header.Get("Origin") == h.allowedOrigin {
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin)
		w.Header().Set("Vary", "Origin")
	}

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handled := false
	h.once.Do(func() {
		handled = true
		h.complete(w, r)
	})
	if !handled {
		http.Error(w, "Redirect already processed", http.StatusBadRequest)
	}
}

func (h *redirectHandler) complete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	result := Success(h.base + r.URL.RequestURI())

	var err error
	if errCode := query.Get("error"); errCode != "" {
		if errCode == "access_denied" {
			result = Canceled()
		}
		err = errorTemplate.Execute(w, map[string]string{
			"Error":       errCode,
			"Description": query.Get("error_description"),
		})
	} else {
		err = successTemplate.Execute(w, nil)
	}
	if err != nil {
		logging.Warn("Browser", "Failed to render close page: %v", err)
	}

	h.resultCh <- result
}
