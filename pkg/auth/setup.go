package auth

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/projectquik/spherekit/internal/metrics"
	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/client"
	"github.com/projectquik/spherekit/pkg/config"
	"github.com/projectquik/spherekit/pkg/credstore"
	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// SetupOptions customizes NewFromConfig. The zero value is the standard
// setup: system browser, file store and no metrics.
type SetupOptions struct {
	// Browser replaces the platform default capability.
	Browser browser.Browser

	// Store replaces the file store.
	Store Store

	// HTTPClient is used for token and backend calls.
	HTTPClient *http.Client

	// Registerer enables metrics when set.
	Registerer prometheus.Registerer

	// ManagerOptions are applied after the ones derived from the config.
	ManagerOptions []Option
}

// Setup is a wired manager with the collaborators callers may need.
type Setup struct {
	Manager *Manager
	Client  *client.Client

	// FileStore is nil when SetupOptions.Store was given.
	FileStore *credstore.FileStore

	// DeepLink is set on mobile; the app passes incoming redirects to its
	// Deliver method.
	DeepLink *browser.DeepLink
}

// NewFromConfig validates cfg and wires a Manager for it. The caller still
// has to call Initialize.
func NewFromConfig(cfg config.Config, opts SetupOptions) (*Setup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := oauth.NewHTTPTransport(opts.HTTPClient)

	flow, err := oauth.NewCodeFlow(oauth.CodeFlowConfig{
		ClientID:    cfg.ClientID,
		ServerURL:   cfg.ServerURL,
		RedirectURI: cfg.RedirectURL(),
		Scope:       cfg.Scope,
	}, oauth.WithTransport(transport), oauth.WithLogger(logging.Logger("OAuth")))
	if err != nil {
		return nil, fmt.Errorf("failed to create code flow: %w", err)
	}

	setup := &Setup{
		Client: client.New(cfg.ServerURL, cfg.ProjectID, transport),
	}

	store := opts.Store
	if store == nil {
		fs, err := credstore.NewFileStore(cfg.CredentialDir, cfg.ServerURL, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create credential store: %w", err)
		}
		setup.FileStore = fs
		store = fs
	}

	br := opts.Browser
	if br == nil {
		if cfg.IsMobile() {
			setup.DeepLink = browser.NewDeepLink(browser.OpenURL)
			br = setup.DeepLink
		} else {
			br = browser.NewLoopback()
		}
	}

	var recorder *metrics.Recorder
	if opts.Registerer != nil {
		recorder = metrics.NewRecorder(opts.Registerer)
	}

	managerOpts := []Option{
		WithBackend(setup.Client),
		WithRefreshMargin(cfg.RefreshMargin),
		WithLoginTimeout(cfg.LoginTimeout),
		WithMetrics(recorder),
	}
	managerOpts = append(managerOpts, opts.ManagerOptions...)

	setup.Manager, err = NewManager(flow, br, store, managerOpts...)
	if err != nil {
		return nil, err
	}

	logging.Debug("Auth", "Configured for %s (project %s, redirect %s)", cfg.ServerURL, cfg.ProjectID, cfg.RedirectURL())
	return setup, nil
}
