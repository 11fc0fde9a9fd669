package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// Platform selects how the redirect comes back to the SDK.
type Platform string

const (
	// PlatformDesktop captures the redirect with a loopback listener.
	PlatformDesktop Platform = "desktop"
	// PlatformMobile receives the redirect as an app deep link.
	PlatformMobile Platform = "mobile"
)

const (
	DefaultLoginTimeout  = 10 * time.Minute
	DefaultRefreshMargin = 2 * time.Minute
)

// Config is the SDK configuration. Field tags double as the YAML keys of
// config.yaml and the koanf keys used while layering.
type Config struct {
	// ClientID is the OAuth client registered for the game.
	ClientID string `yaml:"clientId" koanf:"clientId"`
	// ProjectID is the Sphere project, sent as X-Sphere-Project-Name.
	ProjectID string `yaml:"projectId" koanf:"projectId"`
	// ServerURL is the base URL of the Sphere backend.
	ServerURL string `yaml:"serverUrl" koanf:"serverUrl"`

	Platform Platform `yaml:"platform,omitempty" koanf:"platform"`
	// DeepLinkScheme is the app URL scheme; required on mobile.
	DeepLinkScheme string `yaml:"deepLinkScheme,omitempty" koanf:"deepLinkScheme"`
	// RedirectURI overrides the platform default redirect.
	RedirectURI string `yaml:"redirectUri,omitempty" koanf:"redirectUri"`
	Scope       string `yaml:"scope,omitempty" koanf:"scope"`

	LoginTimeout  time.Duration `yaml:"loginTimeout,omitempty" koanf:"loginTimeout"`
	RefreshMargin time.Duration `yaml:"refreshMargin,omitempty" koanf:"refreshMargin"`

	// CredentialDir overrides ~/.config/spherekit/credentials.
	CredentialDir string `yaml:"credentialDir,omitempty" koanf:"credentialDir"`
	LogLevel      string `yaml:"logLevel,omitempty" koanf:"logLevel"`
}

// Default returns the configuration used for every field that no layer sets.
func Default() Config {
	return Config{
		Platform:      PlatformDesktop,
		Scope:         oauth.DefaultScope,
		LoginTimeout:  DefaultLoginTimeout,
		RefreshMargin: DefaultRefreshMargin,
		LogLevel:      "info",
	}
}

// RedirectURL returns the redirect URI sent to the authorization server.
func (c Config) RedirectURL() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	if c.Platform == PlatformMobile {
		return browser.MobileRedirectURL(c.DeepLinkScheme)
	}
	return browser.DefaultRedirectURL
}

// IsMobile reports whether the redirect target is an app deep link.
func (c Config) IsMobile() bool {
	return c.Platform == PlatformMobile
}

// Validate reports every missing or malformed field in one error.
func (c Config) Validate() error {
	var fields []string
	var problems []string

	if strings.TrimSpace(c.ClientID) == "" {
		fields = append(fields, "clientId")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		fields = append(fields, "projectId")
	}
	if strings.TrimSpace(c.ServerURL) == "" {
		fields = append(fields, "serverUrl")
	} else if u, err := url.Parse(c.ServerURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		problems = append(problems, fmt.Sprintf("serverUrl %q is not an http(s) URL", c.ServerURL))
	}

	switch c.Platform {
	case PlatformDesktop, "":
	case PlatformMobile:
		if c.RedirectURI == "" && strings.TrimSpace(c.DeepLinkScheme) == "" {
			fields = append(fields, "deepLinkScheme")
		}
	default:
		problems = append(problems, fmt.Sprintf("platform %q is not one of desktop, mobile", c.Platform))
	}

	if c.LoginTimeout < 0 {
		problems = append(problems, "loginTimeout must not be negative")
	}
	if c.RefreshMargin < 0 {
		problems = append(problems, "refreshMargin must not be negative")
	}

	if len(fields) == 0 && len(problems) == 0 {
		return nil
	}
	return &ConfigurationError{
		MissingFields: fields,
		Problems:      problems,
		Suggestions:   []string{"run 'spherekit config init' or pass the matching flags"},
	}
}
