package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectquik/spherekit/pkg/browser"
)

func validConfig() Config {
	cfg := Default()
	cfg.ClientID = "game"
	cfg.ProjectID = "proj"
	cfg.ServerURL = "https://api.sphere.test"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
clientId: game
projectId: proj
serverUrl: https://api.sphere.test
loginTimeout: 90s
logLevel: debug
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "game", cfg.ClientID)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, "https://api.sphere.test", cfg.ServerURL)
	assert.Equal(t, 90*time.Second, cfg.LoginTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	// untouched fields keep defaults
	assert.Equal(t, DefaultRefreshMargin, cfg.RefreshMargin)
	assert.Equal(t, PlatformDesktop, cfg.Platform)
}

func TestLoad_ChangedFlagsWin(t *testing.T) {
	path := writeConfig(t, "clientId: from-file\nprojectId: proj\nlogLevel: warn\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--client-id", "from-flag", "--refresh-margin", "30s"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.ClientID)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, 30*time.Second, cfg.RefreshMargin)
	// unset flag defaults do not clobber the file
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "clientId: [unterminated\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := validConfig()
	cfg.LoginTimeout = 5 * time.Minute

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantMissing []string
		wantProblem string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:        "all required missing",
			mutate:      func(c *Config) { c.ClientID, c.ProjectID, c.ServerURL = "", "", "" },
			wantMissing: []string{"clientId", "projectId", "serverUrl"},
		},
		{
			name:        "mobile needs scheme",
			mutate:      func(c *Config) { c.Platform = PlatformMobile },
			wantMissing: []string{"deepLinkScheme"},
		},
		{
			name: "mobile with redirect override",
			mutate: func(c *Config) {
				c.Platform = PlatformMobile
				c.RedirectURI = "mygame://oauth"
			},
		},
		{
			name:        "bad server url",
			mutate:      func(c *Config) { c.ServerURL = "ftp://sphere" },
			wantProblem: "serverUrl",
		},
		{
			name:        "unknown platform",
			mutate:      func(c *Config) { c.Platform = "console" },
			wantProblem: "platform",
		},
		{
			name:        "negative margin",
			mutate:      func(c *Config) { c.RefreshMargin = -time.Second },
			wantProblem: "refreshMargin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantMissing == nil && tt.wantProblem == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantMissing, cfgErr.MissingFields)
			if tt.wantProblem != "" {
				require.NotEmpty(t, cfgErr.Problems)
				assert.Contains(t, cfgErr.Problems[0], tt.wantProblem)
			}
		})
	}
}

func TestConfigurationError_Messages(t *testing.T) {
	err := &ConfigurationError{
		FilePath:      "/tmp/config.yaml",
		MissingFields: []string{"clientId", "projectId"},
		Problems:      []string{"platform \"x\" is not one of desktop, mobile"},
		Suggestions:   []string{"run 'spherekit config init'"},
	}

	assert.Equal(t,
		`invalid configuration: missing required clientId, projectId; platform "x" is not one of desktop, mobile (/tmp/config.yaml)`,
		err.Error())

	detailed := err.DetailedError()
	assert.Contains(t, detailed, "Configuration Error in /tmp/config.yaml")
	assert.Contains(t, detailed, "Missing: clientId")
	assert.Contains(t, detailed, "- run 'spherekit config init'")
}

func TestRedirectURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, browser.DefaultRedirectURL, cfg.RedirectURL())

	cfg.Platform = PlatformMobile
	cfg.DeepLinkScheme = "mygame"
	assert.Equal(t, "mygame://oauth", cfg.RedirectURL())
	assert.True(t, cfg.IsMobile())

	cfg.RedirectURI = "http://127.0.0.1:9000/cb"
	assert.Equal(t, "http://127.0.0.1:9000/cb", cfg.RedirectURL())
}
