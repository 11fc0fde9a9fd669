package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectquik/spherekit/pkg/config"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spherekit", "config.yaml")

	out, err := executeRoot(t, "config", "init", "--config", path,
		"--client-id", "game", "--project-id", "proj", "--server-url", "https://sphere.example.com",
		"--login-timeout", "3m")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "game", cfg.ClientID)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, "https://sphere.example.com", cfg.ServerURL)
	assert.Equal(t, 3*time.Minute, cfg.LoginTimeout)
	assert.Equal(t, config.DefaultRefreshMargin, cfg.RefreshMargin)
	require.NoError(t, cfg.Validate())
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clientId: keep\n"), 0600))

	_, err := executeRoot(t, "config", "init", "--config", path, "--client-id", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "clientId: keep\n", string(data))

	_, err = executeRoot(t, "config", "init", "--config", path, "--client-id", "other", "--force")
	require.NoError(t, err)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.ClientID)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clientId: game\nprojectId: proj\nserverUrl: https://sphere.example.com\n"), 0600))

	out, err := executeRoot(t, "config", "show", "--config", path, "--scope", "openid email")
	require.NoError(t, err)
	assert.Contains(t, out, "clientId: game")
	assert.Contains(t, out, "scope: openid email")
}

func TestConfigShow_ReportsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := executeRoot(t, "config", "show", "--config", path)

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, path, cfgErr.FilePath)
	assert.Contains(t, cfgErr.MissingFields, "clientId")
}
