package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/projectquik/spherekit/pkg/auth"
	"github.com/projectquik/spherekit/pkg/config"
	"github.com/projectquik/spherekit/pkg/logging"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and flag overrides, then initialises
// logging at the configured level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return cfg, nil
}

// openManager wires and initialises a manager for the command with the
// standard setup. The caller must Close the returned setup's manager.
func openManager(cmd *cobra.Command) (*auth.Setup, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return startManager(cmd, cfg, auth.SetupOptions{})
}

func startManager(cmd *cobra.Command, cfg config.Config, opts auth.SetupOptions) (*auth.Setup, error) {
	setup, err := auth.NewFromConfig(cfg, opts)
	if err != nil {
		return nil, err
	}

	if err := setup.Manager.Initialize(cmd.Context()); err != nil {
		_ = setup.Manager.Close()
		return nil, err
	}
	return setup, nil
}

// requireSignedIn returns auth.ErrNotSignedIn with a hint when st has no
// usable identity.
func requireSignedIn(st auth.State) error {
	if st.IsSignedIn {
		return nil
	}
	return fmt.Errorf("%w (%s); run 'spherekit auth login'", auth.ErrNotSignedIn, st.Reason)
}

// formatDuration renders d at a human granularity.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiry renders t relative to now as "in X" or "expired X ago".
func formatExpiry(t, now time.Time) string {
	remaining := t.Sub(now)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}
