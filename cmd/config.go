package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/projectquik/spherekit/pkg/config"
)

var configInitForce bool

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect the spherekit configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from defaults and flags",
		Long: `Write a config file holding the defaults overridden by any flags given.

Examples:
  spherekit config init --client-id mygame --project-id proj --server-url https://sphere.example.com
  spherekit config init --config ./spherekit.yaml --force`,
		RunE: runConfigInit,
	}
	initCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after applying the config file and flags, and report anything that is missing.`,
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("config file %s already exists; pass --force to overwrite it", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading config %s: %w", path, err)
	}

	// Flags only; an existing file being overwritten is not merged in.
	cfg, err := config.Load("", cmd.Flags())
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath = path
			fmt.Fprintln(cmd.ErrOrStderr(), cfgErr.DetailedError())
		}
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath, _ = resolveConfigPath()
		}
		return err
	}
	return nil
}
