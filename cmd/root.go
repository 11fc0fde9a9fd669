package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/projectquik/spherekit/pkg/auth"
	"github.com/projectquik/spherekit/pkg/config"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no usable credential is held.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the server rejected the sign-in or refresh,
	// or the sign-in did not complete in time.
	ExitCodeAuthFailed = 3
	// ExitCodeCancelled indicates the user or a signal cancelled the sign-in.
	ExitCodeCancelled = 4
)

var configPath string

// rootCmd represents the base command for the spherekit application.
var rootCmd = &cobra.Command{
	Use:   "spherekit",
	Short: "Sign in to Sphere and manage the stored credential",
	Long: `spherekit signs a player in to a Sphere project with OAuth2 PKCE,
keeps the stored credential fresh and reports who is signed in.

Settings are read from ~/.config/spherekit/config.yaml and can be
overridden with flags.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. SIGINT and
// SIGTERM cancel the running command.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "spherekit version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	if auth.IsSignInCancelled(err) || errors.Is(err, context.Canceled) {
		return ExitCodeCancelled
	}

	if errors.Is(err, auth.ErrNotSignedIn) || errors.Is(err, auth.ErrRefreshTokenExpired) {
		return ExitCodeAuthRequired
	}

	if oauth.IsAuthFailure(err) ||
		errors.Is(err, auth.ErrSignInFailed) ||
		errors.Is(err, auth.ErrSignInTimeout) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/spherekit/config.yaml)")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(newConfigCmd())
}
