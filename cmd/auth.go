package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/projectquik/spherekit/pkg/auth"
)

var authQuiet bool

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Sphere sign-in",
	Long: `Manage the signed-in Sphere identity.

The auth command group signs a player in through the browser, shows who is
signed in, refreshes the stored credential and signs out.

Examples:
  spherekit auth login                 # Sign in through the browser
  spherekit auth status                # Show the sign-in status
  spherekit auth status --watch        # Follow changes made by other processes
  spherekit auth refresh               # Force a token refresh
  spherekit auth whoami                # Show the signed-in player
  spherekit auth token                 # Print the access token for scripts
  spherekit auth logout                # Sign out and forget the credential`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored credential",
	Long: `Sign out of Sphere.

The backend is told about the sign-out when the access token is still
valid; the stored credential is removed either way.`,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a token refresh",
	Long: `Exchange the stored refresh token for a new access token.

A rejected or expired refresh token signs the player out; run
'spherekit auth login' afterwards.`,
	RunE: runAuthRefresh,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in player",
	Long:  `Show the player ID and name of the signed-in player.`,
	RunE:  runAuthWhoami,
}

// authTokenCmd represents the auth token command
var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the current access token",
	Long: `Print the current access token to stdout, refreshing it first if it
has expired. Exits with code 2 when no one is signed in.`,
	RunE: runAuthToken,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
func authPrintln(cmd *cobra.Command, a ...interface{}) {
	if !authQuiet {
		fmt.Fprintln(cmd.OutOrStdout(), a...)
	}
}

func init() {
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)
	authCmd.AddCommand(authTokenCmd)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	setup, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer setup.Manager.Close()

	if setup.Manager.Credential() == nil {
		authPrintln(cmd, "Not signed in.")
		return nil
	}

	if err := setup.Manager.SignOut(cmd.Context()); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	authPrintln(cmd, "Signed out.")
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	setup, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer setup.Manager.Close()

	authPrintln(cmd, "Refreshing token...")
	if err := setup.Manager.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	authPrint(cmd, "Token refreshed. %s\n", describeExpiry(setup.Manager.Status()))
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	setup, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer setup.Manager.Close()

	st := setup.Manager.State()
	if err := requireSignedIn(st); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	uid := setup.Manager.Credential().PlayerID()
	fmt.Fprintf(out, "Player:  %s\n", uid)
	if name := st.Player.Name(); name != "" {
		fmt.Fprintf(out, "Name:    %s\n", name)
	}
	if st.Player != nil && st.Player.IsBanned {
		fmt.Fprintf(out, "Status:  %s\n", text.FgRed.Sprint("Banned"))
	}
	return nil
}

func runAuthToken(cmd *cobra.Command, args []string) error {
	setup, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer setup.Manager.Close()

	if err := requireSignedIn(setup.Manager.State()); err != nil {
		return err
	}

	tok, err := setup.Manager.Token()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
	return nil
}

// describeExpiry summarises when the held access token expires.
func describeExpiry(status auth.StatusResponse) string {
	if status.Token == nil || status.Token.ExpiresAt == nil {
		return "Expiry unknown."
	}
	return fmt.Sprintf("Expires %s.", formatExpiry(*status.Token.ExpiresAt, timeNow()))
}
