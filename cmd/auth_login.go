package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/projectquik/spherekit/pkg/auth"
	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/logging"
)

// Login-specific flags
var (
	loginForce   bool
	loginNoOpen  bool
	loginTimeout time.Duration
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Sphere through the browser",
	Long: `Sign in to Sphere with the OAuth2 authorization code flow and PKCE.

The sign-in page opens in the system browser and the redirect is captured
on the loopback address of the configured redirect URI. The credential is
stored for later commands and refreshed before it expires.

Examples:
  spherekit auth login                  # Sign in if not signed in yet
  spherekit auth login --force          # Sign out first, then sign in again
  spherekit auth login --no-browser     # Print the URL instead of opening it
  spherekit auth login --timeout 2m     # Give up after two minutes`,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in again even if already signed in")
	authLoginCmd.Flags().BoolVar(&loginNoOpen, "no-browser", false, "Print the sign-in URL instead of opening the browser")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "How long to wait for the browser (default from config)")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.IsMobile() {
		return errors.New("the mobile platform signs in through the app's deep link; use platform desktop for the CLI")
	}

	progress := &loginProgress{w: cmd.ErrOrStderr(), quiet: authQuiet}
	opener := loginOpener(cmd.ErrOrStderr(), loginNoOpen, progress.start)
	setup, err := startManager(cmd, cfg, auth.SetupOptions{
		Browser: browser.NewLoopback(browser.WithOpener(opener)),
	})
	if err != nil {
		return err
	}
	defer setup.Manager.Close()
	m := setup.Manager

	if st := m.State(); st.IsSignedIn {
		if !loginForce {
			authPrint(cmd, "Already signed in as %s.\n", playerLabel(st, m.Credential().PlayerID()))
			return nil
		}
		if err := m.SignOut(ctx); err != nil {
			return fmt.Errorf("failed to sign out before signing in again: %w", err)
		}
	}

	err = m.SignIn(ctx, loginTimeout)
	progress.finish(err)
	if err != nil {
		return err
	}

	st := m.State()
	authPrint(cmd, "Signed in as %s. %s\n", playerLabel(st, m.Credential().PlayerID()), describeExpiry(m.Status()))
	return nil
}

// loginOpener announces the sign-in URL, opens it unless printOnly is set
// and then calls started. A browser that fails to launch is not fatal: the
// URL is on screen.
func loginOpener(w io.Writer, printOnly bool, started func()) browser.Opener {
	return func(rawURL string) error {
		if printOnly {
			fmt.Fprintf(w, "Open this URL to sign in:\n  %s\n", rawURL)
		} else {
			fmt.Fprintf(w, "Opening the browser to sign in. If it does not open, visit:\n  %s\n", rawURL)
			if err := browser.OpenURL(rawURL); err != nil {
				logging.Warn("CLI", "Could not open browser: %v", err)
			}
		}
		if started != nil {
			started()
		}
		return nil
	}
}

// loginProgress shows a spinner while the browser sign-in is pending.
type loginProgress struct {
	w     io.Writer
	quiet bool
	s     *spinner.Spinner
}

func (p *loginProgress) start() {
	if p.quiet || p.s != nil {
		return
	}
	p.s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.w))
	p.s.Suffix = " Waiting for sign-in in the browser..."
	p.s.Start()
}

func (p *loginProgress) finish(err error) {
	if p.s == nil {
		return
	}
	switch {
	case err == nil:
	case auth.IsSignInCancelled(err):
		p.s.FinalMSG = text.FgYellow.Sprint("Sign-in cancelled") + "\n"
	default:
		p.s.FinalMSG = text.FgRed.Sprint("Sign-in failed") + "\n"
	}
	p.s.Stop()
	p.s = nil
}

// playerLabel names the player for display, falling back to the ID.
func playerLabel(st auth.State, uid string) string {
	if name := st.Player.Name(); name != "" {
		return fmt.Sprintf("%s (%s)", name, uid)
	}
	if uid == "" {
		return "unknown player"
	}
	return uid
}
