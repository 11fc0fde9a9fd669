package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/projectquik/spherekit/pkg/auth"
	"github.com/projectquik/spherekit/pkg/credstore"
	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
	strutil "github.com/projectquik/spherekit/pkg/strings"
)

// lastErrorLen keeps the status table narrow.
const lastErrorLen = 80

// Status-specific flags
var (
	statusJSON  bool
	statusWatch bool
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sign-in status",
	Long: `Show whether a player is signed in, who it is and when the stored
credential expires.

With --watch the status is printed again whenever another process signs in,
refreshes or signs out.

Examples:
  spherekit auth status                # Human readable status
  spherekit auth status --json         # Machine readable status
  spherekit auth status --watch        # Follow credential changes`,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
	authStatusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Print the status again when the stored credential changes")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	if statusWatch {
		return runAuthStatusWatch(cmd)
	}

	setup, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer setup.Manager.Close()

	return printStatus(cmd.OutOrStdout(), setup.Manager.Status(), statusJSON)
}

// runAuthStatusWatch follows the credential file without a manager. The
// credential belongs to whichever process signed in, so the watcher never
// refreshes, schedules or clears it.
func runAuthStatusWatch(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fs, err := credstore.NewFileStore(cfg.CredentialDir, cfg.ServerURL, cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}
	return watchStatus(cmd.Context(), cmd.OutOrStdout(), fs, statusJSON)
}

// watchStatus prints the stored status now and after every change to the
// credential file until ctx ends.
func watchStatus(ctx context.Context, w io.Writer, fs *credstore.FileStore, asJSON bool, opts ...credstore.WatchOption) error {
	sw := &statusWatcher{store: fs, out: w, asJSON: asJSON, absent: auth.ReasonNeverSignedIn}
	sw.report()
	return credstore.Watch(ctx, fs.Path(), sw.report, opts...)
}

// credentialReader is the read half of a credential store.
type credentialReader interface {
	LoadCredential() (*oauth.Credential, error)
}

// statusWatcher reports a credential store read-only.
type statusWatcher struct {
	store  credentialReader
	out    io.Writer
	asJSON bool

	// absent is the reason shown without a credential. It becomes
	// signed_out once a credential has been seen.
	absent auth.Reason
}

func (sw *statusWatcher) report() {
	cred, err := sw.store.LoadCredential()
	if err != nil {
		logging.Warn("CLI", "Could not read stored credential: %v", err)
		cred = nil
	}

	status := auth.StoredStatus(cred, sw.absent, timeNow())
	if cred != nil {
		sw.absent = auth.ReasonSignedOut
	}
	if err := printStatus(sw.out, status, sw.asJSON); err != nil {
		logging.Error("CLI", err, "Failed to print status")
	}
}

// printStatus writes status as a table or, with asJSON, as one JSON line.
func printStatus(w io.Writer, status auth.StatusResponse, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(status)
	}
	renderStatusTable(w, status, timeNow())
	return nil
}

func renderStatusTable(w io.Writer, status auth.StatusResponse, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Sphere sign-in")

	t.AppendRow(table.Row{text.FgHiCyan.Sprint("Status"), formatSignInStatus(status)})

	if p := status.Player; p != nil {
		player := p.UID
		if p.Name != "" {
			player = fmt.Sprintf("%s (%s)", p.Name, p.UID)
		}
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Player"), player})
	}

	if tok := status.Token; tok != nil {
		if tok.ExpiresAt != nil {
			t.AppendRow(table.Row{text.FgHiCyan.Sprint("Expires"), formatExpiry(*tok.ExpiresAt, now)})
		}
		refresh := text.FgYellow.Sprint("Not available")
		if tok.HasRefreshToken {
			refresh = text.FgGreen.Sprint("Available")
			if tok.RefreshTokenExpiresAt != nil {
				refresh += ", expires " + formatExpiry(*tok.RefreshTokenExpiresAt, now)
			}
		}
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Refresh"), refresh})
		if tok.Scope != "" {
			t.AppendRow(table.Row{text.FgHiCyan.Sprint("Scope"), tok.Scope})
		}
	}

	if status.LastRefreshError != "" {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Last error"), text.FgRed.Sprint(strutil.Snippet(status.LastRefreshError, lastErrorLen))})
	}

	t.Render()
}

// formatSignInStatus colours the sign-in state with its reason.
func formatSignInStatus(status auth.StatusResponse) string {
	if status.SignedIn {
		return text.FgGreen.Sprint("Signed in")
	}
	switch status.Reason {
	case auth.ReasonNeverSignedIn.String():
		return text.FgHiBlack.Sprint("Not signed in")
	case auth.ReasonSignedOut.String():
		return text.FgHiBlack.Sprint("Signed out")
	case auth.ReasonExpired.String():
		return text.FgYellow.Sprint("Session expired")
	case auth.ReasonRefreshRejected.String():
		return text.FgRed.Sprint("Session revoked")
	default:
		return text.FgHiBlack.Sprint(status.Reason)
	}
}
