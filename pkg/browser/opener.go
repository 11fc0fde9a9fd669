package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Opener shows a URL to the user.
type Opener func(rawURL string) error

// launcher starts the platform command. Tests replace it.
var launcher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenURL opens an http or https URL in the default web browser on Linux,
// macOS or Windows. It does not wait for the browser to exit.
func OpenURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q", u.Scheme)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := launcher(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
