// Package logging provides subsystem-tagged structured logging for the
// spherekit SDK, built on Go's standard slog package.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging sign-in and refresh flows
//   - **Info**: Identity transitions (signed in, refreshed, signed out)
//   - **Warn**: Recoverable problems (persistence failures, backend unreachable)
//   - **Error**: Failures surfaced to the embedding application
//
// # Usage
//
//	import "github.com/projectquik/spherekit/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Auth", "Signed in as %s", playerID)
//	logging.Error("Auth", err, "Scheduled refresh failed")
//
// Games that already own a logging pipeline route SDK output through it:
//
//	logging.InitWithHandler(myHandler)
//
// Call sites that prefer key/value attributes use Logger:
//
//	log := logging.Logger("CredentialStore")
//	log.Info("credential stored", "path", path)
//
// # Subsystems
//
//   - **Auth**: Token lifecycle manager and authentication session
//   - **OAuth**: PKCE code flow client and token endpoint exchanges
//   - **Browser**: Browser capabilities (loopback listener, deep links)
//   - **CredentialStore**: Credential persistence
//   - **Client**: Sphere backend calls
//   - **Config**: Configuration loading
//
// Token values are never passed to this package; credentials implement
// slog.LogValuer and render tokens as [REDACTED].
package logging
