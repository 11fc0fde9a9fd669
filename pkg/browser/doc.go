// Package browser provides the capabilities that show the Sphere login page
// to the player and capture the OAuth redirect.
//
//   - Loopback: desktop and CLI. Binds the redirect URL's local port for the
//     length of one attempt and opens the system browser.
//   - DeepLink: mobile and embedded shells. The app forwards the redirect it
//     receives as a deep link.
//   - Func: adapter for anything else, including test fakes.
//
// Every implementation reports Success, UserCanceled or Error as a Result and
// returns a non-nil error only when the context ended or the capability could
// not start.
package browser
