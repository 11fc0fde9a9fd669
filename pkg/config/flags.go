package config

import (
	"github.com/spf13/pflag"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"client-id":        "clientId",
	"project-id":       "projectId",
	"server-url":       "serverUrl",
	"platform":         "platform",
	"deep-link-scheme": "deepLinkScheme",
	"redirect-uri":     "redirectUri",
	"scope":            "scope",
	"login-timeout":    "loginTimeout",
	"refresh-margin":   "refreshMargin",
	"credential-dir":   "credentialDir",
	"log-level":        "logLevel",
}

// BindFlags registers one flag per config field. Only flags the user sets
// override the file; the defaults shown in help come from Default.
func BindFlags(fs *pflag.FlagSet) {
	def := Default()

	fs.String("client-id", "", "OAuth client ID of the game")
	fs.String("project-id", "", "Sphere project ID")
	fs.String("server-url", "", "Sphere backend URL")
	fs.String("platform", string(def.Platform), "redirect platform (desktop, mobile)")
	fs.String("deep-link-scheme", "", "app URL scheme for mobile redirects")
	fs.String("redirect-uri", "", "override the redirect URI")
	fs.String("scope", def.Scope, "OAuth scope to request")
	fs.Duration("login-timeout", def.LoginTimeout, "how long to wait for the browser sign-in")
	fs.Duration("refresh-margin", def.RefreshMargin, "refresh the access token this long before it expires")
	fs.String("credential-dir", "", "directory holding stored credentials")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
}
