// Package oauth implements the OAuth2 authorization code flow with PKCE
// against the Sphere authorization server.
//
// # Core Components
//
//   - Credential: the token bundle with expiry evaluation and persisted form
//   - CodeFlow: authorization URL construction and token endpoint exchanges
//   - Transport: the HTTP collaborator shared with the backend client
//   - AuthFailure: explicit rejections, as opposed to transport failures
//   - RedactedToken: keeps secrets out of logs and error strings
//
// # Usage
//
//	flow, err := oauth.NewCodeFlow(oauth.CodeFlowConfig{
//		ClientID:    "my-game",
//		ServerURL:   "https://api.sphere.example",
//		RedirectURI: "http://localhost:8000/spherekit/oauth",
//	})
//
//	authURL, err := flow.BuildAuthorizationURL()
//	// open authURL, capture the redirect...
//	cred, err := flow.ExchangeCodeForCredential(ctx, redirectURL)
//
// Errors from the exchanges are either an *AuthFailure (the server said no,
// or the redirect is unusable) or a wrapped transport error (no response
// was received). Only the former should ever cause a stored credential to be
// discarded.
package oauth
