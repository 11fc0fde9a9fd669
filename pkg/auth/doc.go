// Package auth manages the signed-in Sphere identity of a process.
//
// A Session runs one interactive sign-in: it builds a PKCE authorization
// URL, hands it to a browser.Browser and exchanges the captured redirect for
// a credential. Each attempt uses a new Session.
//
// The Manager owns the resulting credential. It restores it on Initialize,
// persists it through a Store, refreshes it ahead of expiry and notifies
// listeners after every transition:
//
//	setup, err := auth.NewFromConfig(cfg, auth.SetupOptions{})
//	if err != nil {
//		return err
//	}
//	defer setup.Manager.Close()
//
//	setup.Manager.AddListener(func(st auth.State) {
//		log.Printf("signed in: %v (%s)", st.IsSignedIn, st.Reason)
//	}, true)
//	if err := setup.Manager.Initialize(ctx); err != nil {
//		return err
//	}
//	if err := setup.Manager.SignIn(ctx, 0); err != nil {
//		return err
//	}
//
// The Manager also implements oauth2.TokenSource, so it can back an
// oauth2.Transport for calls to the Sphere API.
package auth
