// Package client is a thin client for the Sphere backend calls the identity
// lifecycle needs: looking up the signed-in player and notifying the backend
// of a sign-out.
//
// Requests authenticate with an oauth2.TokenSource and carry the project in
// the X-Sphere-Project-Name header. Failed calls return samber/oops errors
// whose code (see ErrorCode) is one of the Code constants.
package client
