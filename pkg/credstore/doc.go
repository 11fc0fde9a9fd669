// Package credstore persists the signed-in player's credential between runs.
//
// FileStore keeps one JSON file per (server URL, project) pair under
// ~/.config/spherekit/credentials, readable only by the owner. MemoryStore
// keeps it in memory. Watch reports changes made to a credential file by
// another process, such as a CLI signing out while a game is running.
//
// LoadCredential returns (nil, nil) when nothing is stored and an error
// wrapping ErrCorrupt when a file exists but cannot be decoded.
package credstore
