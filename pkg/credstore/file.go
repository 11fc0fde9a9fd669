package credstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
)

// DefaultDir is the credential directory relative to the user's home.
const DefaultDir = ".config/spherekit/credentials"

// ErrCorrupt is returned by LoadCredential when a credential file exists but
// cannot be decoded.
var ErrCorrupt = errors.New("stored credential is corrupt")

// DefaultDirectory resolves DefaultDir against the home directory.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDir), nil
}

// FileStore persists one credential as a JSON file.
//
// SECURITY: the file holds live tokens.
//   - The directory is created 0700 and the file written 0600
//   - Writes go to a temporary file that is renamed into place, so a reader
//     never sees a half-written credential
//   - Token values are never logged, only the player and expiry
type FileStore struct {
	mu        sync.Mutex
	path      string
	serverURL string
	projectID string
}

// NewFileStore returns the store for one (server URL, project ID) pair
// under dir, or under DefaultDirectory when dir is empty.
func NewFileStore(dir, serverURL, projectID string) (*FileStore, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	return &FileStore{
		path:      filepath.Join(dir, fileKey(serverURL, projectID)+".json"),
		serverURL: serverURL,
		projectID: projectID,
	}, nil
}

// fileKey derives a filesystem-safe name from the server and project.
func fileKey(serverURL, projectID string) string {
	hash := sha256.Sum256([]byte(serverURL + "\x00" + projectID))
	return hex.EncodeToString(hash[:16])
}

// Path returns the credential file path.
func (s *FileStore) Path() string {
	return s.path
}

// LoadCredential returns the stored credential, or nil when there is none.
func (s *FileStore) LoadCredential() (*oauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path is derived from a hash, not user input
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var cred oauth.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", ErrCorrupt)
	}
	return &cred, nil
}

// StoreCredential atomically replaces the stored credential.
func (s *FileStore) StoreCredential(cred *oauth.Credential) error {
	if cred == nil {
		return errors.New("cannot store nil credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(cred); err != nil {
		logging.Logger("CredentialStore").Warn("SECURITY_AUDIT: credential storage failed",
			"event", "credential_store_failed",
			"server_url", s.serverURL,
			"project", s.projectID,
			"error", err.Error(),
		)
		return err
	}

	attrs := []any{
		"event", "credential_stored",
		"server_url", s.serverURL,
		"project", s.projectID,
		"player_id", cred.PlayerID(),
		"has_refresh_token", cred.HasRefreshToken(),
	}
	if exp, ok := cred.ExpiresAt(); ok {
		attrs = append(attrs, "expires_at", exp)
	}
	logging.Logger("CredentialStore").Info("SECURITY_AUDIT: credential stored", attrs...)
	return nil
}

func (s *FileStore) writeFile(cred *oauth.Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

// ClearCredential removes the stored credential. Clearing an empty store
// succeeds.
func (s *FileStore) ClearCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Logger("CredentialStore").Warn("SECURITY_AUDIT: credential deletion failed",
			"event", "credential_delete_failed",
			"server_url", s.serverURL,
			"project", s.projectID,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to remove credential: %w", err)
	}

	logging.Logger("CredentialStore").Info("SECURITY_AUDIT: credential deleted",
		"event", "credential_deleted",
		"server_url", s.serverURL,
		"project", s.projectID,
	)
	return nil
}
