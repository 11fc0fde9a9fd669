package credstore

import (
	"sync"

	"github.com/projectquik/spherekit/pkg/oauth"
)

// MemoryStore keeps the credential in process memory. Useful for tests and
// for embedders that persist through their own save system.
type MemoryStore struct {
	mu   sync.Mutex
	cred *oauth.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadCredential() (*oauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.Clone(), nil
}

func (s *MemoryStore) StoreCredential(cred *oauth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred.Clone()
	return nil
}

func (s *MemoryStore) ClearCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
