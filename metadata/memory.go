package metadata

import (
	"context"
	"sync"

	"github.com/pilacorp/go-did-sdk/did"
)

// MemoryStore manages metadata in a thread-safe map.
type MemoryStore struct {
	dids        map[did.DID]*DIDMetadata
	credentials map[string]*CredentialMetadata
	mu          sync.RWMutex
}

// NewMemoryStore initializes a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dids:        make(map[did.DID]*DIDMetadata),
		credentials: make(map[string]*CredentialMetadata),
	}
}

// SaveDID implements Store.
func (s *MemoryStore) SaveDID(_ context.Context, id did.DID, md *DIDMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if md == nil {
		delete(s.dids, id)
		return nil
	}
	s.dids[id] = md.Clone()

	return nil
}

// LoadDID implements Store.
func (s *MemoryStore) LoadDID(_ context.Context, id did.DID) (*DIDMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dids[id].Clone(), nil
}

// SaveCredential implements Store.
func (s *MemoryStore) SaveCredential(_ context.Context, id did.DIDURL, md *CredentialMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if md == nil {
		delete(s.credentials, id.String())
		return nil
	}
	s.credentials[id.String()] = md.Clone()

	return nil
}

// LoadCredential implements Store.
func (s *MemoryStore) LoadCredential(_ context.Context, id did.DIDURL) (*CredentialMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credentials[id.String()].Clone(), nil
}
