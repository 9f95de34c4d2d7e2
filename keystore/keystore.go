// Package keystore holds the private keys used to seal documents,
// credentials, presentations, tickets and chain requests.
package keystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-keystore")

// KeyStore signs with private keys identified by their verification method id.
type KeyStore interface {
	// Sign returns the 64 byte signature of sha256(data[0] || ... || data[n-1]).
	Sign(ctx context.Context, id did.DIDURL, password string, data ...[]byte) ([]byte, error)
	// ContainsPrivateKey reports whether the store holds the private key of id.
	ContainsPrivateKey(id did.DIDURL) bool
}

type entry struct {
	priv     *ecdsa.PrivateKey
	password [sha256.Size]byte
}

// MemoryKeyStore keeps password protected keys in memory.
type MemoryKeyStore struct {
	keys map[string]entry
	mu   sync.RWMutex
}

// NewMemoryKeyStore initializes an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys: make(map[string]entry),
	}
}

// StorePrivateKey adds or replaces the private key of id.
func (s *MemoryKeyStore) StorePrivateKey(id did.DIDURL, priv *ecdsa.PrivateKey, password string) error {
	if id.IsZero() {
		return fmt.Errorf("%w: key id is empty", diderrors.ErrIllegalArgument)
	}
	if priv == nil {
		return fmt.Errorf("%w: private key is nil", diderrors.ErrIllegalArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: password is empty", diderrors.ErrIllegalArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[id.String()] = entry{priv: priv, password: sha256.Sum256([]byte(password))}

	return nil
}

// ImportPrivateKeyHex parses a hex private key and stores it under id.
func (s *MemoryKeyStore) ImportPrivateKeyHex(id did.DIDURL, privHex, password string) error {
	priv, err := crypto.ParsePrivateKeyHex(privHex)
	if err != nil {
		return err
	}

	return s.StorePrivateKey(id, priv, password)
}

// DeletePrivateKey removes the private key of id.
func (s *MemoryKeyStore) DeletePrivateKey(id did.DIDURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[id.String()]; !exists {
		return errors.New("private key not found")
	}
	delete(s.keys, id.String())

	return nil
}

// ContainsPrivateKey implements KeyStore.
func (s *MemoryKeyStore) ContainsPrivateKey(id did.DIDURL) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.keys[id.String()]

	return exists
}

// Sign implements KeyStore.
func (s *MemoryKeyStore) Sign(ctx context.Context, id did.DIDURL, password string, data ...[]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, exists := s.keys[id.String()]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: no private key for %s", diderrors.ErrInvalidKey, id)
	}

	given := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(given[:], e.password[:]) != 1 {
		return nil, diderrors.ErrWrongPassword
	}

	sig, err := crypto.Sign(e.priv, data...)
	if err != nil {
		return nil, fmt.Errorf("failed to sign with %s: %w", id, err)
	}

	logger.Debug("Signed data", logfields.WithKeyID(id), logfields.WithCount(len(data)))

	return sig, nil
}
