package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/pilacorp/go-did-sdk/did"
)

// Table is the side-table of metadata keyed by identifier. It writes through
// to a Store when one is attached; without a store it only keeps values in
// memory.
type Table struct {
	mu          sync.RWMutex
	dids        map[did.DID]*DIDMetadata
	credentials map[string]*CredentialMetadata
	store       Store
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithStore attaches a persistence store.
func WithStore(store Store) TableOption {
	return func(t *Table) {
		t.store = store
	}
}

// NewTable creates an empty table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		dids:        make(map[did.DID]*DIDMetadata),
		credentials: make(map[string]*CredentialMetadata),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// HasStore reports whether a persistence store is attached.
func (t *Table) HasStore() bool {
	return t.store != nil
}

// DID returns a copy of the metadata of id, loading it from the store if it
// is not cached.
func (t *Table) DID(ctx context.Context, id did.DID) (*DIDMetadata, error) {
	t.mu.RLock()
	md, ok := t.dids[id]
	t.mu.RUnlock()

	if ok {
		return md.Clone(), nil
	}

	if t.store == nil {
		return nil, nil
	}

	md, err := t.store.LoadDID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata of %s: %w", id, err)
	}
	if md != nil {
		t.mu.Lock()
		t.dids[id] = md.Clone()
		t.mu.Unlock()
	}

	return md, nil
}

// SetDID replaces the metadata of id and persists it.
func (t *Table) SetDID(ctx context.Context, id did.DID, md *DIDMetadata) error {
	if t.store != nil {
		if err := t.store.SaveDID(ctx, id, md); err != nil {
			return fmt.Errorf("failed to save metadata of %s: %w", id, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if md == nil {
		delete(t.dids, id)
		return nil
	}
	t.dids[id] = md.Clone()

	return nil
}

// SetDIDAlias sets the user alias of id, keeping the rest of its metadata.
func (t *Table) SetDIDAlias(ctx context.Context, id did.DID, alias string) error {
	md, err := t.DID(ctx, id)
	if err != nil {
		return err
	}
	if md == nil {
		md = &DIDMetadata{}
	}
	md.Alias = alias

	return t.SetDID(ctx, id, md)
}

// Credential returns a copy of the metadata of id, loading it from the store
// if it is not cached.
func (t *Table) Credential(ctx context.Context, id did.DIDURL) (*CredentialMetadata, error) {
	key := id.String()

	t.mu.RLock()
	md, ok := t.credentials[key]
	t.mu.RUnlock()

	if ok {
		return md.Clone(), nil
	}

	if t.store == nil {
		return nil, nil
	}

	md, err := t.store.LoadCredential(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata of %s: %w", id, err)
	}
	if md != nil {
		t.mu.Lock()
		t.credentials[key] = md.Clone()
		t.mu.Unlock()
	}

	return md, nil
}

// SetCredential replaces the metadata of id and persists it.
func (t *Table) SetCredential(ctx context.Context, id did.DIDURL, md *CredentialMetadata) error {
	if t.store != nil {
		if err := t.store.SaveCredential(ctx, id, md); err != nil {
			return fmt.Errorf("failed to save metadata of %s: %w", id, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if md == nil {
		delete(t.credentials, id.String())
		return nil
	}
	t.credentials[id.String()] = md.Clone()

	return nil
}

// SetCredentialAlias sets the user alias of id, keeping the rest of its
// metadata.
func (t *Table) SetCredentialAlias(ctx context.Context, id did.DIDURL, alias string) error {
	md, err := t.Credential(ctx, id)
	if err != nil {
		return err
	}
	if md == nil {
		md = &CredentialMetadata{}
	}
	md.Alias = alias

	return t.SetCredential(ctx, id, md)
}
