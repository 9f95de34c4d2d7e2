package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/did"
)

type failingStore struct {
	*MemoryStore
}

func (s *failingStore) SaveDID(context.Context, did.DID, *DIDMetadata) error {
	return errors.New("disk full")
}

func TestTableWithoutStore(t *testing.T) {
	ctx := context.Background()
	table := NewTable()
	assert.False(t, table.HasStore())

	id := did.MustParse("did:elastos:abc")

	md, err := table.DID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, md)

	now := time.Now().UTC()
	require.NoError(t, table.SetDID(ctx, id, &DIDMetadata{TransactionID: "tx", Published: &now}))

	md, err = table.DID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "tx", md.TransactionID)

	// callers get copies
	md.TransactionID = "changed"
	*md.Published = time.Time{}
	again, err := table.DID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tx", again.TransactionID)
	assert.False(t, again.Published.IsZero())

	require.NoError(t, table.SetDIDAlias(ctx, id, "alias"))
	again, err = table.DID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alias", again.Alias)
	assert.Equal(t, "tx", again.TransactionID)

	require.NoError(t, table.SetDID(ctx, id, nil))
	md, err = table.DID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestTableWithStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	table := NewTable(WithStore(store))
	assert.True(t, table.HasStore())

	vcID := did.MustParseURL("did:elastos:abc#email")
	require.NoError(t, table.SetCredential(ctx, vcID, &CredentialMetadata{TransactionID: "tx", Revoked: true}))

	stored, err := store.LoadCredential(ctx, vcID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Revoked)

	fresh := NewTable(WithStore(store))
	require.NoError(t, fresh.SetCredentialAlias(ctx, vcID, "mail"))
	md, err := fresh.Credential(ctx, vcID)
	require.NoError(t, err)
	assert.Equal(t, "mail", md.Alias)
	assert.True(t, md.Revoked)
}

func TestTableStoreFailure(t *testing.T) {
	table := NewTable(WithStore(&failingStore{MemoryStore: NewMemoryStore()}))

	err := table.SetDID(context.Background(), did.MustParse("did:elastos:abc"), &DIDMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
