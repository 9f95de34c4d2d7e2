package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/metadata"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metadata.db")

	s, err := Open(path)
	require.NoError(t, err)

	id := did.MustParse("did:elastos:iXcRhYB38gMt1phi5JXJMjeXL2TL8cg58y")
	vcID := id.URL("profile")
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	md, err := s.LoadDID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, md)

	require.NoError(t, s.SaveDID(ctx, id, &metadata.DIDMetadata{TransactionID: "0x01", Published: &published, Alias: "me"}))
	require.NoError(t, s.SaveCredential(ctx, vcID, &metadata.CredentialMetadata{TransactionID: "0x02", Revoked: true}))
	require.NoError(t, s.Close())

	// survives reopening
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	md, err = s.LoadDID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "0x01", md.TransactionID)
	assert.Equal(t, "me", md.Alias)
	require.NotNil(t, md.Published)
	assert.True(t, published.Equal(*md.Published))

	cmd, err := s.LoadCredential(ctx, vcID)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.True(t, cmd.Revoked)

	require.NoError(t, s.SaveDID(ctx, id, nil))
	md, err = s.LoadDID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestStoreAsTableBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	defer s.Close()

	id := did.MustParse("did:elastos:iXcRhYB38gMt1phi5JXJMjeXL2TL8cg58y")

	table := metadata.NewTable(metadata.WithStore(s))
	require.NoError(t, table.SetDIDAlias(ctx, id, "alice"))

	fresh := metadata.NewTable(metadata.WithStore(s))
	md, err := fresh.DID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "alice", md.Alias)
}

func TestStoreCanceledContext(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.SaveDID(ctx, did.MustParse("did:elastos:abc"), &metadata.DIDMetadata{}), context.Canceled)
}
