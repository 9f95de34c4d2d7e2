package keystore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestMemoryKeyStore(t *testing.T) {
	ks := NewMemoryKeyStore()
	id := did.MustParseURL("did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN#primary")

	assert.False(t, ks.ContainsPrivateKey(id))
	require.NoError(t, ks.ImportPrivateKeyHex(id, testPrivateKey, "passw0rd"))
	assert.True(t, ks.ContainsPrivateKey(id))

	priv, err := crypto.ParsePrivateKeyHex(testPrivateKey)
	require.NoError(t, err)
	keyBase58 := crypto.PublicKeyBase58(&priv.PublicKey)

	tests := []struct {
		name     string
		id       did.DIDURL
		password string
		wantErr  error
	}{
		{name: "Signs", id: id, password: "passw0rd"},
		{name: "Wrong password", id: id, password: "nope", wantErr: diderrors.ErrWrongPassword},
		{name: "Unknown key", id: did.MustParseURL("did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN#other"), password: "passw0rd", wantErr: diderrors.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ks.Sign(context.Background(), tt.id, tt.password, []byte("hello"), []byte("world"))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, crypto.Verify(keyBase58, crypto.EncodeSignature(sig), []byte("helloworld")))
		})
	}

	require.NoError(t, ks.DeletePrivateKey(id))
	assert.False(t, ks.ContainsPrivateKey(id))
	assert.Error(t, ks.DeletePrivateKey(id))
}

func TestMemoryKeyStoreStoreErrors(t *testing.T) {
	ks := NewMemoryKeyStore()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	id := did.MustParseURL("did:elastos:abc#primary")

	assert.ErrorIs(t, ks.StorePrivateKey(did.DIDURL{}, priv, "pw"), diderrors.ErrIllegalArgument)
	assert.ErrorIs(t, ks.StorePrivateKey(id, nil, "pw"), diderrors.ErrIllegalArgument)
	assert.ErrorIs(t, ks.StorePrivateKey(id, priv, ""), diderrors.ErrIllegalArgument)
	assert.Error(t, ks.ImportPrivateKeyHex(id, "0x12", "pw"))
}

func TestMemoryKeyStoreCanceledContext(t *testing.T) {
	ks := NewMemoryKeyStore()
	id := did.MustParseURL("did:elastos:abc#primary")
	require.NoError(t, ks.ImportPrivateKeyHex(id, testPrivateKey, "pw"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ks.Sign(ctx, id, "pw", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
