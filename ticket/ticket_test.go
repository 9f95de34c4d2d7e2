package ticket

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/verification"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/keystore"
	"github.com/pilacorp/go-did-sdk/metadata"
)

const (
	password = "passw0rd"
	lastTxID = "b1c1d8bfc6a8d8e3a2f1e7ad0c9d5f6e4b3a2c1d0e9f8a7b6c5d4e3f2a1b0c9d"
)

var controllerKeys = []string{
	"0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	"0x8f49e4492f97ca6334e15117fc6c4c06f4652cac7fb27ed4ecc5ef9ea6ad5820",
	"0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
}

const outsiderKeyHex = "0xfedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"

func newDocument(t *testing.T, ks *keystore.MemoryKeyStore, privHex string) *document.Document {
	t.Helper()

	priv, err := crypto.ParsePrivateKeyHex(privHex)
	require.NoError(t, err)

	b, err := document.NewBuilderWithKey(crypto.PublicKeyBase58(&priv.PublicKey), "primary")
	require.NoError(t, err)
	require.NoError(t, ks.StorePrivateKey(did.NewURL(b.Subject(), "primary"), priv, password))

	doc, err := b.Seal(context.Background(), ks, password)
	require.NoError(t, err)

	return doc
}

// newTarget creates a customized DID under an m-of-len(controllers) rule,
// signed by as many controllers as the rule requires.
func newTarget(t *testing.T, ks keystore.KeyStore, m int, controllers ...*document.Document) *document.Document {
	t.Helper()
	ctx := context.Background()

	b, err := document.NewCustomizedBuilder(did.MustParse("did:elastos:transferable"), controllers[0])
	require.NoError(t, err)
	for _, c := range controllers[1:] {
		require.NoError(t, b.AddController(c))
	}
	require.NoError(t, b.SetMultiSignature(m))

	doc, err := b.Seal(ctx, ks, password)
	require.NoError(t, err)
	for _, c := range controllers {
		if doc.IsQualified() {
			break
		}
		if signed, err := doc.CoSign(ctx, c, ks, password); err == nil {
			doc = signed
		}
	}
	require.True(t, doc.IsGenuine(nil))

	doc.SetMetadata(&metadata.DIDMetadata{TransactionID: lastTxID})

	return doc
}

type fixture struct {
	ks          *keystore.MemoryKeyStore
	controllers []*document.Document
	outsider    *document.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{ks: keystore.NewMemoryKeyStore()}
	for _, k := range controllerKeys {
		f.controllers = append(f.controllers, newDocument(t, f.ks, k))
	}
	f.outsider = newDocument(t, f.ks, outsiderKeyHex)

	return f
}

func (f *fixture) resolver(target *document.Document) document.Resolver {
	docs := append([]*document.Document{target, f.outsider}, f.controllers...)

	return document.ResolverFunc(func(_ context.Context, id did.DID) (*document.Document, error) {
		for _, d := range docs {
			if d.Subject() == id {
				return d, nil
			}
		}

		return nil, diderrors.ErrDIDNotFound
	})
}

func TestQuorum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for n := 2; n <= len(f.controllers); n++ {
		for m := 1; m <= n; m++ {
			t.Run(fmt.Sprintf("%d of %d", m, n), func(t *testing.T) {
				controllers := f.controllers[:n]
				target := newTarget(t, f.ks, m, controllers...)

				tt, err := New(target, f.outsider.Subject(), "")
				require.NoError(t, err)
				assert.Equal(t, lastTxID, tt.TransactionID())

				for _, c := range controllers[:m-1] {
					require.NoError(t, tt.Seal(ctx, c, f.ks, password))
				}
				assert.False(t, tt.IsQualified())
				genuine, err := tt.IsGenuine(ctx, nil, nil)
				require.NoError(t, err)
				assert.False(t, genuine)

				require.NoError(t, tt.Seal(ctx, controllers[m-1], f.ks, password))
				assert.True(t, tt.IsQualified())
				genuine, err = tt.IsGenuine(ctx, nil, nil)
				require.NoError(t, err)
				assert.True(t, genuine)

				valid, err := tt.IsValid(ctx, nil, nil)
				require.NoError(t, err)
				assert.True(t, valid)
			})
		}
	}
}

func TestDuplicatedController(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := newTarget(t, f.ks, 2, f.controllers...)

	tt, err := New(target, f.outsider.Subject(), "")
	require.NoError(t, err)
	require.NoError(t, tt.Seal(ctx, f.controllers[0], f.ks, password))
	require.NoError(t, tt.Seal(ctx, f.controllers[1], f.ks, password))

	assert.True(t, tt.IsQualified())
	genuine, err := tt.IsGenuine(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, genuine)

	var first Proof
	for _, p := range tt.Proofs() {
		if p.VerificationMethod.DID() == f.controllers[0].Subject() {
			first = p
		}
	}

	forged := &TransferTicket{
		id:     tt.id,
		to:     tt.to,
		txid:   tt.txid,
		proofs: []Proof{first, first},
		doc:    target,
	}
	assert.True(t, forged.IsQualified())

	genuine, err = forged.IsGenuine(ctx, nil, nil)
	require.NoError(t, err)
	assert.False(t, genuine)

	listener := verification.NewDefaultListener("  ", "+", "-")
	genuine, err = forged.IsGenuine(ctx, nil, listener)
	require.NoError(t, err)
	assert.False(t, genuine)
	assert.Contains(t, listener.String(), "signed once")

	data, err := forged.JSON()
	require.NoError(t, err)
	_, err = Parse(data)
	assert.True(t, errors.Is(err, diderrors.ErrMalformedTransferTicket))
}

func TestSealErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := newTarget(t, f.ks, 2, f.controllers...)

	tt, err := New(target, f.outsider.Subject(), "")
	require.NoError(t, err)

	err = tt.Seal(ctx, f.outsider, f.ks, password)
	assert.True(t, errors.Is(err, diderrors.ErrNotController))
	assert.True(t, errors.Is(err, diderrors.ErrIllegalArgument))

	require.NoError(t, tt.Seal(ctx, f.controllers[0], f.ks, password))
	err = tt.Seal(ctx, f.controllers[0], f.ks, password)
	assert.True(t, errors.Is(err, diderrors.ErrAlreadySigned))
	assert.True(t, errors.Is(err, diderrors.ErrIllegalState))

	data, err := target.JSON(true)
	require.NoError(t, err)
	multi, err := document.Parse(data)
	require.NoError(t, err)
	err = tt.Seal(ctx, multi, f.ks, password)
	assert.True(t, errors.Is(err, diderrors.ErrNoEffectiveController))

	require.NoError(t, tt.Seal(ctx, f.controllers[1], f.ks, password))
	require.NoError(t, tt.Seal(ctx, f.controllers[2], f.ks, password))
	assert.Len(t, tt.Proofs(), 2)

	_, err = New(f.outsider, f.controllers[0].Subject(), "tx")
	assert.True(t, errors.Is(err, diderrors.ErrNotCustomizedDID))

	_, err = New(newTarget(t, f.ks, 1, f.controllers[0]), did.DID{}, "tx")
	assert.True(t, errors.Is(err, diderrors.ErrIllegalArgument))
}

func TestParseAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := newTarget(t, f.ks, 2, f.controllers...)

	tt, err := New(target, f.outsider.Subject(), "")
	require.NoError(t, err)
	require.NoError(t, tt.Seal(ctx, f.controllers[2], f.ks, password))
	require.NoError(t, tt.Seal(ctx, f.controllers[1], f.ks, password))

	data, err := tt.JSON()
	require.NoError(t, err)

	parsed, err := Parse(data, WithSchemaValidation())
	require.NoError(t, err)
	assert.Nil(t, parsed.Document())
	assert.False(t, parsed.IsQualified())

	again, err := parsed.JSON()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	input, err := parsed.SigningInput()
	require.NoError(t, err)
	assert.NotContains(t, string(input), jsonFldProof)

	valid, err := parsed.IsValid(ctx, f.resolver(target), nil)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, parsed.IsQualified())

	stale, err := New(target, f.outsider.Subject(), "outdated")
	require.NoError(t, err)
	require.NoError(t, stale.Seal(ctx, f.controllers[0], f.ks, password))
	require.NoError(t, stale.Seal(ctx, f.controllers[1], f.ks, password))

	genuine, err := stale.IsGenuine(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, genuine)
	valid, err = stale.IsValid(ctx, nil, nil)
	require.NoError(t, err)
	assert.False(t, valid)

	m := tt.Map()
	m[jsonFldTo] = f.controllers[0].Subject().String()
	tampered, err := ParseMap(m)
	require.NoError(t, err)
	genuine, err = tampered.IsGenuine(ctx, f.resolver(target), nil)
	require.NoError(t, err)
	assert.False(t, genuine)

	unknown, err := Parse(data)
	require.NoError(t, err)
	genuine, err = unknown.IsGenuine(ctx, f.resolver(f.outsider), nil)
	require.NoError(t, err)
	assert.False(t, genuine)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		m    jsonmap.JSONMap
		msg  string
	}{
		{
			name: "Missing proof",
			m:    jsonmap.JSONMap{"id": "did:elastos:foo", "to": "did:elastos:bar", "txid": "tx"},
			msg:  "missing ticket proof",
		},
		{
			name: "Missing txid",
			m:    jsonmap.JSONMap{"id": "did:elastos:foo", "to": "did:elastos:bar"},
			msg:  "missing ticket txid",
		},
		{
			name: "Invalid to",
			m:    jsonmap.JSONMap{"id": "did:elastos:foo", "to": "bar", "txid": "tx"},
			msg:  "invalid ticket to",
		},
		{
			name: "Missing signature",
			m: jsonmap.JSONMap{"id": "did:elastos:foo", "to": "did:elastos:bar", "txid": "tx",
				"proof": map[string]interface{}{"verificationMethod": "did:elastos:baz#primary"}},
			msg: "missing ticket proof signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMap(tt.m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diderrors.ErrMalformedTransferTicket))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
