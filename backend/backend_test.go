package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/biography"
	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/idchain"
	"github.com/pilacorp/go-did-sdk/keystore"
	"github.com/pilacorp/go-did-sdk/metadata"
)

const (
	aliceKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	bobKeyHex   = "0x8f49e4492f97ca6334e15117fc6c4c06f4652cac7fb27ed4ecc5ef9ea6ad5820"
	password    = "passw0rd"
)

// simulatedChain is an in-memory ID chain answering resolve requests.
type simulatedChain struct {
	mu     sync.Mutex
	seq    int
	parser *did.Parser
	dids   map[did.DID][]*idchain.DIDTransaction
	creds  map[string][]*idchain.CredentialTransaction
}

func newSimulatedChain() *simulatedChain {
	return newSimulatedChainFor(did.DefaultParser())
}

func newSimulatedChainFor(parser *did.Parser) *simulatedChain {
	return &simulatedChain{
		parser: parser,
		dids:   make(map[did.DID][]*idchain.DIDTransaction),
		creds:  make(map[string][]*idchain.CredentialTransaction),
	}
}

func (c *simulatedChain) nextTx() (string, time.Time) {
	c.seq++

	return fmt.Sprintf("tx%d", c.seq), time.Date(2021, 1, 22, 6, 40, c.seq, 0, time.UTC)
}

// CreateIDTransaction implements ChainAdapter.
func (c *simulatedChain) CreateIDTransaction(_ context.Context, payload, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, err := idchain.ParseDIDRequest([]byte(payload), idchain.WithParser(c.parser)); err == nil {
		txID, ts := c.nextTx()
		c.dids[r.DID()] = append([]*idchain.DIDTransaction{idchain.NewDIDTransaction(txID, ts, r)}, c.dids[r.DID()]...)

		return nil
	}

	r, err := idchain.ParseCredentialRequest([]byte(payload), idchain.WithParser(c.parser))
	if err != nil {
		return err
	}

	txID, ts := c.nextTx()
	key := r.CredentialID().String()
	c.creds[key] = append([]*idchain.CredentialTransaction{idchain.NewCredentialTransaction(txID, ts, r)}, c.creds[key]...)

	return nil
}

// Resolve implements Transport.
func (c *simulatedChain) Resolve(_ context.Context, data []byte) ([]byte, error) {
	req, err := ParseRequest(data, WithParser(c.parser))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch r := req.(type) {
	case *DIDResolveRequest:
		txs := c.dids[r.DID()]
		status := biography.DIDStatusValid
		switch {
		case len(txs) == 0:
			status = biography.DIDStatusNotFound
		case txs[0].Request().Operation() == idchain.Deactivate:
			status = biography.DIDStatusDeactivated
			if !r.All() && len(txs) > 2 {
				txs = txs[:2]
			}
		case !r.All():
			txs = txs[:1]
		}

		bio := biography.NewDIDBiography(r.DID(), status)
		for _, tx := range txs {
			if err := bio.AppendTransaction(tx); err != nil {
				return nil, err
			}
		}

		return NewResponse(r.ID(), bio).JSON()

	case *CredentialResolveRequest:
		txs := c.creds[r.CredentialID().String()]
		status := biography.CredentialStatusValid
		switch {
		case len(txs) == 0:
			status = biography.CredentialStatusNotFound
		case txs[0].Request().Operation() == idchain.Revoke:
			status = biography.CredentialStatusRevoked
		}

		bio := biography.NewCredentialBiography(r.CredentialID(), status)
		for _, tx := range txs {
			if err := bio.AppendTransaction(tx); err != nil {
				return nil, err
			}
		}

		return NewResponse(r.ID(), bio).JSON()

	case *CredentialListRequest:
		var ids []did.DIDURL
		for _, txs := range c.creds {
			id := txs[len(txs)-1].CredentialID()
			if id.DID() == r.DID() && txs[len(txs)-1].Request().Operation() == idchain.Declare {
				ids = append(ids, id)
			}
		}

		if r.Skip() >= len(ids) {
			ids = nil
		} else {
			ids = ids[r.Skip():]
		}
		if len(ids) > r.Limit() {
			ids = ids[:r.Limit()]
		}

		return NewResponse(r.ID(), NewCredentialList(r.DID(), ids...)).JSON()
	}

	return nil, fmt.Errorf("unexpected request %T", req)
}

type fixture struct {
	ctx     context.Context
	parser  *did.Parser
	ks      *keystore.MemoryKeyStore
	chain   *simulatedChain
	backend *Backend
	table   *metadata.Table
	alice   *document.Document
	bob     *document.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return newFixtureFor(t, did.DefaultParser())
}

func newFixtureFor(t *testing.T, parser *did.Parser) *fixture {
	t.Helper()

	f := &fixture{
		ctx:    context.Background(),
		parser: parser,
		ks:     keystore.NewMemoryKeyStore(),
		chain:  newSimulatedChainFor(parser),
		table:  metadata.NewTable(),
	}
	f.backend = New(f.chain, WithChainAdapter(f.chain), WithMetadataTable(f.table), WithBatchLimit(2),
		WithParseOptions(WithParser(parser)))
	f.alice = f.newDocument(t, aliceKeyHex)
	f.bob = f.newDocument(t, bobKeyHex)

	return f
}

func (f *fixture) newDocument(t *testing.T, privHex string) *document.Document {
	t.Helper()

	priv, err := crypto.ParsePrivateKeyHex(privHex)
	require.NoError(t, err)

	b, err := document.NewBuilderWithKey(crypto.PublicKeyBase58(&priv.PublicKey), "primary",
		document.WithParser(f.parser))
	require.NoError(t, err)
	require.NoError(t, f.ks.StorePrivateKey(did.NewURL(b.Subject(), "primary"), priv, password))

	doc, err := b.Seal(f.ctx, f.ks, password)
	require.NoError(t, err)

	return doc
}

func (f *fixture) signer() idchain.Signer {
	return idchain.Signer{KeyStore: f.ks, Password: password}
}

func (f *fixture) publishDocument(t *testing.T, doc *document.Document) {
	t.Helper()

	r, err := idchain.NewCreateRequest(f.ctx, doc, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, r, ""))
}

func (f *fixture) newCredential(t *testing.T, fragment string) *vc.Credential {
	t.Helper()

	cb := vc.NewBuilder(f.alice, f.alice.Subject())
	require.NoError(t, cb.ID("#"+fragment))
	require.NoError(t, cb.Types("ProfileCredential"))
	require.NoError(t, cb.Property("name", "Alice"))

	cred, err := cb.Seal(f.ctx, f.ks, password)
	require.NoError(t, err)

	return cred
}

func TestNewCredentialListRequest(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")

	tests := []struct {
		name  string
		skip  int
		limit int
		want  int
		valid bool
	}{
		{name: "Default limit", skip: 0, limit: 0, want: DefaultListLimit, valid: true},
		{name: "Max limit", skip: 10, limit: MaxListLimit, want: MaxListLimit, valid: true},
		{name: "Negative skip", skip: -1, limit: 10},
		{name: "Negative limit", skip: 0, limit: -1},
		{name: "Limit too large", skip: 0, limit: MaxListLimit + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewCredentialListRequest(id, tt.skip, tt.limit)
			if !tt.valid {
				require.Error(t, err)
				assert.True(t, errors.Is(err, diderrors.ErrIllegalArgument))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Limit())
			assert.Equal(t, tt.skip, r.Skip())
		})
	}
}

func TestRequestSerialization(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")
	credID := did.NewURL(id, "profile")

	list, err := NewCredentialListRequest(id, 5, 20)
	require.NoError(t, err)

	requests := []Request{
		NewDIDResolveRequest(id, true),
		NewCredentialResolveRequest(credID, id),
		NewCredentialResolveRequest(credID, did.DID{}),
		list,
	}

	for _, r := range requests {
		t.Run(string(r.Method()), func(t *testing.T) {
			assert.Len(t, r.ID(), 32)

			data, err := SerializeRequest(r)
			require.NoError(t, err)

			parsed, err := ParseRequest(data)
			require.NoError(t, err)
			assert.Equal(t, r.ID(), parsed.ID())
			assert.Equal(t, r.Method(), parsed.Method())
			assert.Equal(t, r.Params(), parsed.Params())
		})
	}

	data, err := SerializeRequest(NewDIDResolveRequest(id, false))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method":"resolvedid","params":[{"all":false,"did":"`+id.String()+`"}]`)

	_, err = ParseRequest([]byte(`{"id":"1","method":"resolvedid","params":[]}`))
	assert.True(t, errors.Is(err, diderrors.ErrMalformedResolveRequest))

	_, err = ParseRequest([]byte(`{"id":"1","method":"unknown","params":[{}]}`))
	assert.True(t, errors.Is(err, diderrors.ErrMalformedResolveRequest))

	_, err = ParseRequest([]byte(`{"id":"1","method":"listcredentials","params":[{"did":"` + id.String() + `","skip":-1}]}`))
	assert.True(t, errors.Is(err, diderrors.ErrMalformedResolveRequest))
}

func TestParseResponse(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")

	tests := []struct {
		name string
		data string
		err  error
	}{
		{
			name: "Not found",
			data: fmt.Sprintf(`{"id":"1","jsonrpc":"2.0","result":{"did":"%s","status":3}}`, id),
		},
		{
			name: "Error only",
			data: `{"id":"1","jsonrpc":"2.0","error":{"code":-32602,"message":"invalid params"}}`,
		},
		{
			name: "Wrong version",
			data: fmt.Sprintf(`{"id":"1","jsonrpc":"1.0","result":{"did":"%s","status":3}}`, id),
			err:  diderrors.ErrMalformedResolveResponse,
		},
		{
			name: "Missing result and error",
			data: `{"id":"1","jsonrpc":"2.0"}`,
			err:  diderrors.ErrMalformedResolveResponse,
		},
		{
			name: "Valid without transaction",
			data: fmt.Sprintf(`{"id":"1","jsonrpc":"2.0","result":{"did":"%s","status":0}}`, id),
			err:  diderrors.ErrMalformedResolveResponse,
		},
		{
			name: "Invalid error code",
			data: `{"id":"1","jsonrpc":"2.0","error":{"code":"x","message":"invalid params"}}`,
			err:  diderrors.ErrMalformedResolveResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseDIDResolveResponse([]byte(tt.data))
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "1", resp.ID())
			assert.Equal(t, JSONRPCVersion, resp.Version())
		})
	}

	list, err := ParseCredentialListResponse([]byte(fmt.Sprintf(
		`{"id":"2","jsonrpc":"2.0","result":{"did":"%s","credentials":["#profile","%s#email"]}}`, id, id)))
	require.NoError(t, err)
	res, ok := list.Result()
	require.True(t, ok)
	assert.Equal(t, []did.DIDURL{did.NewURL(id, "profile"), did.NewURL(id, "email")}, res.CredentialIDs())

	_, err = ParseCredentialListResponse([]byte(fmt.Sprintf(
		`{"id":"2","jsonrpc":"2.0","result":{"did":"%s","credentials":["did:elastos:other#profile"]}}`, id)))
	assert.True(t, errors.Is(err, diderrors.ErrMalformedResolveResponse))
}

func TestResolveDID(t *testing.T) {
	f := newFixture(t)

	doc, err := f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = f.backend.ResolveDocument(f.ctx, f.alice.Subject())
	assert.True(t, errors.Is(err, diderrors.ErrDIDNotFound))

	f.publishDocument(t, f.alice)

	doc, err = f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, f.alice.Subject(), doc.Subject())
	assert.Equal(t, "tx1", doc.TransactionID())
	assert.True(t, doc.IsValid(nil))

	builder, err := doc.Edit()
	require.NoError(t, err)
	require.NoError(t, builder.AddService("#hub", "HubService", "https://hub.example.com", nil))
	updated, err := builder.Seal(f.ctx, f.ks, password)
	require.NoError(t, err)

	update, err := idchain.NewUpdateRequest(f.ctx, updated, doc.TransactionID(), f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, update, ""))

	doc, err = f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	assert.Equal(t, "tx2", doc.TransactionID())
	assert.Len(t, doc.Services(), 1)

	md, err := f.table.DID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "tx2", md.TransactionID)
	assert.False(t, md.Deactivated)

	bio, err := f.backend.ResolveDIDBiography(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	require.Equal(t, 2, bio.Count())
	assert.Equal(t, idchain.Update, bio.Transaction(0).Request().Operation())

	bio, err = f.backend.ResolveDIDBiography(f.ctx, f.bob.Subject())
	require.NoError(t, err)
	assert.Nil(t, bio)
}

func TestResolveDeactivatedDID(t *testing.T) {
	f := newFixture(t)
	f.publishDocument(t, f.alice)

	deactivate, err := idchain.NewDeactivateRequest(f.ctx, f.alice, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, deactivate, ""))

	doc, err := f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.IsDeactivated())
	assert.Equal(t, "tx1", doc.TransactionID())
	assert.False(t, doc.IsValid(nil))
}

func TestResolveDIDForgedDeactivation(t *testing.T) {
	f := newFixture(t)
	f.publishDocument(t, f.alice)
	f.publishDocument(t, f.bob)

	// bob signs a deactivation of his own DID; the chain files it under alice
	forged, err := idchain.NewDeactivateRequest(f.ctx, f.bob, f.signer())
	require.NoError(t, err)
	data, err := forged.JSON()
	require.NoError(t, err)
	data = []byte(strings.ReplaceAll(string(data), f.bob.Subject().String(), f.alice.Subject().String()))
	parsed, err := idchain.ParseDIDRequest(data)
	require.NoError(t, err)

	f.chain.mu.Lock()
	f.chain.dids[f.alice.Subject()] = append([]*idchain.DIDTransaction{
		idchain.NewDIDTransaction("forged", time.Now(), parsed),
	}, f.chain.dids[f.alice.Subject()]...)
	f.chain.mu.Unlock()

	_, err = f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.Error(t, err)
	assert.True(t, errors.Is(err, diderrors.ErrDIDResolve))
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestResolveCredential(t *testing.T) {
	f := newFixture(t)
	f.publishDocument(t, f.alice)

	cred := f.newCredential(t, "profile")

	got, md, err := f.backend.ResolveCredential(f.ctx, cred.ID(), did.DID{})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, md)

	declare, err := idchain.NewDeclareRequest(f.ctx, cred, f.alice, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, declare, ""))

	got, md, err = f.backend.ResolveCredential(f.ctx, cred.ID(), did.DID{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ID().Equal(cred.ID()))
	assert.Equal(t, "tx2", md.TransactionID)
	assert.False(t, md.Revoked)

	ids, err := f.backend.ListCredentials(f.ctx, f.alice.Subject(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []did.DIDURL{cred.ID()}, ids)

	revoked, err := got.IsRevoked(f.ctx, f.backend)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoke, err := idchain.NewRevokeRequest(f.ctx, cred, f.alice, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, revoke, ""))

	got, md, err = f.backend.ResolveCredential(f.ctx, cred.ID(), f.alice.Subject())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tx2", md.TransactionID)
	assert.True(t, md.Revoked)

	revoked, err = got.IsRevoked(f.ctx, f.backend)
	require.NoError(t, err)
	assert.True(t, revoked)

	stored, err := f.table.Credential(f.ctx, cred.ID())
	require.NoError(t, err)
	assert.True(t, stored.Revoked)

	bio, err := f.backend.ResolveCredentialBiography(f.ctx, cred.ID(), did.DID{})
	require.NoError(t, err)
	assert.Equal(t, biography.CredentialStatusRevoked, bio.Status())
	assert.Equal(t, 2, bio.Count())
}

func TestResolveRevokedUndeclaredCredential(t *testing.T) {
	f := newFixture(t)
	f.publishDocument(t, f.alice)

	id := did.NewURL(f.alice.Subject(), "never-declared")
	revoke, err := idchain.NewRevokeByIDRequest(f.ctx, id, f.alice, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, revoke, ""))

	cred, md, err := f.backend.ResolveCredential(f.ctx, id, did.DID{})
	require.NoError(t, err)
	assert.Nil(t, cred)
	require.NotNil(t, md)
	assert.True(t, md.Revoked)

	revoked, err := f.backend.IsCredentialRevoked(f.ctx, id, did.DID{})
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestResolveCredentials(t *testing.T) {
	f := newFixture(t)
	f.publishDocument(t, f.alice)

	var ids []did.DIDURL
	for i := 0; i < 5; i++ {
		cred := f.newCredential(t, fmt.Sprintf("cred-%d", i))
		declare, err := idchain.NewDeclareRequest(f.ctx, cred, f.alice, f.signer())
		require.NoError(t, err)
		require.NoError(t, f.backend.Publish(f.ctx, declare, ""))
		ids = append(ids, cred.ID())
	}
	ids = append(ids, did.NewURL(f.alice.Subject(), "unknown"))

	creds, err := f.backend.ResolveCredentials(f.ctx, ids)
	require.NoError(t, err)
	require.Len(t, creds, len(ids))

	for i, cred := range creds[:5] {
		require.NotNil(t, cred)
		assert.True(t, cred.ID().Equal(ids[i]))
	}
	assert.Nil(t, creds[5])

	page, err := f.backend.ListCredentials(f.ctx, f.alice.Subject(), 3, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = f.backend.ListCredentials(f.ctx, f.alice.Subject(), -1, 10)
	assert.True(t, errors.Is(err, diderrors.ErrIllegalArgument))
}

func TestServerError(t *testing.T) {
	transport := TransportFunc(func(_ context.Context, data []byte) ([]byte, error) {
		req, err := ParseRequest(data)
		if err != nil {
			return nil, err
		}

		return NewErrorResponse[*biography.DIDBiography](req.ID(), -32000, "internal error").JSON()
	})

	_, err := New(transport).ResolveDID(context.Background(), did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym"))
	require.Error(t, err)

	var serverErr *diderrors.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, -32000, serverErr.Code)
	assert.True(t, errors.Is(err, diderrors.ErrDIDBackend))
	assert.True(t, errors.Is(err, diderrors.ErrDIDResolve))
}

func TestMismatchedResponse(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")

	transport := TransportFunc(func(_ context.Context, _ []byte) ([]byte, error) {
		return NewResponse("other", biography.NewDIDBiography(id, biography.DIDStatusNotFound)).JSON()
	})

	_, err := New(transport).ResolveDID(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diderrors.ErrDIDResolve))
}

func TestRecursiveResolve(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")

	var b *Backend
	b = New(TransportFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		_, err := b.ResolveDID(ctx, id)
		return nil, err
	}))

	_, err := b.ResolveDID(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diderrors.ErrRecursiveResolve))

	ctx, err := enterResolve(context.Background(), "a")
	require.NoError(t, err)
	ctx, err = enterResolve(ctx, "b")
	require.NoError(t, err)
	_, err = enterResolve(ctx, "a")
	assert.True(t, errors.Is(err, diderrors.ErrRecursiveResolve))
}

func TestCreateIDTransaction(t *testing.T) {
	b := New(newSimulatedChain())

	err := b.CreateIDTransaction(context.Background(), "{}", "")
	assert.True(t, errors.Is(err, diderrors.ErrUnsupportedOperation))

	b = New(newSimulatedChain(), WithChainAdapter(newSimulatedChain()))
	err = b.CreateIDTransaction(context.Background(), "{}", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, diderrors.ErrDIDBackend))
}

func TestResolveWithMethod(t *testing.T) {
	f := newFixtureFor(t, did.NewParser(did.WithMethod("foo")))
	require.Equal(t, "foo", f.alice.Subject().Method())

	f.publishDocument(t, f.alice)

	doc, err := f.backend.ResolveDID(f.ctx, f.alice.Subject())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, f.alice.Subject(), doc.Subject())
	assert.True(t, doc.IsValid(nil))

	cred := f.newCredential(t, "profile")
	declare, err := idchain.NewDeclareRequest(f.ctx, cred, f.alice, f.signer())
	require.NoError(t, err)
	require.NoError(t, f.backend.Publish(f.ctx, declare, ""))

	got, md, err := f.backend.ResolveCredential(f.ctx, cred.ID(), did.DID{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ID().Equal(cred.ID()))
	assert.False(t, md.Revoked)

	ids, err := f.backend.ListCredentials(f.ctx, f.alice.Subject(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []did.DIDURL{cred.ID()}, ids)

	elastos := New(f.chain)
	_, err = elastos.ResolveDID(f.ctx, f.alice.Subject())
	assert.True(t, errors.Is(err, diderrors.ErrDIDResolve))
}
