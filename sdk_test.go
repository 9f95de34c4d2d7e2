package didsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/backend"
	"github.com/pilacorp/go-did-sdk/biography"
	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/idchain"
	"github.com/pilacorp/go-did-sdk/keystore"
)

const (
	aliceKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	password    = "passw0rd"
)

func TestNew(t *testing.T) {
	t.Run("Missing resolver", func(t *testing.T) {
		_, err := New(config.New(config.WithResolverURL("")))
		require.Error(t, err)
	})

	t.Run("Invalid metadata path", func(t *testing.T) {
		_, err := New(config.Default(), WithMetadataDB(filepath.Join(t.TempDir(), "missing", "md.db")))
		require.Error(t, err)
	})

	t.Run("Custom method", func(t *testing.T) {
		c, err := New(config.New(config.WithMethod("example")))
		require.NoError(t, err)

		id, err := c.Parser().ParseDID("did:example:abc")
		require.NoError(t, err)
		assert.Equal(t, "example", id.Method())

		_, err = c.Parser().ParseDID("did:elastos:abc")
		assert.Error(t, err)

		require.NoError(t, c.Close())
		assert.True(t, errors.Is(c.Close(), ErrClosed))
	})
}

func TestClientResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}

		req, err := backend.ParseRequest(body)
		if !assert.NoError(t, err) {
			return
		}

		dr, ok := req.(*backend.DIDResolveRequest)
		if !assert.True(t, ok) {
			return
		}

		_, _ = fmt.Fprintf(w, `{"id":"%s","jsonrpc":"2.0","result":{"did":"%s","status":3}}`, req.ID(), dr.DID())
	}))
	defer srv.Close()

	c, err := New(config.New(config.WithResolverURL(srv.URL)),
		WithMetadataDB(filepath.Join(t.TempDir(), "md.db")))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, srv.URL, c.Config().ResolverURL)

	id, err := c.Parser().ParseDID("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")
	require.NoError(t, err)

	_, err = c.Backend().ResolveDocument(context.Background(), id)
	assert.True(t, errors.Is(err, diderrors.ErrDIDNotFound))
}

// newBiographyServer answers every DID resolve request with the biography
// returned by bio.
func newBiographyServer(t *testing.T, parser *did.Parser, bio func() jsonmap.JSONMap) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}

		req, err := backend.ParseRequest(body, backend.WithParser(parser))
		if !assert.NoError(t, err) {
			return
		}

		data, err := jsonmap.Marshal(jsonmap.JSONMap{
			"id":      req.ID(),
			"jsonrpc": backend.JSONRPCVersion,
			"result":  bio(),
		})
		if !assert.NoError(t, err) {
			return
		}

		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// newCreateRequest seals a document of the key of aliceKeyHex with the
// document options of c and a request creating it.
func newCreateRequest(t *testing.T, c *Client) (*document.Document, *idchain.DIDRequest) {
	t.Helper()

	ctx := context.Background()

	priv, err := crypto.ParsePrivateKeyHex(aliceKeyHex)
	require.NoError(t, err)

	b, err := document.NewBuilderWithKey(crypto.PublicKeyBase58(&priv.PublicKey), "primary", c.DocumentOptions()...)
	require.NoError(t, err)

	ks := keystore.NewMemoryKeyStore()
	require.NoError(t, ks.ImportPrivateKeyHex(did.NewURL(b.Subject(), "primary"), aliceKeyHex, password))

	doc, err := b.Seal(ctx, ks, password)
	require.NoError(t, err)

	create, err := idchain.NewCreateRequest(ctx, doc, idchain.Signer{KeyStore: ks, Password: password})
	require.NoError(t, err)

	return doc, create
}

func validBiography(id did.DID, op jsonmap.JSONMap) jsonmap.JSONMap {
	tx := jsonmap.JSONMap{
		"txid":      "tx1",
		"timestamp": util.FormatTime(time.Date(2021, 1, 22, 6, 40, 36, 0, time.UTC)),
		"operation": op,
	}

	return jsonmap.JSONMap{
		"did":         id.String(),
		"status":      int(biography.DIDStatusValid),
		"transaction": []interface{}{tx},
	}
}

func TestClientJSONLDContext(t *testing.T) {
	var bio jsonmap.JSONMap
	srv := newBiographyServer(t, did.DefaultParser(), func() jsonmap.JSONMap { return bio })

	c, err := New(config.New(config.WithResolverURL(srv.URL), config.WithJSONLDContext(true)))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.True(t, c.Processor().Enabled())

	doc, create := newCreateRequest(t, c)
	assert.Equal(t, schema.DocumentContexts, doc.Contexts())

	data, err := doc.JSON(true)
	require.NoError(t, err)
	assert.Contains(t, string(data), schema.ContextKey)

	bio = validBiography(doc.Subject(), create.Map())

	resolved, err := c.Backend().ResolveDocument(context.Background(), doc.Subject())
	require.NoError(t, err)
	assert.Equal(t, schema.DocumentContexts, resolved.Contexts())

	t.Run("Unknown context", func(t *testing.T) {
		m := doc.Map(true)
		m[schema.ContextKey] = []interface{}{"https://example.com/unknown/v1"}
		payload, err := jsonmap.Marshal(m)
		require.NoError(t, err)

		op := create.Map()
		op["payload"] = util.EncodeBase64URL(payload)
		bio = validBiography(doc.Subject(), op)

		_, err = c.Backend().ResolveDocument(context.Background(), doc.Subject())
		require.Error(t, err)
		assert.True(t, errors.Is(err, diderrors.ErrDIDResolve))
		assert.Contains(t, err.Error(), schema.ContextKey)
	})

	t.Run("Disabled", func(t *testing.T) {
		plain, err := New(config.New(config.WithResolverURL(srv.URL)))
		require.NoError(t, err)
		defer func() { _ = plain.Close() }()

		assert.False(t, plain.Processor().Enabled())

		doc, _ := newCreateRequest(t, plain)
		assert.Empty(t, doc.Contexts())
	})
}

func TestClientMethod(t *testing.T) {
	parser := did.NewParser(did.WithMethod("foo"))

	var bio jsonmap.JSONMap
	srv := newBiographyServer(t, parser, func() jsonmap.JSONMap { return bio })

	c, err := New(config.New(config.WithResolverURL(srv.URL), config.WithMethod("foo")))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	doc, create := newCreateRequest(t, c)
	require.Equal(t, "foo", doc.Subject().Method())

	bio = validBiography(doc.Subject(), create.Map())

	resolved, err := c.Backend().ResolveDocument(context.Background(), doc.Subject())
	require.NoError(t, err)
	assert.Equal(t, doc.Subject(), resolved.Subject())
	assert.Equal(t, "tx1", resolved.TransactionID())
}
