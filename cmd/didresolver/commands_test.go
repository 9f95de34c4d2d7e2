package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/backend"
)

const testDID = "did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym"

func newResolverServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}

		req, err := backend.ParseRequest(body)
		if !assert.NoError(t, err) {
			return
		}

		switch rr := req.(type) {
		case *backend.DIDResolveRequest:
			_, _ = fmt.Fprintf(w, `{"id":"%s","jsonrpc":"2.0","result":{"did":"%s","status":3}}`, req.ID(), rr.DID())
		case *backend.CredentialListRequest:
			_, _ = fmt.Fprintf(w, `{"id":"%s","jsonrpc":"2.0","result":{"did":"%s","credentials":["#profile","%s#email"]}}`,
				req.ID(), rr.DID(), rr.DID())
		case *backend.CredentialResolveRequest:
			_, _ = fmt.Fprintf(w, `{"id":"%s","jsonrpc":"2.0","error":{"code":-32602,"message":"invalid params"}}`, req.ID())
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestParseCmd(t *testing.T) {
	out, err := execute(t, "parse", testDID+";service=hub/path?x=1#key-1")
	require.NoError(t, err)

	var u urlOutput
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, testDID, u.DID)
	assert.Equal(t, "elastos", u.Method)
	assert.Equal(t, map[string]string{"service": "hub"}, u.Params)
	assert.Equal(t, "/path", u.Path)
	assert.Equal(t, map[string]string{"x": "1"}, u.Query)
	assert.Equal(t, "key-1", u.Fragment)

	_, err = execute(t, "parse", "did:example:123")
	assert.Error(t, err)

	_, err = execute(t, "parse", "--method", "example", "did:example:123")
	assert.NoError(t, err)
}

func TestResolveCmdNotFound(t *testing.T) {
	srv := newResolverServer(t)

	_, err := execute(t, "resolve", "--resolver-url", srv.URL, testDID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute(t, "resolve", "--all", "--resolver-url", srv.URL, testDID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListCmd(t *testing.T) {
	srv := newResolverServer(t)

	out, err := execute(t, "list", "--resolver-url", srv.URL, "--limit", "10", testDID)
	require.NoError(t, err)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{testDID + "#profile", testDID + "#email"}, ids)

	_, err = execute(t, "list", "--resolver-url", srv.URL, "--limit", "1000", testDID)
	assert.Error(t, err)

	dbPath := filepath.Join(t.TempDir(), "metadata.db")
	_, err = execute(t, "list", "--resolver-url", srv.URL, "--metadata-db", dbPath, testDID)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestCredentialCmdServerError(t *testing.T) {
	srv := newResolverServer(t)

	_, err := execute(t, "credential", "--resolver-url", srv.URL, "--max-retries", "0", testDID+"#profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}
