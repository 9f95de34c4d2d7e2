package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/backend"
	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

func noBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestNew(t *testing.T) {
	_, err := New(" ")
	require.Error(t, err)

	tr, err := NewFromConfig(config.New(config.WithResolverURL("http://localhost:1"), config.WithMaxRetries(5)))
	require.NoError(t, err)
	assert.Equal(t, 5, tr.maxRetries)
	assert.Equal(t, "http://localhost:1", tr.endpoint)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		attempts  int32
		err       bool
		transient bool
	}{
		{name: "Success", statuses: []int{http.StatusOK}, retries: 3, attempts: 1},
		{
			name:     "Retry transient failures",
			statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK},
			retries:  3,
			attempts: 3,
		},
		{
			name:     "Do not retry client errors",
			statuses: []int{http.StatusBadRequest, http.StatusOK},
			retries:  3,
			attempts: 1,
			err:      true,
		},
		{
			name:      "Retries exhausted",
			statuses:  []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway, http.StatusOK},
			retries:   2,
			attempts:  3,
			err:       true,
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)

				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.Equal(t, `{"ping":true}`, string(body))

				status := tt.statuses[int(n)-1]
				w.WriteHeader(status)
				_, _ = fmt.Fprintf(w, `{"status":%d}`, status)
			}))
			defer srv.Close()

			tr, err := New(srv.URL, WithMaxRetries(tt.retries), WithBackOff(noBackOff))
			require.NoError(t, err)

			resp, err := tr.Resolve(context.Background(), []byte(`{"ping":true}`))
			assert.Equal(t, tt.attempts, atomic.LoadInt32(&calls))

			if tt.err {
				require.Error(t, err)
				assert.Equal(t, tt.transient, diderrors.IsTransient(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, `{"status":200}`, string(resp))
		})
	}
}

func TestResolveResponseSize(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"result":"0123456789"}`))
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		limit int64
		err   bool
	}{
		{name: "Exact limit", limit: int64(len(`{"result":"0123456789"}`))},
		{name: "One byte over", limit: int64(len(`{"result":"0123456789"}`)) - 1, err: true},
		{name: "Far over", limit: 4, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(&calls, 0)

			tr, err := New(srv.URL, WithMaxResponseSize(tt.limit), WithMaxRetries(3), WithBackOff(noBackOff))
			require.NoError(t, err)

			resp, err := tr.Resolve(context.Background(), []byte(`{}`))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrResponseTooLarge))
				assert.False(t, diderrors.IsTransient(err))
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, `{"result":"0123456789"}`, string(resp))
		})
	}
}

func TestResolveCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := New(srv.URL, WithMaxRetries(100), WithBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(10 * time.Millisecond)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = tr.Resolve(ctx, []byte(`{}`))
	require.Error(t, err)
}

func TestBackendOverHTTP(t *testing.T) {
	id := did.MustParse("did:elastos:iWFAUYhTa35c1fPe3iCJvihZHx6quumnym")

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

	tr, err := New(srv.URL, WithBackOff(noBackOff))
	require.NoError(t, err)

	doc, err := backend.New(tr).ResolveDID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = backend.New(tr).ResolveDocument(context.Background(), id)
	assert.True(t, errors.Is(err, diderrors.ErrDIDNotFound))
}
