// Package transport sends resolve requests to a resolver over HTTP.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-transport")

// ErrResponseTooLarge is returned when a resolver response exceeds the
// response size limit.
var ErrResponseTooLarge = errors.New("resolver response too large")

const (
	maxResponseSize     = 8 << 20
	defaultMaxInterval  = 5 * time.Second
	defaultInitInterval = 200 * time.Millisecond
)

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithMaxRetries sets the number of retries of transient failures.
func WithMaxRetries(n int) Option {
	return func(t *HTTPTransport) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithMaxResponseSize sets the size limit of resolver responses in bytes.
func WithMaxResponseSize(n int64) Option {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxResponseSize = n
		}
	}
}

// WithBackOff sets the factory of the retry back-off policy.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(t *HTTPTransport) {
		t.newBackOff = newBackOff
	}
}

// HTTPTransport posts JSON-RPC resolve requests to a resolver endpoint and
// retries transient failures with exponential back-off.
type HTTPTransport struct {
	endpoint        string
	client          *http.Client
	maxRetries      int
	maxResponseSize int64
	newBackOff      func() backoff.BackOff
}

// New creates a transport posting to endpoint.
func New(endpoint string, opts ...Option) (*HTTPTransport, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}

	t := &HTTPTransport{
		endpoint:        endpoint,
		maxRetries:      config.DefaultMaxRetries,
		maxResponseSize: maxResponseSize,
		client: &http.Client{
			Timeout:   config.DefaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		newBackOff: newExponentialBackOff,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// NewFromConfig creates a transport for the resolver of cfg.
func NewFromConfig(cfg config.Config, opts ...Option) (*HTTPTransport, error) {
	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return New(cfg.ResolverURL, append([]Option{WithHTTPClient(client), WithMaxRetries(cfg.MaxRetries)}, opts...)...)
}

// Resolve implements backend.Transport.
func (t *HTTPTransport) Resolve(ctx context.Context, request []byte) ([]byte, error) {
	var (
		resp    []byte
		attempt int
	)

	op := func() error {
		attempt++

		var err error
		resp, err = t.post(ctx, request)
		if err != nil && !diderrors.IsTransient(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), uint64(t.maxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, d time.Duration) {
		logger.Debug("Resolve request failed, retrying", logfields.WithRequestURL(t.endpoint),
			logfields.WithAttempt(attempt), logfields.WithDuration(d), log.WithError(err))
	})
	if err != nil {
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			err = perr.Err
		}

		return nil, err
	}

	return resp, nil
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to call resolver: %w", err)
		}

		return nil, diderrors.NewTransient(fmt.Errorf("failed to call resolver: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxResponseSize+1))
	if err != nil {
		return nil, diderrors.NewTransient(fmt.Errorf("failed to read resolver response: %w", err))
	}
	if int64(len(data)) > t.maxResponseSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, t.maxResponseSize)
	}

	logger.Debug("Resolver responded", logfields.WithRequestURL(t.endpoint),
		logfields.WithHTTPStatus(resp.StatusCode), logfields.WithSize(len(data)))

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, diderrors.NewTransient(fmt.Errorf("resolver http %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("resolver http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
}

func newExponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitInterval
	b.MaxInterval = defaultMaxInterval
	b.Reset()

	return b
}
