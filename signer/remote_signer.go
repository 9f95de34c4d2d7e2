package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-signer")

const defaultRemoteTimeout = 10 * time.Second

// RemoteOption configures a RemoteSigner.
type RemoteOption func(*RemoteSigner)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteSigner) {
		s.client = client
	}
}

// RemoteSigner is a signer that signs a payload using a remote API
type RemoteSigner struct {
	endpoint string
	apiKey   string
	address  string
	client   *http.Client
}

// NewRemoteSigner creates a new RemoteSigner for the account at address.
func NewRemoteSigner(endpoint, apiKey, address string, opts ...RemoteOption) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("address required")
	}

	s := &RemoteSigner{
		endpoint: endpoint,
		apiKey:   apiKey,
		address:  strings.ToLower(address),
		client: &http.Client{
			Timeout:   defaultRemoteTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// GetAddress returns the address of the signer.
func (s *RemoteSigner) GetAddress() string {
	return s.address
}

// Sign signs a payload using the remote API
func (s *RemoteSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if len(payload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}

	reqBody, err := json.Marshal(map[string]any{
		"payload_hex": hex.EncodeToString(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote signer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("Remote signer returned error status",
			logfields.WithRequestURL(s.endpoint), logfields.WithHTTPStatus(resp.StatusCode))

		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	return sig, nil
}
