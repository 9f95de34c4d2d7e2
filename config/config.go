package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values
const (
	DefaultMethod          = "elastos"
	DefaultResolverURL     = "https://api.elastos.io/eid"
	DefaultRequestTimeout  = 60 * time.Second
	DefaultMaxRetries      = 3
	DefaultRPC             = "https://api.elastos.io/eid"
	DefaultChainID         = int64(22)
	DefaultContractAddress = "0x46E5936a9bAA167b3368F4B4De3cC6f5Ab1F7c38"
	DefaultGasLimit        = uint64(8000000)
)

// Environment variable names
const (
	EnvMethod          = "DID_METHOD"
	EnvResolverURL     = "DID_RESOLVER_URL"
	EnvJSONLDContext   = "DID_JSONLD_CONTEXT"
	EnvRequestTimeout  = "DID_REQUEST_TIMEOUT"
	EnvMaxRetries      = "DID_MAX_RETRIES"
	EnvRPC             = "DID_RPC_URL"
	EnvChainID         = "DID_CHAIN_ID"
	EnvContractAddress = "DID_CONTRACT_ADDRESS"
)

// Config holds the settings shared by the parser, the serializers and the
// resolver client.
type Config struct {
	// Method is the only DID method accepted by the parser.
	Method string
	// ResolverURL is the JSON-RPC endpoint of the resolver.
	ResolverURL string
	// JSONLDContext enables emitting and checking @context on documents and credentials.
	JSONLDContext bool
	// RequestTimeout bounds every resolver round trip.
	RequestTimeout time.Duration
	// MaxRetries is the retry budget of the HTTP transport. Zero disables retries.
	MaxRetries int
	// RPC is the EVM endpoint of the ID side chain used to publish requests.
	RPC string
	// ChainID is the chain id of the ID side chain.
	ChainID int64
	// ContractAddress is the address of the DID contract on the ID side chain.
	ContractAddress string
	// GasLimit is the gas limit of publish transactions.
	GasLimit uint64
}

// Option is a functional option for Config.
type Option func(*Config)

// WithMethod sets the supported DID method.
func WithMethod(method string) Option {
	return func(c *Config) { c.Method = method }
}

// WithResolverURL sets the resolver endpoint.
func WithResolverURL(url string) Option {
	return func(c *Config) { c.ResolverURL = url }
}

// WithJSONLDContext toggles JSON-LD context handling.
func WithJSONLDContext(enabled bool) Option {
	return func(c *Config) { c.JSONLDContext = enabled }
}

// WithRequestTimeout sets the resolver round trip timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.RequestTimeout = timeout }
}

// WithMaxRetries sets the transport retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRPC sets the ID side chain RPC endpoint.
func WithRPC(rpc string) Option {
	return func(c *Config) { c.RPC = rpc }
}

// WithChainID sets the ID side chain id.
func WithChainID(chainID int64) Option {
	return func(c *Config) { c.ChainID = chainID }
}

// WithContractAddress sets the DID contract address.
func WithContractAddress(addr string) Option {
	return func(c *Config) { c.ContractAddress = strings.ToLower(addr) }
}

// WithGasLimit sets the gas limit of publish transactions.
func WithGasLimit(limit uint64) Option {
	return func(c *Config) { c.GasLimit = limit }
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Method:          DefaultMethod,
		ResolverURL:     DefaultResolverURL,
		RequestTimeout:  DefaultRequestTimeout,
		MaxRetries:      DefaultMaxRetries,
		RPC:             DefaultRPC,
		ChainID:         DefaultChainID,
		ContractAddress: strings.ToLower(DefaultContractAddress),
		GasLimit:        DefaultGasLimit,
	}
}

// New returns the default configuration with opts applied.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// FromEnv returns the configuration read from environment variables, falling
// back to the defaults, with opts applied on top.
func FromEnv(opts ...Option) Config {
	cfg := Default()

	if v := os.Getenv(EnvMethod); v != "" {
		cfg.Method = v
	}
	if v := os.Getenv(EnvResolverURL); v != "" {
		cfg.ResolverURL = v
	}
	if v := os.Getenv(EnvJSONLDContext); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.JSONLDContext = enabled
		}
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvRPC); v != "" {
		cfg.RPC = v
	}
	if v := os.Getenv(EnvChainID); v != "" {
		if chainID, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ChainID = chainID
		}
	}
	if v := os.Getenv(EnvContractAddress); v != "" {
		cfg.ContractAddress = strings.ToLower(v)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
