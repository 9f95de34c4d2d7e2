// Package didsdk assembles a resolver client from a config.Config.
package didsdk

import (
	"errors"
	"sync"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/backend"
	"github.com/pilacorp/go-did-sdk/backend/transport"
	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/credential/vp"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/metadata"
	"github.com/pilacorp/go-did-sdk/metadata/boltstore"
)

var logger = log.New("did-sdk")

// ErrClosed is returned by Close on a closed Client.
var ErrClosed = errors.New("client closed")

type options struct {
	metadataDB       string
	transportOptions []transport.Option
	backendOptions   []backend.Option
}

// Option configures a Client.
type Option func(*options)

// WithMetadataDB persists chain metadata in the bolt database at path.
func WithMetadataDB(path string) Option {
	return func(o *options) {
		o.metadataDB = path
	}
}

// WithTransportOptions passes options to the HTTP transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) {
		o.transportOptions = append(o.transportOptions, opts...)
	}
}

// WithBackendOptions passes options to the backend.
func WithBackendOptions(opts ...backend.Option) Option {
	return func(o *options) {
		o.backendOptions = append(o.backendOptions, opts...)
	}
}

// Client bundles the parser, the JSON-LD processor, the backend and the
// metadata store configured by one config.Config. It is safe for concurrent
// use.
type Client struct {
	cfg       config.Config
	parser    *did.Parser
	processor *schema.Processor
	backend   *backend.Backend
	store   *boltstore.Store

	mu     sync.Mutex
	closed bool
}

// New creates a client for the resolver of cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	tr, err := transport.NewFromConfig(cfg, o.transportOptions...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		parser: did.NewParser(did.WithMethod(cfg.Method)),
	}
	if cfg.JSONLDContext {
		c.processor = schema.NewProcessor()
	}

	backendOpts := append([]backend.Option{
		backend.WithParseOptions(backend.WithParser(c.parser), backend.WithProcessor(c.processor)),
	}, o.backendOptions...)

	if o.metadataDB != "" {
		c.store, err = boltstore.Open(o.metadataDB)
		if err != nil {
			return nil, err
		}

		table := metadata.NewTable(metadata.WithStore(c.store))
		backendOpts = append([]backend.Option{backend.WithMetadataTable(table)}, backendOpts...)
	}

	c.backend = backend.New(tr, backendOpts...)

	logger.Debug("Created client", logfields.WithRequestURL(cfg.ResolverURL),
		logfields.WithMethod(cfg.Method), logfields.WithPath(o.metadataDB))

	return c, nil
}

// Config returns the configuration of the client.
func (c *Client) Config() config.Config { return c.cfg }

// Parser returns a parser accepting the DID method of the client.
func (c *Client) Parser() *did.Parser { return c.parser }

// Processor returns the JSON-LD processor, nil when JSON-LD handling is off.
func (c *Client) Processor() *schema.Processor { return c.processor }

// DocumentOptions returns the options building and parsing documents with the
// parser and the processor of the client.
func (c *Client) DocumentOptions() []document.Opt {
	return []document.Opt{document.WithParser(c.parser), document.WithProcessor(c.processor)}
}

// CredentialOptions returns the options building and parsing credentials
// with the parser and the processor of the client.
func (c *Client) CredentialOptions() []vc.CredentialOpt {
	return []vc.CredentialOpt{vc.WithParser(c.parser), vc.WithProcessor(c.processor)}
}

// PresentationOptions returns the options building and parsing presentations
// with the parser and the processor of the client.
func (c *Client) PresentationOptions() []vp.PresentationOpt {
	return []vp.PresentationOpt{vp.WithParser(c.parser), vp.WithProcessor(c.processor)}
}

// Backend returns the resolver backend.
func (c *Client) Backend() *backend.Backend { return c.backend }

// Close releases the metadata store.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true

	if c.store == nil {
		return nil
	}

	return c.store.Close()
}
