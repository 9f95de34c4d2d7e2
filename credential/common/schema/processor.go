package schema

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/piprate/json-gold/ld"
)

// Well known JSON-LD contexts.
const (
	W3CCredentialContext     = "https://www.w3.org/2018/credentials/v1"
	ElastosCredentialContext = "https://ns.elastos.org/credentials/v1"
	W3CDIDContext            = "https://www.w3.org/ns/did/v1"
	ElastosDIDContext        = "https://ns.elastos.org/did/v1"
)

// ContextKey is the JSON-LD context member.
const ContextKey = "@context"

// DocumentContexts are emitted on DID documents when JSON-LD is enabled.
var DocumentContexts = []string{W3CDIDContext, ElastosDIDContext}

// CredentialContexts are emitted on credentials and presentations when
// JSON-LD is enabled.
var CredentialContexts = []string{W3CCredentialContext, ElastosCredentialContext}

// ProcessorOpt represents an option for JSON-LD processing.
type ProcessorOpt func(*ProcessorOptions)

// ProcessorOptions holds configuration for JSON-LD processing.
type ProcessorOptions struct {
	documentLoader ld.DocumentLoader
	remoteClient   *http.Client
}

// WithDocumentLoader sets the loader used for contexts that are not built in.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.documentLoader = loader
	}
}

// WithRemoteContexts allows fetching unknown contexts over HTTP.
func WithRemoteContexts(client *http.Client) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.remoteClient = client
	}
}

// Processor checks the JSON-LD context of documents and credentials. A nil
// *Processor means JSON-LD handling is disabled.
type Processor struct {
	processor *ld.JsonLdProcessor
	loader    ld.DocumentLoader
}

// NewProcessor creates a processor backed by the built-in contexts.
func NewProcessor(opts ...ProcessorOpt) *Processor {
	options := &ProcessorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var fallback ld.DocumentLoader
	switch {
	case options.documentLoader != nil:
		fallback = options.documentLoader
	case options.remoteClient != nil:
		fallback = ld.NewDefaultDocumentLoader(options.remoteClient)
	}

	loader := ld.NewCachingDocumentLoader(&staticLoader{fallback: fallback})
	for url, doc := range builtinContexts {
		loader.AddDocument(url, doc)
	}

	return &Processor{
		processor: ld.NewJsonLdProcessor(),
		loader:    loader,
	}
}

// Enabled reports whether JSON-LD handling is on.
func (p *Processor) Enabled() bool {
	return p != nil
}

// Expand expands doc with its own @context.
func (p *Processor) Expand(doc map[string]interface{}) ([]interface{}, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to expand document: document is nil")
	}

	plain, err := toPlain(doc)
	if err != nil {
		return nil, err
	}

	options := ld.NewJsonLdOptions("")
	options.DocumentLoader = p.loader

	expanded, err := p.processor.Expand(plain, options)
	if err != nil {
		return nil, fmt.Errorf("failed to expand document: %w", err)
	}

	return expanded, nil
}

// CheckContext verifies that doc declares a @context that can be loaded and
// applied.
func (p *Processor) CheckContext(doc map[string]interface{}) error {
	ctx, ok := doc[ContextKey]
	if !ok {
		return fmt.Errorf("missing %s", ContextKey)
	}

	switch v := ctx.(type) {
	case string:
	case []interface{}:
		if len(v) == 0 {
			return fmt.Errorf("empty %s", ContextKey)
		}
	case []string:
		if len(v) == 0 {
			return fmt.Errorf("empty %s", ContextKey)
		}
	default:
		return fmt.Errorf("invalid %s: %T", ContextKey, ctx)
	}

	if _, err := p.Expand(doc); err != nil {
		return fmt.Errorf("invalid %s: %w", ContextKey, err)
	}

	return nil
}

// toPlain converts json.Number and typed slices to the plain JSON values the
// JSON-LD processor expects.
func toPlain(doc map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var plain map[string]interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return plain, nil
}

// staticLoader serves nothing itself; built-in contexts are preloaded into
// the caching loader in front of it.
type staticLoader struct {
	fallback ld.DocumentLoader
}

func (l *staticLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	if l.fallback != nil {
		return l.fallback.LoadDocument(u)
	}

	return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Sprintf("unknown context: %s", u))
}

const credentialVocab = "https://www.w3.org/2018/credentials#"

var builtinContexts = map[string]interface{}{
	W3CCredentialContext: map[string]interface{}{
		ContextKey: map[string]interface{}{
			"id":                     "@id",
			"type":                   "@type",
			"VerifiableCredential":   credentialVocab + "VerifiableCredential",
			"VerifiablePresentation": credentialVocab + "VerifiablePresentation",
			"credentialSubject":      map[string]interface{}{"@id": credentialVocab + "credentialSubject", "@type": "@id"},
			"issuer":                 map[string]interface{}{"@id": credentialVocab + "issuer", "@type": "@id"},
			"holder":                 map[string]interface{}{"@id": credentialVocab + "holder", "@type": "@id"},
			"issuanceDate":           map[string]interface{}{"@id": credentialVocab + "issuanceDate", "@type": "http://www.w3.org/2001/XMLSchema#dateTime"},
			"expirationDate":         map[string]interface{}{"@id": credentialVocab + "expirationDate", "@type": "http://www.w3.org/2001/XMLSchema#dateTime"},
			"verifiableCredential":   map[string]interface{}{"@id": credentialVocab + "verifiableCredential"},
			"proof":                  map[string]interface{}{"@id": "https://w3id.org/security#proof"},
		},
	},
	ElastosCredentialContext: map[string]interface{}{
		ContextKey: map[string]interface{}{
			"@vocab": ElastosCredentialContext + "#",
		},
	},
	W3CDIDContext: map[string]interface{}{
		ContextKey: map[string]interface{}{
			"id":         "@id",
			"type":       "@type",
			"controller": map[string]interface{}{"@id": "https://w3id.org/security#controller", "@type": "@id"},
			"service":    map[string]interface{}{"@id": "https://www.w3.org/ns/did#service"},
		},
	},
	ElastosDIDContext: map[string]interface{}{
		ContextKey: map[string]interface{}{
			"@vocab": ElastosDIDContext + "#",
		},
	},
}
