package vp

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

// DefaultPresentationType is the type every presentation carries.
const DefaultPresentationType = "VerifiablePresentation"

// Presentation is a sealed verifiable presentation: a set of credentials of
// one holder, signed by the holder for a realm and a nonce.
type Presentation struct {
	contexts    []string
	id          did.DIDURL
	types       []string
	holder      did.DID
	created     time.Time
	credentials []*vc.Credential
	proof       Proof
}

// Proof is the holder signature of a presentation.
type Proof struct {
	Type               string
	VerificationMethod did.DIDURL
	Realm              string
	Nonce              string
	Signature          string
}

// PresentationOpt configures presentation processing options.
type PresentationOpt func(*presentationOptions)

// presentationOptions holds configuration for presentation processing.
type presentationOptions struct {
	isValidateSchema bool
	processor        *schema.Processor
	parser           *did.Parser
}

// WithSchemaValidation enables schema validation during parsing.
func WithSchemaValidation() PresentationOpt {
	return func(p *presentationOptions) {
		p.isValidateSchema = true
	}
}

// WithProcessor enables JSON-LD context handling. A nil processor disables it.
func WithProcessor(p *schema.Processor) PresentationOpt {
	return func(o *presentationOptions) {
		o.processor = p
	}
}

// WithParser sets the parser of the identifiers in the presentation and its
// credentials. The default accepts did.DefaultMethod.
func WithParser(p *did.Parser) PresentationOpt {
	return func(o *presentationOptions) {
		if p != nil {
			o.parser = p
		}
	}
}

func getOptions(opts ...PresentationOpt) *presentationOptions {
	options := &presentationOptions{parser: did.DefaultParser()}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// Parse parses a presentation from its JSON form.
func Parse(data []byte, opts ...PresentationOpt) (*Presentation, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedPresentation, err)
	}

	return ParseMap(m, opts...)
}

// ParseMap parses a presentation from a decoded JSON object.
func ParseMap(m jsonmap.JSONMap, opts ...PresentationOpt) (*Presentation, error) {
	options := getOptions(opts...)

	if options.isValidateSchema {
		if err := schema.PresentationValidator.Validate(m); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedPresentation, err)
		}
	}

	p, err := parsePresentation(m, options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedPresentation, err)
	}

	if options.processor.Enabled() && len(p.contexts) > 0 {
		if err := options.processor.CheckContext(p.Map()); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedPresentation, err)
		}
	}

	return p, nil
}

// ID returns the presentation id, which may be zero.
func (p *Presentation) ID() did.DIDURL { return p.id }

// Types returns the presentation types.
func (p *Presentation) Types() []string { return append([]string(nil), p.types...) }

// Holder returns the DID of the holder.
func (p *Presentation) Holder() did.DID { return p.holder }

// Created returns the creation time.
func (p *Presentation) Created() time.Time { return p.created }

// Proof returns the holder proof.
func (p *Presentation) Proof() Proof { return p.proof }

// Credentials returns the credentials ordered by id.
func (p *Presentation) Credentials() []*vc.Credential {
	return append([]*vc.Credential(nil), p.credentials...)
}

// Credential looks up a credential by id.
func (p *Presentation) Credential(id did.DIDURL) (*vc.Credential, bool) {
	for _, c := range p.credentials {
		if c.ID().Equal(id) {
			return c, true
		}
	}

	return nil, false
}

// Map returns the presentation as a JSON object.
func (p *Presentation) Map() jsonmap.JSONMap {
	return serializePresentation(p, false)
}

// JSON returns the canonical JSON of the presentation.
func (p *Presentation) JSON() ([]byte, error) {
	return jsonmap.Marshal(serializePresentation(p, false))
}

// MarshalJSON implements json.Marshaler.
func (p *Presentation) MarshalJSON() ([]byte, error) {
	return p.JSON()
}

// SigningInput returns the segments covered by the proof: the canonical JSON
// without the proof, the realm and the nonce.
func (p *Presentation) SigningInput() ([][]byte, error) {
	data, err := jsonmap.Marshal(serializePresentation(p, true))
	if err != nil {
		return nil, err
	}

	return [][]byte{data, []byte(p.proof.Realm), []byte(p.proof.Nonce)}, nil
}

func (p *Presentation) String() string {
	data, err := p.JSON()
	if err != nil {
		return p.holder.String()
	}

	return string(data)
}

// label names the presentation in verification messages.
func (p *Presentation) label() string {
	if p.id.IsZero() {
		return p.holder.String()
	}

	return p.id.String()
}

func defaultProofType(t string) string {
	if t == "" {
		return crypto.KeyTypeSecp256k1
	}

	return t
}
