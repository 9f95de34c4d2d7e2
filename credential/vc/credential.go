package vc

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

// SelfProclaimedCredential is the type added to credentials whose issuer is
// their subject.
const SelfProclaimedCredential = "SelfProclaimedCredential"

// Credential is a sealed verifiable credential. It is immutable.
type Credential struct {
	contexts       []string
	id             did.DIDURL
	types          []string
	issuer         did.DID
	issuanceDate   time.Time
	expirationDate time.Time
	subject        Subject
	proof          Proof
}

// Subject represents the credentialSubject field.
type Subject struct {
	ID         did.DID                // Subject identifier
	Properties map[string]interface{} // Additional subject data, never contains "id"
}

// Proof is the issuer signature of a credential.
type Proof struct {
	Type               string
	Created            time.Time
	VerificationMethod did.DIDURL
	Signature          string
}

// CredentialOpt configures credential processing options.
type CredentialOpt func(*credentialOptions)

// credentialOptions holds configuration for credential processing.
type credentialOptions struct {
	isValidateSchema bool
	processor        *schema.Processor
	parser           *did.Parser
	owner            did.DID
}

// WithSchemaValidation enables schema validation during credential parsing.
func WithSchemaValidation() CredentialOpt {
	return func(c *credentialOptions) {
		c.isValidateSchema = true
	}
}

// WithProcessor enables JSON-LD context handling. A nil processor disables it.
func WithProcessor(p *schema.Processor) CredentialOpt {
	return func(c *credentialOptions) {
		c.processor = p
	}
}

// WithParser sets the parser of the identifiers in the credential. The
// default accepts did.DefaultMethod.
func WithParser(p *did.Parser) CredentialOpt {
	return func(c *credentialOptions) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithOwner sets the DID that relative ids and a missing subject id refer
// to, such as the subject of the document embedding the credential.
func WithOwner(owner did.DID) CredentialOpt {
	return func(c *credentialOptions) {
		c.owner = owner
	}
}

func getOptions(opts ...CredentialOpt) *credentialOptions {
	options := &credentialOptions{parser: did.DefaultParser()}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// Parse parses a credential from its JSON form.
func Parse(data []byte, opts ...CredentialOpt) (*Credential, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedCredential, err)
	}

	return ParseMap(m, opts...)
}

// ParseMap parses a credential from a decoded JSON object.
func ParseMap(m jsonmap.JSONMap, opts ...CredentialOpt) (*Credential, error) {
	options := getOptions(opts...)

	if options.isValidateSchema {
		if err := schema.CredentialValidator.Validate(m); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedCredential, err)
		}
	}

	c, err := parseCredential(m, options.parser, options.owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedCredential, err)
	}

	if options.processor.Enabled() && len(c.contexts) > 0 {
		if err := options.processor.CheckContext(c.Map(true)); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedCredential, err)
		}
	}

	return c, nil
}

// ID returns the credential id.
func (c *Credential) ID() did.DIDURL { return c.id }

// Types returns the sorted credential types.
func (c *Credential) Types() []string { return append([]string(nil), c.types...) }

// HasType reports whether the credential has type t.
func (c *Credential) HasType(t string) bool {
	for _, v := range c.types {
		if v == t {
			return true
		}
	}

	return false
}

// Contexts returns the JSON-LD contexts, if any.
func (c *Credential) Contexts() []string { return append([]string(nil), c.contexts...) }

// Issuer returns the issuer DID.
func (c *Credential) Issuer() did.DID { return c.issuer }

// IssuanceDate returns the issuance date.
func (c *Credential) IssuanceDate() time.Time { return c.issuanceDate }

// ExpirationDate returns the expiration date.
func (c *Credential) ExpirationDate() time.Time { return c.expirationDate }

// Subject returns a copy of the credential subject.
func (c *Credential) Subject() Subject {
	return Subject{ID: c.subject.ID, Properties: copyProperties(c.subject.Properties)}
}

// Property returns one subject property.
func (c *Credential) Property(name string) (interface{}, bool) {
	v, ok := c.subject.Properties[name]
	return v, ok
}

// Proof returns the credential proof.
func (c *Credential) Proof() Proof { return c.proof }

// IsSelfProclaimed reports whether the issuer is the subject.
func (c *Credential) IsSelfProclaimed() bool {
	return c.issuer == c.subject.ID
}

// IsExpired reports whether the expiration date has passed.
func (c *Credential) IsExpired() bool {
	return !c.expirationDate.IsZero() && time.Now().After(c.expirationDate)
}

// Map returns the credential as a JSON object. Normalized output has every id
// fully qualified; compact output has ids relative to the subject.
func (c *Credential) Map(normalized bool) jsonmap.JSONMap {
	return serializeCredential(c, did.DID{}, normalized, false)
}

// MapWithOwner is like Map but, in compact form, omits the subject id when it
// equals owner.
func (c *Credential) MapWithOwner(owner did.DID, normalized bool) jsonmap.JSONMap {
	return serializeCredential(c, owner, normalized, false)
}

// JSON returns the canonical JSON of the credential.
func (c *Credential) JSON(normalized bool) ([]byte, error) {
	return jsonmap.Marshal(serializeCredential(c, did.DID{}, normalized, false))
}

// MarshalJSON returns the normalized JSON.
func (c *Credential) MarshalJSON() ([]byte, error) {
	return c.JSON(true)
}

// SigningInput returns the bytes covered by the proof: the normalized JSON
// without the proof.
func (c *Credential) SigningInput() ([]byte, error) {
	return jsonmap.Marshal(serializeCredential(c, did.DID{}, true, true))
}

func (c *Credential) String() string {
	data, err := c.JSON(true)
	if err != nil {
		return c.id.String()
	}

	return string(data)
}

func defaultProofType(t string) string {
	if t == "" {
		return crypto.KeyTypeSecp256k1
	}

	return t
}
