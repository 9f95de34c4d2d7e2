// Package document implements DID documents: their keys, services, embedded
// credentials, controllers and proofs.
//
// A document is owned either by the holder of its default key, whose address
// is the method specific id of the DID, or, for a customized DID, by one or
// more controller DIDs under an m-of-n multisig rule.
package document

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/metadata"
)

// MaxValidYears bounds the default expiration of new documents.
const MaxValidYears = 5

// Document is a DID document. Parsed and sealed documents are read-only
// apart from the attached controller documents and metadata.
type Document struct {
	contexts       []string
	subject        did.DID
	controllers    []did.DID
	multisig       *MultiSignature
	publicKeys     []PublicKey
	authentication map[string]bool
	authorization  map[string]bool
	credentials    []*vc.Credential
	services       []Service
	expires        time.Time
	proofs         []Proof

	defaultKey          did.DIDURL
	effectiveController did.DID
	controllerDocs      map[did.DID]*Document
	metadata            *metadata.DIDMetadata
}

// Opt configures document processing options.
type Opt func(*options)

type options struct {
	isValidateSchema bool
	processor        *schema.Processor
	parser           *did.Parser
}

// WithSchemaValidation enables schema validation during parsing.
func WithSchemaValidation() Opt {
	return func(o *options) {
		o.isValidateSchema = true
	}
}

// WithProcessor enables JSON-LD context handling. A nil processor disables it.
func WithProcessor(p *schema.Processor) Opt {
	return func(o *options) {
		o.processor = p
	}
}

// WithParser sets the parser of the identifiers in the document. The default
// accepts did.DefaultMethod.
func WithParser(p *did.Parser) Opt {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

func getOptions(opts ...Opt) *options {
	o := &options{parser: did.DefaultParser()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Parse parses and sanitizes a document from its JSON form. Controller
// documents are not resolved; see ResolveControllers.
func Parse(data []byte, opts ...Opt) (*Document, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
	}

	return ParseMap(m, opts...)
}

// ParseMap parses and sanitizes a document from a decoded JSON object.
func ParseMap(m jsonmap.JSONMap, opts ...Opt) (*Document, error) {
	o := getOptions(opts...)

	if o.isValidateSchema {
		if err := schema.DocumentValidator.Validate(m); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
		}
	}

	doc, err := parseDocument(m, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
	}

	if err := doc.sanitize(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
	}

	if o.processor.Enabled() && len(doc.contexts) > 0 {
		if err := o.processor.CheckContext(doc.Map(true)); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
		}
	}

	return doc, nil
}

// Subject returns the DID of the document.
func (d *Document) Subject() did.DID { return d.subject }

// Contexts returns the JSON-LD contexts, if any.
func (d *Document) Contexts() []string { return append([]string(nil), d.contexts...) }

// Controllers returns the sorted controller DIDs.
func (d *Document) Controllers() []did.DID { return append([]did.DID(nil), d.controllers...) }

// HasController reports whether id is a controller of the document.
func (d *Document) HasController(id did.DID) bool {
	for _, c := range d.controllers {
		if c == id {
			return true
		}
	}

	return false
}

// MultiSignature returns the multisig rule, nil unless the document has
// several controllers.
func (d *Document) MultiSignature() *MultiSignature {
	if d.multisig == nil {
		return nil
	}

	ms := *d.multisig

	return &ms
}

// IsCustomized reports whether the document has no default key of its own.
func (d *Document) IsCustomized() bool { return d.defaultKey.IsZero() }

// EffectiveController returns the controller acting for a customized
// document. It is set automatically when there is only one controller.
func (d *Document) EffectiveController() (did.DID, bool) {
	return d.effectiveController, !d.effectiveController.IsZero()
}

// SetEffectiveController selects the controller acting for a customized
// document. A zero DID clears it.
func (d *Document) SetEffectiveController(controller did.DID) error {
	if !d.IsCustomized() {
		return fmt.Errorf("%s: %w", d.subject, diderrors.ErrNotCustomizedDID)
	}
	if !controller.IsZero() && !d.HasController(controller) {
		return fmt.Errorf("%s is not a controller of %s: %w", controller, d.subject, diderrors.ErrNotController)
	}

	d.effectiveController = controller

	return nil
}

// ControllerDocument returns an attached controller document.
func (d *Document) ControllerDocument(id did.DID) (*Document, bool) {
	doc, ok := d.controllerDocs[id]
	return doc, ok
}

// AttachControllerDocument attaches the resolved document of a controller.
func (d *Document) AttachControllerDocument(doc *Document) error {
	if doc == nil || !d.HasController(doc.subject) {
		return diderrors.Errorf(diderrors.ErrNotController, "not a controller of %s", d.subject)
	}

	if d.controllerDocs == nil {
		d.controllerDocs = make(map[did.DID]*Document, len(d.controllers))
	}
	d.controllerDocs[doc.subject] = doc

	return nil
}

// PublicKeys returns the keys of the document, ordered by id.
func (d *Document) PublicKeys() []PublicKey { return append([]PublicKey(nil), d.publicKeys...) }

// PublicKey looks up a key of the document or of a controller document.
func (d *Document) PublicKey(id did.DIDURL) (PublicKey, bool) {
	for _, pk := range d.publicKeys {
		if pk.ID.Equal(id) {
			return pk, true
		}
	}

	if doc, ok := d.controllerDocs[id.DID()]; ok && doc.IsAuthenticationKey(id) {
		return doc.PublicKey(id)
	}

	return PublicKey{}, false
}

// PublicKeyBase58 returns the base58 value of a key.
func (d *Document) PublicKeyBase58(id did.DIDURL) (string, bool) {
	pk, ok := d.PublicKey(id)
	return pk.PublicKeyBase58, ok
}

// AuthenticationKeys returns the authentication keys of the document.
func (d *Document) AuthenticationKeys() []PublicKey {
	return d.selectKeys(d.authentication)
}

// AuthorizationKeys returns the authorization keys of the document.
func (d *Document) AuthorizationKeys() []PublicKey {
	return d.selectKeys(d.authorization)
}

func (d *Document) selectKeys(set map[string]bool) []PublicKey {
	var keys []PublicKey
	for _, pk := range d.publicKeys {
		if set[pk.ID.String()] {
			keys = append(keys, pk)
		}
	}

	return keys
}

// IsAuthenticationKey reports whether id is an authentication key of the
// document or of one of its controllers.
func (d *Document) IsAuthenticationKey(id did.DIDURL) bool {
	if d.authentication[id.String()] {
		return true
	}

	if doc, ok := d.controllerDocs[id.DID()]; ok {
		return doc.IsAuthenticationKey(id)
	}

	return false
}

// IsAuthorizationKey reports whether id is an authorization key.
func (d *Document) IsAuthorizationKey(id did.DIDURL) bool {
	return d.authorization[id.String()]
}

// DefaultPublicKeyID returns the default key, or the default key of the
// effective controller for a customized document.
func (d *Document) DefaultPublicKeyID() (did.DIDURL, bool) {
	if !d.defaultKey.IsZero() {
		return d.defaultKey, true
	}

	if doc, ok := d.controllerDocs[d.effectiveController]; ok {
		return doc.DefaultPublicKeyID()
	}

	return did.DIDURL{}, false
}

// Credentials returns the embedded credentials, ordered by id.
func (d *Document) Credentials() []*vc.Credential {
	return append([]*vc.Credential(nil), d.credentials...)
}

// Credential looks up an embedded credential.
func (d *Document) Credential(id did.DIDURL) (*vc.Credential, bool) {
	for _, c := range d.credentials {
		if c.ID().Equal(id) {
			return c, true
		}
	}

	return nil, false
}

// Services returns the services, ordered by id.
func (d *Document) Services() []Service { return append([]Service(nil), d.services...) }

// Service looks up a service.
func (d *Document) Service(id did.DIDURL) (Service, bool) {
	for _, svc := range d.services {
		if svc.ID.Equal(id) {
			return svc, true
		}
	}

	return Service{}, false
}

// Expires returns the expiration time.
func (d *Document) Expires() time.Time { return d.expires }

// Proofs returns the document proofs.
func (d *Document) Proofs() []Proof { return append([]Proof(nil), d.proofs...) }

// Proof returns the first proof.
func (d *Document) Proof() (Proof, bool) {
	if len(d.proofs) == 0 {
		return Proof{}, false
	}

	return d.proofs[0], true
}

// Metadata returns a copy of the attached metadata, nil if none.
func (d *Document) Metadata() *metadata.DIDMetadata { return d.metadata.Clone() }

// SetMetadata attaches resolution metadata to the document.
func (d *Document) SetMetadata(md *metadata.DIDMetadata) { d.metadata = md.Clone() }

// TransactionID returns the id of the transaction that published the
// document, if known.
func (d *Document) TransactionID() string {
	if d.metadata == nil {
		return ""
	}

	return d.metadata.TransactionID
}

// IsExpired reports whether the document has expired.
func (d *Document) IsExpired() bool {
	return time.Now().After(d.expires)
}

// IsDeactivated reports whether the metadata marks the DID deactivated.
func (d *Document) IsDeactivated() bool {
	return d.metadata != nil && d.metadata.Deactivated
}

// RequiredProofs returns the number of proofs a complete document carries.
func (d *Document) RequiredProofs() int {
	if d.multisig == nil {
		return 1
	}

	return d.multisig.M
}

// IsQualified reports whether the document carries all required proofs.
func (d *Document) IsQualified() bool {
	return len(d.proofs) == d.RequiredProofs()
}

// Map returns the document as a JSON object.
func (d *Document) Map(normalized bool) jsonmap.JSONMap {
	return serializeDocument(d, normalized, false)
}

// JSON returns the canonical JSON of the document.
func (d *Document) JSON(normalized bool) ([]byte, error) {
	return jsonmap.Marshal(serializeDocument(d, normalized, false))
}

// MarshalJSON returns the normalized JSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.JSON(true)
}

// SigningInput returns the bytes covered by the proofs: the normalized JSON
// without proofs.
func (d *Document) SigningInput() ([]byte, error) {
	return jsonmap.Marshal(serializeDocument(d, true, true))
}

func (d *Document) String() string {
	data, err := d.JSON(false)
	if err != nil {
		return d.subject.String()
	}

	return string(data)
}

// SubjectFromKey returns the DID owned by a base58 public key.
func SubjectFromKey(keyBase58 string) (did.DID, error) {
	addr, err := crypto.AddressFromBase58(keyBase58)
	if err != nil {
		return did.DID{}, fmt.Errorf("%w: %w", diderrors.ErrIllegalArgument, err)
	}

	return did.NewDefault(addr), nil
}

// clone returns a deep enough copy for editing: slices and sets are copied,
// credentials and controller documents are shared.
func (d *Document) clone() *Document {
	c := *d
	c.contexts = append([]string(nil), d.contexts...)
	c.controllers = append([]did.DID(nil), d.controllers...)
	c.multisig = d.MultiSignature()
	c.publicKeys = append([]PublicKey(nil), d.publicKeys...)
	c.authentication = copySet(d.authentication)
	c.authorization = copySet(d.authorization)
	c.credentials = append([]*vc.Credential(nil), d.credentials...)
	c.services = append([]Service(nil), d.services...)
	c.proofs = append([]Proof(nil), d.proofs...)
	c.controllerDocs = make(map[did.DID]*Document, len(d.controllerDocs))
	for k, v := range d.controllerDocs {
		c.controllerDocs[k] = v
	}
	c.metadata = d.metadata.Clone()

	return &c
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}
