// Package idchain implements the requests written to the ID chain to create,
// update, transfer and deactivate DIDs and to declare and revoke
// credentials, and the transactions wrapping them in resolution results.
package idchain

import (
	"context"
	"fmt"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/keystore"
	"github.com/pilacorp/go-did-sdk/ticket"
)

var logger = log.New("did-idchain")

// JSON field names.
const (
	jsonFldHeader             = "header"
	jsonFldPayload            = "payload"
	jsonFldProof              = "proof"
	jsonFldSpecification      = "specification"
	jsonFldOperation          = "operation"
	jsonFldPreviousTxID       = "previousTxid"
	jsonFldTicket             = "ticket"
	jsonFldType               = "type"
	jsonFldVerificationMethod = "verificationMethod"
	jsonFldSignature          = "signature"
)

// Header describes the operation of a request.
type Header struct {
	specification string
	operation     Operation
	previousTxID  string
	ticket        string
}

func newHeader(op Operation) Header {
	return Header{specification: op.Specification(), operation: op}
}

// Specification returns the specification tag.
func (h Header) Specification() string { return h.specification }

// Operation returns the operation.
func (h Header) Operation() Operation { return h.operation }

// PreviousTxID returns the id of the transaction an update request follows.
func (h Header) PreviousTxID() string { return h.previousTxID }

// Ticket returns the base64url encoded transfer ticket of a transfer request.
func (h Header) Ticket() string { return h.ticket }

// Proof is the signature of a request.
type Proof struct {
	Type               string
	VerificationMethod did.DIDURL
	Signature          string
}

// Signer selects the key sealing a request. A zero Key means the default
// key of the signer document.
type Signer struct {
	Key      did.DIDURL
	KeyStore keystore.KeyStore
	Password string
}

// ParseOpt configures request and transaction parsing.
type ParseOpt func(*parseOptions)

type parseOptions struct {
	parser    *did.Parser
	processor *schema.Processor
}

// WithParser sets the parser of the DIDs and DID URLs carried by requests.
// Nil keeps the default.
func WithParser(p *did.Parser) ParseOpt {
	return func(o *parseOptions) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithProcessor enables JSON-LD context checks on the documents and
// credentials carried by requests.
func WithProcessor(p *schema.Processor) ParseOpt {
	return func(o *parseOptions) {
		o.processor = p
	}
}

func getParseOptions(opts []ParseOpt) *parseOptions {
	o := &parseOptions{parser: did.DefaultParser()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// optionsFor returns the options of a request built for subject.
func optionsFor(subject did.DID) *parseOptions {
	return &parseOptions{parser: did.ParserFor(subject)}
}

func (o *parseOptions) documentOpts() []document.Opt {
	return []document.Opt{document.WithParser(o.parser), document.WithProcessor(o.processor)}
}

func (o *parseOptions) credentialOpts() []vc.CredentialOpt {
	return []vc.CredentialOpt{vc.WithParser(o.parser), vc.WithProcessor(o.processor)}
}

func (o *parseOptions) ticketOpts() []ticket.Opt {
	return []ticket.Opt{ticket.WithParser(o.parser)}
}

// Request is the envelope shared by DID and credential requests.
type Request struct {
	header  Header
	payload string
	proof   *Proof
	opts    *parseOptions
}

func (r *Request) parseOptions() *parseOptions {
	if r.opts == nil {
		r.opts = getParseOptions(nil)
	}

	return r.opts
}

// Header returns the request header.
func (r *Request) Header() Header { return r.header }

// Operation returns the operation of the request.
func (r *Request) Operation() Operation { return r.header.operation }

// Payload returns the payload: base64url JSON for create, update, transfer
// and declare, an identifier for deactivate and revoke.
func (r *Request) Payload() string { return r.payload }

// Proof returns the proof of the request, if sealed.
func (r *Request) Proof() (Proof, bool) {
	if r.proof == nil {
		return Proof{}, false
	}

	return *r.proof, true
}

// SigningInputs returns the segments covered by the proof: specification,
// operation, previous txid for updates, ticket for transfers and payload.
func (r *Request) SigningInputs() [][]byte {
	var prevTxID, ticket string
	switch r.header.operation {
	case Update:
		prevTxID = r.header.previousTxID
	case Transfer:
		ticket = r.header.ticket
	}

	return [][]byte{
		[]byte(r.header.specification),
		[]byte(r.header.operation.String()),
		[]byte(prevTxID),
		[]byte(ticket),
		[]byte(r.payload),
	}
}

// Map returns the request as a JSON object.
func (r *Request) Map() jsonmap.JSONMap {
	header := jsonmap.JSONMap{
		jsonFldSpecification: r.header.specification,
		jsonFldOperation:     r.header.operation.String(),
	}
	if r.header.operation == Update && r.header.previousTxID != "" {
		header[jsonFldPreviousTxID] = r.header.previousTxID
	}
	if r.header.operation == Transfer && r.header.ticket != "" {
		header[jsonFldTicket] = r.header.ticket
	}

	m := jsonmap.JSONMap{jsonFldHeader: header}
	if r.payload != "" {
		m[jsonFldPayload] = r.payload
	}
	if r.proof != nil {
		m[jsonFldProof] = jsonmap.JSONMap{
			jsonFldType:               r.proof.Type,
			jsonFldVerificationMethod: r.proof.VerificationMethod.String(),
			jsonFldSignature:          r.proof.Signature,
		}
	}

	return m
}

// JSON returns the canonical JSON of the request.
func (r *Request) JSON() ([]byte, error) {
	return jsonmap.Marshal(r.Map())
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	return r.JSON()
}

func (r *Request) String() string {
	data, err := r.JSON()
	if err != nil {
		return r.header.operation.String()
	}

	return string(data)
}

// sanitizeHeader checks the specification tag and that the operation is
// one of allowed.
func (r *Request) sanitizeHeader(spec string, allowed ...Operation) error {
	if r.header.specification == "" {
		return fmt.Errorf("missing specification")
	}
	if r.header.specification != spec {
		return fmt.Errorf("unsupported specification %s", r.header.specification)
	}

	for _, op := range allowed {
		if op == r.header.operation {
			return nil
		}
	}

	return fmt.Errorf("invalid operation %s", r.header.operation)
}

// sanitizeProof checks the presence of the proof.
func (r *Request) sanitizeProof() error {
	if r.proof == nil {
		return fmt.Errorf("missing proof")
	}
	if r.proof.Signature == "" {
		return fmt.Errorf("missing proof signature")
	}

	return nil
}

// seal signs the request with key and sets the proof, recorded under method.
// The proof method differs from key only for deactivation by authorization.
func (r *Request) seal(ctx context.Context, method did.DIDURL, s Signer, key did.DIDURL) error {
	if r.payload == "" {
		return diderrors.Errorf(diderrors.ErrMalformedIDChainRequest, "missing payload")
	}

	sig, err := s.KeyStore.Sign(ctx, key, s.Password, r.SigningInputs()...)
	if err != nil {
		return fmt.Errorf("failed to sign %s request: %w", r.header.operation, err)
	}

	r.proof = &Proof{
		Type:               crypto.KeyTypeSecp256k1,
		VerificationMethod: method,
		Signature:          crypto.EncodeSignature(sig),
	}

	logger.Debug("Sealed ID chain request", logfields.WithOperation(r.header.operation),
		logfields.WithKeyID(method))

	return nil
}

// signerDocument is what sealing needs to know about the signer.
type signerDocument interface {
	Subject() did.DID
	DefaultPublicKeyID() (did.DIDURL, bool)
	IsAuthenticationKey(id did.DIDURL) bool
}

// signKey resolves the key of s against doc and checks that it is an
// authentication key of doc held by the key store.
func signKey(doc signerDocument, s Signer) (did.DIDURL, error) {
	if s.KeyStore == nil {
		return did.DIDURL{}, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing key store")
	}
	if s.Password == "" {
		return did.DIDURL{}, diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}

	key := s.Key
	if key.IsZero() {
		id, ok := doc.DefaultPublicKeyID()
		if !ok {
			return did.DIDURL{}, fmt.Errorf("%s: %w", doc.Subject(), diderrors.ErrNoEffectiveController)
		}
		key = id
	}

	if !doc.IsAuthenticationKey(key) {
		return did.DIDURL{}, diderrors.Errorf(diderrors.ErrInvalidKey, "not an authentication key: %s", key)
	}
	if !s.KeyStore.ContainsPrivateKey(key) {
		return did.DIDURL{}, diderrors.Errorf(diderrors.ErrInvalidKey, "no private key: %s", key)
	}

	return key, nil
}

// parseRequest reads the envelope fields. The proof is returned raw: its
// verification method may be relative to the DID carried by the payload.
func parseRequest(m jsonmap.JSONMap, opts []ParseOpt) (Request, map[string]interface{}, error) {
	r := Request{opts: getParseOptions(opts)}

	header, ok := asObject(m[jsonFldHeader])
	if !ok {
		return r, nil, fmt.Errorf("missing header")
	}

	r.header.specification, _ = header[jsonFldSpecification].(string)

	opName, _ := header[jsonFldOperation].(string)
	if opName == "" {
		return r, nil, fmt.Errorf("missing operation")
	}
	op, err := ParseOperation(opName)
	if err != nil {
		return r, nil, err
	}
	r.header.operation = op

	r.header.previousTxID, _ = header[jsonFldPreviousTxID].(string)
	r.header.ticket, _ = header[jsonFldTicket].(string)
	r.payload, _ = m[jsonFldPayload].(string)

	var proof map[string]interface{}
	if v, ok := m[jsonFldProof]; ok && v != nil {
		if proof, ok = asObject(v); !ok {
			return r, nil, fmt.Errorf("invalid proof")
		}
	}

	return r, proof, nil
}

// parseProof parses a request proof, resolving a relative verification
// method against base.
func parseProof(obj map[string]interface{}, parser *did.Parser, base did.DID) (*Proof, error) {
	p := &Proof{Type: crypto.KeyTypeSecp256k1}
	if s, ok := obj[jsonFldType].(string); ok && s != "" {
		p.Type = s
	}

	vm, _ := obj[jsonFldVerificationMethod].(string)
	if vm == "" {
		return nil, fmt.Errorf("missing proof verificationMethod")
	}

	u, err := parser.ParseURLWithContext(base, vm)
	if err != nil {
		return nil, fmt.Errorf("invalid proof verificationMethod: %w", err)
	}
	p.VerificationMethod = u

	p.Signature, _ = obj[jsonFldSignature].(string)

	return p, nil
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch o := v.(type) {
	case jsonmap.JSONMap:
		return o, true
	case map[string]interface{}:
		return o, true
	default:
		return nil, false
	}
}
