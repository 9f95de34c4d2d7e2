// Package ticket implements transfer tickets: the multi-signed authorization
// of the controllers of a customized DID to hand it over to a new owner.
package ticket

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/keystore"
)

var logger = log.New("did-ticket")

// JSON field names.
const (
	jsonFldID                 = "id"
	jsonFldTo                 = "to"
	jsonFldTxID               = "txid"
	jsonFldProof              = "proof"
	jsonFldType               = "type"
	jsonFldCreated            = "created"
	jsonFldVerificationMethod = "verificationMethod"
	jsonFldSignature          = "signature"
)

// Proof is the signature of one controller.
type Proof struct {
	Type               string
	Created            time.Time
	VerificationMethod did.DIDURL
	Signature          string
}

// TransferTicket authorizes the transfer of a customized DID to a new
// owner. It is bound to the last transaction of the DID.
type TransferTicket struct {
	id     did.DID
	to     did.DID
	txid   string
	proofs []Proof

	doc *document.Document
}

// New starts an unsigned ticket for target. An empty txid means the
// transaction id from the metadata of target.
func New(target *document.Document, to did.DID, txid string) (*TransferTicket, error) {
	if target == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil target document")
	}
	if !target.IsCustomized() {
		return nil, fmt.Errorf("%s: %w", target.Subject(), diderrors.ErrNotCustomizedDID)
	}
	if to.IsZero() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing new owner")
	}

	if txid == "" {
		txid = target.TransactionID()
	}
	if txid == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing transaction id of %s", target.Subject())
	}

	return &TransferTicket{id: target.Subject(), to: to, txid: txid, doc: target}, nil
}

// Opt configures ticket parsing.
type Opt func(*options)

type options struct {
	isValidateSchema bool
	parser           *did.Parser
}

// WithParser sets the parser of the ticket DIDs. Nil keeps the default.
func WithParser(p *did.Parser) Opt {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithSchemaValidation enables schema validation during parsing.
func WithSchemaValidation() Opt {
	return func(o *options) {
		o.isValidateSchema = true
	}
}

// Parse parses and sanitizes a ticket from its JSON form. The target
// document is resolved on verification.
func Parse(data []byte, opts ...Opt) (*TransferTicket, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedTransferTicket, err)
	}

	return ParseMap(m, opts...)
}

// ParseMap parses and sanitizes a ticket from a decoded JSON object.
func ParseMap(m jsonmap.JSONMap, opts ...Opt) (*TransferTicket, error) {
	o := &options{parser: did.DefaultParser()}
	for _, opt := range opts {
		opt(o)
	}

	if o.isValidateSchema {
		if err := schema.TicketValidator.Validate(m); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedTransferTicket, err)
		}
	}

	t, err := parseTicket(m, o.parser)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedTransferTicket, err)
	}

	return t, nil
}

// Subject returns the DID being transferred.
func (t *TransferTicket) Subject() did.DID { return t.id }

// To returns the new owner.
func (t *TransferTicket) To() did.DID { return t.to }

// TransactionID returns the id of the last transaction of the subject.
func (t *TransferTicket) TransactionID() string { return t.txid }

// Proofs returns the proofs in (created, verificationMethod) order.
func (t *TransferTicket) Proofs() []Proof { return append([]Proof(nil), t.proofs...) }

// Proof returns the first proof.
func (t *TransferTicket) Proof() (Proof, bool) {
	if len(t.proofs) == 0 {
		return Proof{}, false
	}

	return t.proofs[0], true
}

// Document returns the attached target document, nil if the ticket was
// parsed and not verified yet.
func (t *TransferTicket) Document() *document.Document { return t.doc }

// IsQualified reports whether the ticket carries the number of proofs the
// multisig rule of the target requires. It is false while the target
// document is unknown.
func (t *TransferTicket) IsQualified() bool {
	if t.doc == nil || len(t.proofs) == 0 {
		return false
	}

	return len(t.proofs) == t.doc.RequiredProofs()
}

// Seal adds the proof of one controller, made with its default key. It is a
// no-op on a qualified ticket.
func (t *TransferTicket) Seal(ctx context.Context, controller *document.Document, ks keystore.KeyStore, password string) error {
	if t.doc == nil {
		return diderrors.Errorf(diderrors.ErrIllegalState, "ticket of %s has no target document", t.id)
	}
	if t.IsQualified() {
		return nil
	}
	if password == "" {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}

	if controller.IsCustomized() {
		if _, ok := controller.EffectiveController(); !ok {
			return fmt.Errorf("%s: %w", controller.Subject(), diderrors.ErrNoEffectiveController)
		}
	}
	if !t.doc.HasController(controller.Subject()) {
		return fmt.Errorf("%s is not a controller of %s: %w", controller.Subject(), t.id, diderrors.ErrNotController)
	}

	signKey, ok := controller.DefaultPublicKeyID()
	if !ok {
		return fmt.Errorf("%s: %w", controller.Subject(), diderrors.ErrNoEffectiveController)
	}

	for _, p := range t.proofs {
		if p.VerificationMethod.DID() == signKey.DID() {
			return fmt.Errorf("%s signed ticket of %s: %w", signKey.DID(), t.id, diderrors.ErrAlreadySigned)
		}
	}

	if !controller.IsAuthenticationKey(signKey) || !ks.ContainsPrivateKey(signKey) {
		return diderrors.Errorf(diderrors.ErrInvalidKey, "can not sign with %s", signKey)
	}

	data, err := t.SigningInput()
	if err != nil {
		return fmt.Errorf("failed to serialize ticket: %w", err)
	}

	sig, err := ks.Sign(ctx, signKey, password, data)
	if err != nil {
		return fmt.Errorf("failed to sign ticket: %w", err)
	}

	t.proofs = append(t.proofs, Proof{
		Type:               crypto.KeyTypeSecp256k1,
		Created:            util.Now(),
		VerificationMethod: signKey,
		Signature:          crypto.EncodeSignature(sig),
	})
	sortProofs(t.proofs)

	logger.Debug("Signed transfer ticket", logfields.WithDID(t.id),
		logfields.WithController(controller.Subject()), logfields.WithCount(len(t.proofs)))

	return nil
}

// Map returns the ticket as a JSON object.
func (t *TransferTicket) Map() jsonmap.JSONMap {
	return serializeTicket(t, false)
}

// JSON returns the canonical JSON of the ticket.
func (t *TransferTicket) JSON() ([]byte, error) {
	return jsonmap.Marshal(serializeTicket(t, false))
}

// MarshalJSON implements json.Marshaler.
func (t *TransferTicket) MarshalJSON() ([]byte, error) {
	return t.JSON()
}

// SigningInput returns the bytes covered by the proofs: the JSON without
// proofs.
func (t *TransferTicket) SigningInput() ([]byte, error) {
	return jsonmap.Marshal(serializeTicket(t, true))
}

func (t *TransferTicket) String() string {
	data, err := t.JSON()
	if err != nil {
		return t.id.String()
	}

	return string(data)
}

func serializeTicket(t *TransferTicket, forSign bool) jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldID:   t.id.String(),
		jsonFldTo:   t.to.String(),
		jsonFldTxID: t.txid,
	}

	if !forSign && len(t.proofs) > 0 {
		proofs := make([]interface{}, len(t.proofs))
		for i, p := range t.proofs {
			proofs[i] = jsonmap.JSONMap{
				jsonFldType:               p.Type,
				jsonFldCreated:            util.FormatTime(p.Created),
				jsonFldVerificationMethod: p.VerificationMethod.String(),
				jsonFldSignature:          p.Signature,
			}
		}
		m[jsonFldProof] = proofs
	}

	return m
}

func parseTicket(m jsonmap.JSONMap, parser *did.Parser) (*TransferTicket, error) {
	t := &TransferTicket{}
	var err error

	id, ok := m.String(jsonFldID)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing ticket id")
	}
	if t.id, err = parser.ParseDID(id); err != nil {
		return nil, fmt.Errorf("invalid ticket id: %w", err)
	}

	to, ok := m.String(jsonFldTo)
	if !ok || to == "" {
		return nil, fmt.Errorf("missing ticket to")
	}
	if t.to, err = parser.ParseDID(to); err != nil {
		return nil, fmt.Errorf("invalid ticket to: %w", err)
	}

	if t.txid, ok = m.String(jsonFldTxID); !ok || t.txid == "" {
		return nil, fmt.Errorf("missing ticket txid")
	}

	var items []interface{}
	switch v := m[jsonFldProof].(type) {
	case nil:
	case []interface{}:
		items = v
	default:
		items = []interface{}{v}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("missing ticket proof")
	}

	signed := make(map[did.DID]bool, len(items))
	for _, item := range items {
		p, err := parseProof(item, parser)
		if err != nil {
			return nil, err
		}

		controller := p.VerificationMethod.DID()
		if signed[controller] {
			return nil, fmt.Errorf("already exist proof from %s", controller)
		}
		signed[controller] = true

		t.proofs = append(t.proofs, p)
	}
	sortProofs(t.proofs)

	return t, nil
}

func parseProof(v interface{}, parser *did.Parser) (Proof, error) {
	var obj map[string]interface{}
	switch o := v.(type) {
	case jsonmap.JSONMap:
		obj = o
	case map[string]interface{}:
		obj = o
	default:
		return Proof{}, fmt.Errorf("invalid ticket proof")
	}

	p := Proof{Type: crypto.KeyTypeSecp256k1}
	if s, ok := obj[jsonFldType].(string); ok && s != "" {
		p.Type = s
	}

	if s, ok := obj[jsonFldCreated].(string); ok {
		created, err := util.ParseTime(s)
		if err != nil {
			return Proof{}, fmt.Errorf("invalid ticket proof created: %w", err)
		}
		p.Created = created
	}

	vm, ok := obj[jsonFldVerificationMethod].(string)
	if !ok || vm == "" {
		return Proof{}, fmt.Errorf("missing ticket proof verificationMethod")
	}
	u, err := parser.ParseURL(vm)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid ticket proof verificationMethod: %w", err)
	}
	p.VerificationMethod = u

	if p.Signature, ok = obj[jsonFldSignature].(string); !ok || p.Signature == "" {
		return Proof{}, fmt.Errorf("missing ticket proof signature")
	}

	return p, nil
}

// sortProofs orders proofs by creation time, then verification method.
func sortProofs(proofs []Proof) {
	sort.Slice(proofs, func(i, j int) bool {
		if !proofs[i].Created.Equal(proofs[j].Created) {
			return proofs[i].Created.Before(proofs[j].Created)
		}
		return proofs[i].VerificationMethod.String() < proofs[j].VerificationMethod.String()
	})
}
