package idchain

import (
	"context"
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/ticket"
)

// DIDRequest creates, updates, transfers or deactivates a DID.
type DIDRequest struct {
	Request

	did    did.DID
	doc    *document.Document
	ticket *ticket.TransferTicket
}

// NewCreateRequest returns a sealed request publishing doc for the first time.
func NewCreateRequest(ctx context.Context, doc *document.Document, s Signer) (*DIDRequest, error) {
	r, err := newDIDRequest(Create, doc)
	if err != nil {
		return nil, err
	}

	if err := r.sealBy(ctx, doc, s); err != nil {
		return nil, err
	}

	return r, nil
}

// NewUpdateRequest returns a sealed request publishing a new version of doc
// after the transaction previousTxID.
func NewUpdateRequest(ctx context.Context, doc *document.Document, previousTxID string, s Signer) (*DIDRequest, error) {
	if previousTxID == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing previous transaction id")
	}

	r, err := newDIDRequest(Update, doc)
	if err != nil {
		return nil, err
	}
	r.header.previousTxID = previousTxID

	if err := r.sealBy(ctx, doc, s); err != nil {
		return nil, err
	}

	return r, nil
}

// NewTransferRequest returns a request handing a customized DID over to the
// new owner named by tt. doc is the new document, controlled by the new
// owner, and the request is sealed with a key of the new owner.
func NewTransferRequest(ctx context.Context, doc *document.Document, tt *ticket.TransferTicket, s Signer) (*DIDRequest, error) {
	if tt == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing transfer ticket")
	}

	r, err := newDIDRequest(Transfer, doc)
	if err != nil {
		return nil, err
	}

	if tt.Subject() != doc.Subject() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument,
			"ticket of %s does not match document %s", tt.Subject(), doc.Subject())
	}
	if len(tt.Proofs()) == 0 {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "ticket of %s is not sealed", tt.Subject())
	}
	if !doc.HasController(tt.To()) {
		return nil, fmt.Errorf("new owner %s of %s: %w", tt.To(), doc.Subject(), diderrors.ErrNotController)
	}

	data, err := tt.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ticket: %w", err)
	}
	r.header.ticket = util.EncodeBase64URL(data)
	r.ticket = tt

	key, err := signKey(doc, s)
	if err != nil {
		return nil, err
	}
	if key.DID() != tt.To() {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "%s is not a key of the new owner %s", key, tt.To())
	}

	if err := r.seal(ctx, key, s, key); err != nil {
		return nil, err
	}

	return r, nil
}

// NewDeactivateRequest returns a request deactivating the DID of doc, sealed
// by the DID itself.
func NewDeactivateRequest(ctx context.Context, doc *document.Document, s Signer) (*DIDRequest, error) {
	r, err := newDIDRequest(Deactivate, doc)
	if err != nil {
		return nil, err
	}

	if err := r.sealBy(ctx, doc, s); err != nil {
		return nil, err
	}

	return r, nil
}

// NewDeactivateByAuthorizationRequest returns a request deactivating the DID
// of target on behalf of signer. targetKey is an authorization key of target
// sharing its key material with the authentication key of signer that seals
// the request.
func NewDeactivateByAuthorizationRequest(ctx context.Context, target *document.Document, targetKey did.DIDURL,
	signer *document.Document, s Signer) (*DIDRequest, error) {
	if signer == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil signer document")
	}

	r, err := newDIDRequest(Deactivate, target)
	if err != nil {
		return nil, err
	}

	if !target.IsAuthorizationKey(targetKey) {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "not an authorization key: %s", targetKey)
	}

	key, err := signKey(signer, s)
	if err != nil {
		return nil, err
	}

	authorized, _ := target.PublicKeyBase58(targetKey)
	own, _ := signer.PublicKeyBase58(key)
	if authorized != own {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "%s does not match authorization key %s", key, targetKey)
	}

	if err := r.seal(ctx, targetKey, s, key); err != nil {
		return nil, err
	}

	return r, nil
}

func newDIDRequest(op Operation, doc *document.Document) (*DIDRequest, error) {
	if doc == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil document")
	}

	r := &DIDRequest{
		Request: Request{header: newHeader(op), opts: optionsFor(doc.Subject())},
		did:     doc.Subject(),
		doc:     doc,
	}

	if op == Deactivate {
		r.payload = doc.Subject().String()
	} else {
		data, err := doc.JSON(true)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize document: %w", err)
		}
		r.payload = util.EncodeBase64URL(data)
	}

	return r, nil
}

func (r *DIDRequest) sealBy(ctx context.Context, signer *document.Document, s Signer) error {
	key, err := signKey(signer, s)
	if err != nil {
		return err
	}

	return r.seal(ctx, key, s, key)
}

// ParseDIDRequest parses and sanitizes a DID request from its JSON form.
func ParseDIDRequest(data []byte, opts ...ParseOpt) (*DIDRequest, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return ParseDIDRequestMap(m, opts...)
}

// ParseDIDRequestMap parses and sanitizes a DID request from a decoded JSON
// object.
func ParseDIDRequestMap(m jsonmap.JSONMap, opts ...ParseOpt) (*DIDRequest, error) {
	req, proof, err := parseRequest(m, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	r := &DIDRequest{Request: req}
	if err := r.sanitizeContent(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	if proof != nil {
		if r.proof, err = parseProof(proof, r.opts.parser, r.did); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
		}
	}

	if err := r.sanitizeProof(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return r, nil
}

// DID returns the subject of the request.
func (r *DIDRequest) DID() did.DID { return r.did }

// Document returns the document carried by the request. Deactivate requests
// carry only the DID: their document is nil unless the request was built
// locally.
func (r *DIDRequest) Document() *document.Document { return r.doc }

// PreviousTxID returns the previous transaction id of an update request.
func (r *DIDRequest) PreviousTxID() string { return r.header.previousTxID }

// TransferTicket returns the ticket of a transfer request.
func (r *DIDRequest) TransferTicket() *ticket.TransferTicket { return r.ticket }

// Sanitize checks the header, decodes the payload and checks the proof.
func (r *DIDRequest) Sanitize() error {
	if err := r.sanitizeContent(); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	if err := r.sanitizeProof(); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return nil
}

func (r *DIDRequest) sanitizeContent() error {
	if err := r.sanitizeHeader(DIDSpecification, Create, Update, Transfer, Deactivate); err != nil {
		return err
	}

	switch r.header.operation {
	case Update:
		if r.header.previousTxID == "" {
			return fmt.Errorf("missing previousTxid")
		}
	case Transfer:
		if r.header.ticket == "" {
			return fmt.Errorf("missing ticket")
		}
	}

	if r.payload == "" {
		return fmt.Errorf("missing payload")
	}

	if err := r.decodePayload(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if r.header.operation == Transfer {
		if err := r.decodeTicket(); err != nil {
			return fmt.Errorf("invalid ticket: %w", err)
		}
	}

	return nil
}

func (r *DIDRequest) decodePayload() error {
	if r.header.operation == Deactivate {
		id, err := r.parseOptions().parser.ParseDID(r.payload)
		if err != nil {
			return err
		}
		if r.doc != nil && r.doc.Subject() != id {
			return fmt.Errorf("payload %s does not match document %s", id, r.doc.Subject())
		}
		r.did = id

		return nil
	}

	data, err := util.DecodeBase64URL(r.payload)
	if err != nil {
		return err
	}

	doc, err := document.Parse(data, r.parseOptions().documentOpts()...)
	if err != nil {
		return err
	}

	if r.doc == nil {
		r.doc = doc
	}
	r.did = doc.Subject()

	return nil
}

func (r *DIDRequest) decodeTicket() error {
	data, err := util.DecodeBase64URL(r.header.ticket)
	if err != nil {
		return err
	}

	tt, err := ticket.Parse(data, r.parseOptions().ticketOpts()...)
	if err != nil {
		return err
	}
	if tt.Subject() != r.did {
		return fmt.Errorf("ticket of %s does not match %s", tt.Subject(), r.did)
	}

	if r.ticket == nil {
		r.ticket = tt
	}

	return nil
}
