package idchain

import (
	"context"
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
)

// CredentialRequest declares or revokes a credential.
type CredentialRequest struct {
	Request

	id         did.DIDURL
	credential *vc.Credential
	signer     *document.Document
}

// NewDeclareRequest returns a request publishing cred, sealed by its owner.
func NewDeclareRequest(ctx context.Context, cred *vc.Credential, signer *document.Document, s Signer) (*CredentialRequest, error) {
	if cred == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil credential")
	}
	if signer == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil signer document")
	}
	if signer.Subject() != cred.Subject().ID {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument,
			"credential %s can only be declared by its owner", cred.ID())
	}

	data, err := cred.JSON(true)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential: %w", err)
	}

	r := &CredentialRequest{
		Request: Request{
			header:  newHeader(Declare),
			payload: util.EncodeBase64URL(data),
			opts:    optionsFor(cred.Subject().ID),
		},
		id:         cred.ID(),
		credential: cred,
		signer:     signer,
	}

	if err := r.sealBy(ctx, s); err != nil {
		return nil, err
	}

	return r, nil
}

// NewRevokeRequest returns a request revoking cred, sealed by its owner or
// its issuer.
func NewRevokeRequest(ctx context.Context, cred *vc.Credential, signer *document.Document, s Signer) (*CredentialRequest, error) {
	if cred == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil credential")
	}
	if signer == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil signer document")
	}
	if signer.Subject() != cred.Subject().ID && signer.Subject() != cred.Issuer() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument,
			"credential %s can only be revoked by its owner or issuer", cred.ID())
	}

	r := &CredentialRequest{
		Request:    Request{header: newHeader(Revoke), payload: cred.ID().String(), opts: optionsFor(cred.Subject().ID)},
		id:         cred.ID(),
		credential: cred,
		signer:     signer,
	}

	if err := r.sealBy(ctx, s); err != nil {
		return nil, err
	}

	return r, nil
}

// NewRevokeByIDRequest returns a request revoking the credential id, sealed
// by signer. The credential itself need not be known.
func NewRevokeByIDRequest(ctx context.Context, id did.DIDURL, signer *document.Document, s Signer) (*CredentialRequest, error) {
	if id.IsZero() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "missing credential id")
	}
	if signer == nil {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "nil signer document")
	}

	r := &CredentialRequest{
		Request: Request{header: newHeader(Revoke), payload: id.String(), opts: optionsFor(id.DID())},
		id:      id,
		signer:  signer,
	}

	if err := r.sealBy(ctx, s); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *CredentialRequest) sealBy(ctx context.Context, s Signer) error {
	key, err := signKey(r.signer, s)
	if err != nil {
		return err
	}

	return r.seal(ctx, key, s, key)
}

// ParseCredentialRequest parses and sanitizes a credential request from its
// JSON form.
func ParseCredentialRequest(data []byte, opts ...ParseOpt) (*CredentialRequest, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return ParseCredentialRequestMap(m, opts...)
}

// ParseCredentialRequestMap parses and sanitizes a credential request from a
// decoded JSON object.
func ParseCredentialRequestMap(m jsonmap.JSONMap, opts ...ParseOpt) (*CredentialRequest, error) {
	req, proof, err := parseRequest(m, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	r := &CredentialRequest{Request: req}
	if err := r.sanitizeContent(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	if proof != nil {
		if r.proof, err = parseProof(proof, r.opts.parser, r.id.DID()); err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
		}
	}

	if err := r.sanitizeProof(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return r, nil
}

// CredentialID returns the id of the declared or revoked credential.
func (r *CredentialRequest) CredentialID() did.DIDURL { return r.id }

// Credential returns the credential carried by the request. It is nil for
// revocations by id and for parsed revocations.
func (r *CredentialRequest) Credential() *vc.Credential { return r.credential }

// AttachCredential attaches the declared credential to a revocation parsed
// from the chain, so verification can check the signer against its owner
// and issuer.
func (r *CredentialRequest) AttachCredential(cred *vc.Credential) error {
	if cred == nil || !cred.ID().Equal(r.id) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "credential does not match %s", r.id)
	}
	if r.credential == nil {
		r.credential = cred
	}

	return nil
}

// Signer returns the signer document if the request was built locally or
// already verified.
func (r *CredentialRequest) Signer() *document.Document { return r.signer }

// Sanitize checks the header, decodes the payload and checks the proof.
func (r *CredentialRequest) Sanitize() error {
	if err := r.sanitizeContent(); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	if err := r.sanitizeProof(); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedIDChainRequest, err)
	}

	return nil
}

func (r *CredentialRequest) sanitizeContent() error {
	if err := r.sanitizeHeader(CredentialSpecification, Declare, Revoke); err != nil {
		return err
	}

	if r.payload == "" {
		return fmt.Errorf("missing payload")
	}

	if err := r.decodePayload(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	return nil
}

func (r *CredentialRequest) decodePayload() error {
	if r.header.operation == Revoke {
		id, err := r.parseOptions().parser.ParseURL(r.payload)
		if err != nil {
			return err
		}
		if !r.id.IsZero() && !r.id.Equal(id) {
			return fmt.Errorf("payload %s does not match credential %s", id, r.id)
		}
		r.id = id

		return nil
	}

	data, err := util.DecodeBase64URL(r.payload)
	if err != nil {
		return err
	}

	cred, err := vc.Parse(data, r.parseOptions().credentialOpts()...)
	if err != nil {
		return err
	}

	if r.credential == nil {
		r.credential = cred
	}
	r.id = cred.ID()

	return nil
}
