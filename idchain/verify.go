package idchain

import (
	"context"
	"errors"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/verification"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

// IsValid verifies the proof of the request against the document of its
// subject: the carried document, or the resolved one for deactivations. An
// error is returned only when resolution fails for a reason other than
// non-existence.
func (r *DIDRequest) IsValid(ctx context.Context, resolver document.Resolver, listener verification.Listener) (bool, error) {
	doc := r.doc
	if doc == nil && resolver != nil {
		resolved, err := resolveDocument(ctx, resolver, r.did)
		if err != nil {
			return false, err
		}
		doc = resolved
	}

	if doc != nil && resolver != nil {
		if err := doc.ResolveControllers(ctx, resolver); err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return false, err
		}
	}

	return r.IsValidWith(doc, listener), nil
}

// IsValidWith verifies the proof of the request against doc, the document of
// the subject. Expiration and deactivation of doc are not checked.
//
// Deactivations are sealed by the default key, an authorization key or, for
// customized DIDs, the default key of a controller. Transfers are sealed by
// the new owner named in the ticket. Everything else is sealed by an
// authentication key.
func (r *DIDRequest) IsValidWith(doc *document.Document, listener verification.Listener) bool {
	chk := verification.NewCheck(listener, r)
	op := r.header.operation

	if !chk.Require(doc != nil, "Request %s %s: can resolve the document", op, r.did) {
		return r.finish(chk)
	}

	if !chk.Require(r.proof != nil, "Request %s %s: is sealed", op, r.did) {
		return r.finish(chk)
	}
	vm := r.proof.VerificationMethod

	if !chk.Verify(doc.Subject() == r.did, "Request %s %s: document subject %s matches", op, r.did, doc.Subject()) {
		return r.finish(chk)
	}

	if !chk.Verify(doc.IsGenuine(listener), "Request %s %s: the document is genuine", op, r.did) {
		return r.finish(chk)
	}

	switch op {
	case Deactivate:
		if !doc.IsCustomized() {
			defaultKey, _ := doc.DefaultPublicKeyID()
			if !chk.Verify(vm.Equal(defaultKey) || doc.IsAuthorizationKey(vm),
				"Request %s %s: key '%s' is the default key or an authorization key", op, r.did, vm) {
				return r.finish(chk)
			}
		} else {
			controllerDoc, ok := doc.ControllerDocument(vm.DID())
			var defaultKey did.DIDURL
			if ok {
				defaultKey, ok = controllerDoc.DefaultPublicKeyID()
			}
			if !chk.Verify(ok && vm.Equal(defaultKey),
				"Request %s %s: key '%s' is the default key of a controller", op, r.did, vm) {
				return r.finish(chk)
			}
		}
	case Transfer:
		if !chk.Verify(r.ticket != nil && r.ticket.Subject() == r.did,
			"Request %s %s: ticket is issued for the DID", op, r.did) {
			return r.finish(chk)
		}
		if !chk.Verify(r.ticket != nil && vm.DID() == r.ticket.To(),
			"Request %s %s: key '%s' belongs to the new owner", op, r.did, vm) {
			return r.finish(chk)
		}
		fallthrough
	default:
		if !chk.Verify(doc.IsAuthenticationKey(vm),
			"Request %s %s: key '%s' is an authentication key", op, r.did, vm) {
			return r.finish(chk)
		}
	}

	keyBase58, ok := doc.PublicKeyBase58(vm)
	chk.Verify(ok && crypto.Verify(keyBase58, r.proof.Signature, r.SigningInputs()...),
		"Request %s %s: signature matches", op, r.did)

	return r.finish(chk)
}

func (r *DIDRequest) finish(chk *verification.Check) bool {
	ok := chk.Result()

	logger.Debug("Verified DID request", logfields.WithDID(r.did),
		logfields.WithOperation(r.header.operation), logfields.WithValid(ok))

	return ok
}

// IsValid verifies the proof of the request against the document of the
// signer: the one attached at build time or the resolved document of the
// proof's verification method. Declarations must be sealed by the owner of
// the credential, revocations of a known credential by its owner or issuer.
func (r *CredentialRequest) IsValid(ctx context.Context, resolver document.Resolver, listener verification.Listener) (bool, error) {
	doc := r.signer
	if doc == nil && r.proof != nil && resolver != nil {
		resolved, err := resolveDocument(ctx, resolver, r.proof.VerificationMethod.DID())
		if err != nil {
			return false, err
		}
		doc = resolved
	}

	if doc != nil && resolver != nil {
		if err := doc.ResolveControllers(ctx, resolver); err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return false, err
		}
	}

	ok := r.IsValidWith(doc, listener)
	if ok {
		r.signer = doc
	}

	return ok, nil
}

// IsValidWith verifies the proof of the request against doc, the document of
// the signer.
func (r *CredentialRequest) IsValidWith(doc *document.Document, listener verification.Listener) bool {
	chk := verification.NewCheck(listener, r)
	op := r.header.operation

	if !chk.Require(r.proof != nil, "Request %s %s: is sealed", op, r.id) {
		return r.finish(chk)
	}
	vm := r.proof.VerificationMethod
	signer := vm.DID()

	if !chk.Require(doc != nil, "Request %s %s: can resolve the signer %s", op, r.id, signer) {
		return r.finish(chk)
	}

	if !chk.Verify(doc.Subject() == signer, "Request %s %s: signer document %s matches", op, r.id, doc.Subject()) {
		return r.finish(chk)
	}

	if cred := r.credential; cred != nil {
		switch op {
		case Declare:
			if !chk.Verify(signer == cred.Subject().ID,
				"Request %s %s: signer %s is the owner", op, r.id, signer) {
				return r.finish(chk)
			}
		case Revoke:
			if !chk.Verify(signer == cred.Subject().ID || signer == cred.Issuer(),
				"Request %s %s: signer %s is the owner or the issuer", op, r.id, signer) {
				return r.finish(chk)
			}
		}
	}

	if !chk.Verify(doc.IsGenuine(listener), "Request %s %s: the signer document is genuine", op, r.id) {
		return r.finish(chk)
	}

	if !chk.Verify(doc.IsAuthenticationKey(vm),
		"Request %s %s: key '%s' is an authentication key", op, r.id, vm) {
		return r.finish(chk)
	}

	keyBase58, ok := doc.PublicKeyBase58(vm)
	chk.Verify(ok && crypto.Verify(keyBase58, r.proof.Signature, r.SigningInputs()...),
		"Request %s %s: signature matches", op, r.id)

	return r.finish(chk)
}

func (r *CredentialRequest) finish(chk *verification.Check) bool {
	ok := chk.Result()

	logger.Debug("Verified credential request", logfields.WithID(r.id),
		logfields.WithOperation(r.header.operation), logfields.WithValid(ok))

	return ok
}

func resolveDocument(ctx context.Context, resolver document.Resolver, id did.DID) (*document.Document, error) {
	doc, err := resolver.ResolveDocument(ctx, id)
	if errors.Is(err, diderrors.ErrDIDNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return doc, nil
}
