package vc

import (
	"context"
	"errors"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/verification"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-credential")

// SignerDocument is the DID document of the party that seals a credential
// or presentation.
type SignerDocument interface {
	Subject() did.DID
	// DefaultPublicKeyID returns the default key, if the document has one.
	DefaultPublicKeyID() (did.DIDURL, bool)
	IsAuthenticationKey(id did.DIDURL) bool
	Expires() time.Time
}

// VerifierDocument is the resolved DID document of an issuer or holder.
type VerifierDocument interface {
	SignerDocument
	PublicKeyBase58(id did.DIDURL) (string, bool)
	IsGenuine(listener verification.Listener) bool
	IsValid(listener verification.Listener) bool
}

// Resolver finds the current document of a DID. It returns
// diderrors.ErrDIDNotFound when the DID does not exist.
type Resolver interface {
	ResolveVerifier(ctx context.Context, id did.DID) (VerifierDocument, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id did.DID) (VerifierDocument, error)

// ResolveVerifier implements Resolver.
func (f ResolverFunc) ResolveVerifier(ctx context.Context, id did.DID) (VerifierDocument, error) {
	return f(ctx, id)
}

// RevocationResolver reports whether a credential was revoked on chain.
type RevocationResolver interface {
	IsCredentialRevoked(ctx context.Context, id did.DIDURL, issuer did.DID) (bool, error)
}

// VerifySignature checks sig over data with the key id of doc.
func VerifySignature(doc VerifierDocument, id did.DIDURL, sig string, data ...[]byte) bool {
	keyBase58, ok := doc.PublicKeyBase58(id)
	if !ok {
		return false
	}

	return crypto.Verify(keyBase58, sig, data...)
}

// IsGenuine checks the issuer document and the proof of the credential.
// An error is returned only when the issuer document cannot be resolved for
// a reason other than non-existence.
func (c *Credential) IsGenuine(ctx context.Context, resolver Resolver, listener verification.Listener) (bool, error) {
	chk := verification.NewCheck(listener, c)

	if !chk.Verify(c.id.DID() == c.subject.ID,
		"VC %s: invalid id, should under the scope of '%s'", c.id, c.subject.ID) {
		return c.finish(chk, "is genuine", "is not genuine"), nil
	}

	issuerDoc, err := resolver.ResolveVerifier(ctx, c.issuer)
	if err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
		return false, err
	}
	if !chk.Require(err == nil && issuerDoc != nil,
		"VC %s: can not resolve the document for issuer '%s'", c.id, c.issuer) {
		return c.finish(chk, "is genuine", "is not genuine"), nil
	}

	if !chk.Verify(issuerDoc.IsGenuine(listener), "VC %s: issuer '%s' is genuine", c.id, c.issuer) {
		return c.finish(chk, "is genuine", "is not genuine"), nil
	}

	if !c.verifyProof(chk, issuerDoc) {
		return c.finish(chk, "is genuine", "is not genuine"), nil
	}

	if !c.IsSelfProclaimed() {
		holderDoc, err := resolver.ResolveVerifier(ctx, c.subject.ID)
		if err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return false, err
		}
		if err == nil && holderDoc != nil {
			chk.Verify(holderDoc.IsGenuine(listener), "VC %s: holder's document is genuine", c.id)
		}
	}

	return c.finish(chk, "is genuine", "is not genuine"), nil
}

// IsValid is IsGenuine plus the expiration of the credential and the
// validity of the issuer and holder documents.
func (c *Credential) IsValid(ctx context.Context, resolver Resolver, listener verification.Listener) (bool, error) {
	chk := verification.NewCheck(listener, c)

	if !chk.Verify(!c.IsExpired(), "VC %s: is not expired", c.id) {
		return c.finish(chk, "is valid", "is invalid"), nil
	}

	if !chk.Verify(c.id.DID() == c.subject.ID,
		"VC %s: invalid id, should under the scope of '%s'", c.id, c.subject.ID) {
		return c.finish(chk, "is valid", "is invalid"), nil
	}

	issuerDoc, err := resolver.ResolveVerifier(ctx, c.issuer)
	if err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
		return false, err
	}
	if !chk.Require(err == nil && issuerDoc != nil,
		"VC %s: can not resolve the document for issuer '%s'", c.id, c.issuer) {
		return c.finish(chk, "is valid", "is invalid"), nil
	}

	if !chk.Verify(issuerDoc.IsValid(listener), "VC %s: issuer '%s' is valid", c.id, c.issuer) {
		return c.finish(chk, "is valid", "is invalid"), nil
	}

	if !c.verifyProof(chk, issuerDoc) {
		return c.finish(chk, "is valid", "is invalid"), nil
	}

	if !c.IsSelfProclaimed() {
		holderDoc, err := resolver.ResolveVerifier(ctx, c.subject.ID)
		if err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return false, err
		}
		if err == nil && holderDoc != nil {
			chk.Verify(holderDoc.IsValid(listener), "VC %s: holder's document is valid", c.id)
		}
	}

	return c.finish(chk, "is valid", "is invalid"), nil
}

// IsRevoked asks the resolver whether the credential was revoked.
func (c *Credential) IsRevoked(ctx context.Context, resolver RevocationResolver) (bool, error) {
	return resolver.IsCredentialRevoked(ctx, c.id, c.issuer)
}

// verifyProof checks the proof key and signature against the issuer document.
func (c *Credential) verifyProof(chk *verification.Check, issuerDoc VerifierDocument) bool {
	vm := c.proof.VerificationMethod

	if !chk.Verify(issuerDoc.IsAuthenticationKey(vm),
		"VC %s: key '%s' for proof is an authentication key of '%s'", c.id, vm, vm.DID()) {
		return false
	}

	if !chk.Verify(c.proof.Type == crypto.KeyTypeSecp256k1,
		"VC %s: key type '%s' for proof is supported", c.id, c.proof.Type) {
		return false
	}

	data, err := c.SigningInput()
	if err != nil {
		return chk.Fail("VC %s: failed to serialize: %s", c.id, err)
	}

	return chk.Verify(VerifySignature(issuerDoc, vm, c.proof.Signature, data),
		"VC %s: proof signature matches", c.id)
}

func (c *Credential) finish(chk *verification.Check, okMsg, failMsg string) bool {
	ok := chk.Result()
	if ok {
		chk.Verify(true, "VC %s: %s", c.id, okMsg)
	} else {
		chk.Fail("VC %s: %s", c.id, failMsg)
	}

	logger.Debug("Verified credential", logfields.WithID(c.id), logfields.WithValid(ok))

	return ok
}
