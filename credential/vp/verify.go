package vp

import (
	"context"
	"errors"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/verification"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-presentation")

// IsGenuine checks the holder document, every credential and the proof.
func (p *Presentation) IsGenuine(ctx context.Context, resolver vc.Resolver, listener verification.Listener) (bool, error) {
	return p.verify(ctx, resolver, listener, false)
}

// IsValid is IsGenuine with validity checks on the holder document and the
// credentials.
func (p *Presentation) IsValid(ctx context.Context, resolver vc.Resolver, listener verification.Listener) (bool, error) {
	return p.verify(ctx, resolver, listener, true)
}

func (p *Presentation) verify(ctx context.Context, resolver vc.Resolver, listener verification.Listener, valid bool) (bool, error) {
	chk := verification.NewCheck(listener, p)
	label := p.label()

	holderDoc, err := resolver.ResolveVerifier(ctx, p.holder)
	if err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
		return false, err
	}
	if !chk.Require(err == nil && holderDoc != nil,
		"VP %s: can not resolve the holder's document", label) {
		return p.finish(chk, valid), nil
	}

	if valid {
		if !chk.Verify(holderDoc.IsValid(listener), "VP %s: holder's document is valid", label) {
			return p.finish(chk, valid), nil
		}
	} else if !chk.Verify(holderDoc.IsGenuine(listener), "VP %s: holder's document is genuine", label) {
		return p.finish(chk, valid), nil
	}

	if !chk.Verify(p.proof.Type == crypto.KeyTypeSecp256k1,
		"VP %s: key type '%s' for proof is supported", label, p.proof.Type) {
		return p.finish(chk, valid), nil
	}

	vm := p.proof.VerificationMethod
	if !chk.Verify(holderDoc.IsAuthenticationKey(vm),
		"VP %s: key '%s' for proof is an authentication key of '%s'", label, vm, vm.DID()) {
		return p.finish(chk, valid), nil
	}

	for _, c := range p.credentials {
		if !chk.Verify(c.Subject().ID == p.holder,
			"VP %s: credential '%s' is owned by the holder '%s'", label, c.ID(), p.holder) {
			return p.finish(chk, valid), nil
		}

		var ok bool
		if valid {
			ok, err = c.IsValid(ctx, resolver, listener)
		} else {
			ok, err = c.IsGenuine(ctx, resolver, listener)
		}
		if err != nil {
			return false, err
		}
		if !chk.Verify(ok, "VP %s: credential '%s' is verified", label, c.ID()) {
			return p.finish(chk, valid), nil
		}
	}

	data, err := p.SigningInput()
	if err != nil {
		chk.Fail("VP %s: failed to serialize: %s", label, err)
		return p.finish(chk, valid), nil
	}

	chk.Verify(vc.VerifySignature(holderDoc, vm, p.proof.Signature, data...),
		"VP %s: proof signature matches", label)

	return p.finish(chk, valid), nil
}

func (p *Presentation) finish(chk *verification.Check, valid bool) bool {
	okMsg, failMsg := "is genuine", "is not genuine"
	if valid {
		okMsg, failMsg = "is valid", "is invalid"
	}

	ok := chk.Result()
	if ok {
		chk.Verify(true, "VP %s: %s", p.label(), okMsg)
	} else {
		chk.Fail("VP %s: %s", p.label(), failMsg)
	}

	logger.Debug("Verified presentation", logfields.WithDID(p.holder), logfields.WithValid(ok))

	return ok
}
