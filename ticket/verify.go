package ticket

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

// IsGenuine checks the proofs: the target document is genuine, there are
// as many proofs as the multisig rule requires, each is made by the default
// key of a distinct valid controller and the signatures match. An error is
// returned only when resolution fails for a reason other than non-existence.
func (t *TransferTicket) IsGenuine(ctx context.Context, resolver document.Resolver, listener verification.Listener) (bool, error) {
	chk := verification.NewCheck(listener, t)

	doc, err := t.document(ctx, resolver)
	if err != nil {
		return false, err
	}

	t.checkGenuine(chk, doc, listener)

	return t.finish(chk, "is genuine", "is not genuine"), nil
}

// IsValid is IsGenuine plus the validity of the target document and the
// freshness of the transaction id.
func (t *TransferTicket) IsValid(ctx context.Context, resolver document.Resolver, listener verification.Listener) (bool, error) {
	chk := verification.NewCheck(listener, t)

	doc, err := t.document(ctx, resolver)
	if err != nil {
		return false, err
	}

	if !chk.Require(doc != nil, "Ticket %s: can resolve the owner document", t.id) {
		return t.finish(chk, "is valid", "is invalid"), nil
	}

	if !chk.Verify(doc.IsValid(listener), "Ticket %s: the owner document is valid", t.id) {
		return t.finish(chk, "is valid", "is invalid"), nil
	}

	if !t.checkGenuine(chk, doc, listener) {
		return t.finish(chk, "is valid", "is invalid"), nil
	}

	chk.Verify(t.txid == doc.TransactionID(),
		"Ticket %s: transaction id '%s' is the last transaction of the owner", t.id, t.txid)

	return t.finish(chk, "is valid", "is invalid"), nil
}

// document returns the attached target document or resolves it, along
// with its controllers. A missing DID gives a nil document.
func (t *TransferTicket) document(ctx context.Context, resolver document.Resolver) (*document.Document, error) {
	doc := t.doc
	if doc == nil {
		if resolver == nil {
			return nil, nil
		}

		resolved, err := resolver.ResolveDocument(ctx, t.id)
		if errors.Is(err, diderrors.ErrDIDNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		doc = resolved
	}

	if resolver != nil && doc != nil {
		if err := doc.ResolveControllers(ctx, resolver); err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return nil, err
		}
	}

	t.doc = doc

	return doc, nil
}

func (t *TransferTicket) checkGenuine(chk *verification.Check, doc *document.Document, listener verification.Listener) bool {
	if !chk.Require(doc != nil, "Ticket %s: can resolve the owner document", t.id) {
		return false
	}

	if !chk.Verify(doc.IsGenuine(listener), "Ticket %s: the owner document is genuine", t.id) {
		return false
	}

	if !chk.Verify(len(t.proofs) == doc.RequiredProofs(),
		"Ticket %s: proof size %d matches multisig, %d expected", t.id, len(t.proofs), doc.RequiredProofs()) {
		return false
	}

	data, err := t.SigningInput()
	if err != nil {
		return chk.Fail("Ticket %s: failed to serialize: %s", t.id, err)
	}

	signed := make(map[did.DID]bool, len(t.proofs))
	for _, p := range t.proofs {
		vm := p.VerificationMethod
		controller := vm.DID()

		if !chk.Verify(p.Type == crypto.KeyTypeSecp256k1,
			"Ticket %s: key type '%s' for proof is supported", t.id, p.Type) {
			return false
		}

		if !chk.Verify(!signed[controller], "Ticket %s: controller '%s' signed once", t.id, controller) {
			return false
		}
		signed[controller] = true

		controllerDoc, ok := doc.ControllerDocument(controller)
		if !chk.Require(ok, "Ticket %s: can resolve the document of controller '%s'", t.id, controller) {
			return false
		}

		if !chk.Verify(controllerDoc.IsValid(listener), "Ticket %s: controller '%s' is valid", t.id, controller) {
			return false
		}

		defaultKey, ok := controllerDoc.DefaultPublicKeyID()
		if !chk.Verify(ok && vm.Equal(defaultKey),
			"Ticket %s: key '%s' for proof is the default key of '%s'", t.id, vm, controller) {
			return false
		}

		keyBase58, ok := controllerDoc.PublicKeyBase58(vm)
		if !chk.Verify(ok && crypto.Verify(keyBase58, p.Signature, data),
			"Ticket %s: proof '%s' signature matches", t.id, vm) {
			return false
		}
	}

	return chk.Result()
}

func (t *TransferTicket) finish(chk *verification.Check, okMsg, failMsg string) bool {
	ok := chk.Result()
	if ok {
		chk.Verify(true, "Ticket %s: %s", t.id, okMsg)
	} else {
		chk.Fail("Ticket %s: %s", t.id, failMsg)
	}

	logger.Debug("Verified transfer ticket", logfields.WithDID(t.id), logfields.WithValid(ok))

	return ok
}
