package document

import (
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/verification"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

var logger = log.New("did-document")

// IsGenuine checks the proofs of the document. A normal document must be
// signed by its default key. A customized document must carry one proof,
// or m proofs under multisig, each made by the default key of a distinct
// controller; the controller documents must be attached and genuine.
func (d *Document) IsGenuine(listener verification.Listener) bool {
	chk := verification.NewCheck(listener, d)

	d.checkGenuine(chk, listener)

	return d.finish(chk, "is genuine", "is not genuine")
}

// IsValid is IsGenuine plus deactivation, expiration and the validity of the
// controller documents.
func (d *Document) IsValid(listener verification.Listener) bool {
	chk := verification.NewCheck(listener, d)

	if !chk.Verify(!d.IsDeactivated(), "Document %s: is not deactivated", d.subject) {
		return d.finish(chk, "is valid", "is invalid")
	}

	if !chk.Verify(!d.IsExpired(), "Document %s: is not expired", d.subject) {
		return d.finish(chk, "is valid", "is invalid")
	}

	if !d.checkGenuine(chk, listener) {
		return d.finish(chk, "is valid", "is invalid")
	}

	for _, c := range d.controllers {
		doc, ok := d.controllerDocs[c]
		if !ok {
			continue
		}
		if !chk.Verify(doc.IsValid(listener), "Document %s: controller '%s' is valid", d.subject, c) {
			break
		}
	}

	return d.finish(chk, "is valid", "is invalid")
}

func (d *Document) checkGenuine(chk *verification.Check, listener verification.Listener) bool {
	data, err := d.SigningInput()
	if err != nil {
		return chk.Fail("Document %s: failed to serialize: %s", d.subject, err)
	}

	if !d.IsCustomized() {
		if !chk.Require(len(d.proofs) == 1, "Document %s: has exactly one proof", d.subject) {
			return false
		}

		p := d.proofs[0]
		if !chk.Verify(p.Creator.Equal(d.defaultKey),
			"Document %s: proof is created by the default key '%s'", d.subject, d.defaultKey) {
			return false
		}

		return d.checkProof(chk, p, data)
	}

	for _, c := range d.controllers {
		doc, ok := d.controllerDocs[c]
		if !chk.Require(ok, "Document %s: document of controller '%s' is resolved", d.subject, c) {
			return false
		}
		if !chk.Verify(doc.IsGenuine(listener), "Document %s: controller '%s' is genuine", d.subject, c) {
			return false
		}
	}

	if !chk.Verify(d.IsQualified(),
		"Document %s: has %d of %d required proofs", d.subject, len(d.proofs), d.RequiredProofs()) {
		return false
	}

	signed := make(map[did.DID]bool, len(d.proofs))
	for _, p := range d.proofs {
		controller := p.Creator.DID()

		if !chk.Verify(!signed[controller], "Document %s: controller '%s' signed once", d.subject, controller) {
			return false
		}
		signed[controller] = true

		doc, ok := d.controllerDocs[controller]
		if !chk.Require(ok, "Document %s: proof creator '%s' is a controller", d.subject, p.Creator) {
			return false
		}

		defaultKey, ok := doc.DefaultPublicKeyID()
		if !chk.Verify(ok && p.Creator.Equal(defaultKey),
			"Document %s: proof is created by the default key of '%s'", d.subject, controller) {
			return false
		}

		if !d.checkProof(chk, p, data) {
			return false
		}
	}

	return chk.Result()
}

func (d *Document) checkProof(chk *verification.Check, p Proof, data []byte) bool {
	if !chk.Verify(p.Type == crypto.KeyTypeSecp256k1,
		"Document %s: key type '%s' for proof is supported", d.subject, p.Type) {
		return false
	}

	keyBase58, ok := d.PublicKeyBase58(p.Creator)
	if !chk.Verify(ok, "Document %s: proof key '%s' exists", d.subject, p.Creator) {
		return false
	}

	return chk.Verify(crypto.Verify(keyBase58, p.Signature, data),
		"Document %s: proof signature of '%s' matches", d.subject, p.Creator)
}

func (d *Document) finish(chk *verification.Check, okMsg, failMsg string) bool {
	ok := chk.Result()
	if ok {
		chk.Verify(true, "Document %s: %s", d.subject, okMsg)
	} else {
		chk.Fail("Document %s: %s", d.subject, failMsg)
	}

	logger.Debug("Verified document", logfields.WithDID(d.subject), logfields.WithValid(ok))

	return ok
}
