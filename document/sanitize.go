package document

import (
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/did"
)

// sanitize checks the structural rules of a parsed document and derives the
// default key and effective controller.
func (d *Document) sanitize() error {
	if err := d.sanitizeContent(); err != nil {
		return err
	}

	return d.sanitizeProofs()
}

// sanitizeContent checks everything but the proofs.
func (d *Document) sanitizeContent() error {
	if err := d.sanitizeControllers(); err != nil {
		return err
	}
	if err := d.sanitizePublicKeys(); err != nil {
		return err
	}
	if err := d.sanitizeCredentials(); err != nil {
		return err
	}
	if err := d.sanitizeServices(); err != nil {
		return err
	}
	if d.expires.IsZero() {
		return fmt.Errorf("missing expires")
	}

	return nil
}

func (d *Document) sanitizeControllers() error {
	if len(d.controllers) == 0 {
		if d.multisig != nil {
			return fmt.Errorf("invalid multisig property, document has no controllers")
		}
		return nil
	}

	sortDIDs(d.controllers)
	for i, c := range d.controllers {
		if c == d.subject {
			return fmt.Errorf("invalid controller %s, can not be the subject", c)
		}
		if i > 0 && c == d.controllers[i-1] {
			return fmt.Errorf("duplicated controller %s", c)
		}
	}

	if len(d.controllers) == 1 {
		if d.multisig != nil {
			return fmt.Errorf("invalid multisig property, single controller")
		}
		d.effectiveController = d.controllers[0]
		return nil
	}

	if d.multisig == nil {
		return fmt.Errorf("missing multisig property")
	}
	if d.multisig.N != len(d.controllers) {
		return fmt.Errorf("invalid multisig property %s, %d controllers", d.multisig, len(d.controllers))
	}

	return nil
}

func (d *Document) sanitizePublicKeys() error {
	seen := make(map[string]bool, len(d.publicKeys))
	for i := range d.publicKeys {
		pk := &d.publicKeys[i]

		if pk.ID.DID() != d.subject {
			return fmt.Errorf("invalid public key id %s, should under the subject", pk.ID)
		}
		if seen[pk.ID.String()] {
			return fmt.Errorf("public key already exists: %s", pk.ID)
		}
		seen[pk.ID.String()] = true

		if pk.PublicKeyBase58 == "" {
			return fmt.Errorf("invalid public key base58 value: %s", pk.ID)
		}
		if _, err := crypto.DecodePublicKeyBase58(pk.PublicKeyBase58); err != nil {
			return fmt.Errorf("invalid public key %s: %w", pk.ID, err)
		}
		if pk.Type == "" {
			pk.Type = crypto.KeyTypeSecp256k1
		}
		if pk.Controller.IsZero() {
			pk.Controller = d.subject
		}
	}

	for id := range d.authentication {
		pk, ok := d.ownKey(id)
		if !ok {
			return fmt.Errorf("not exists public key reference: %s", id)
		}
		if pk.Controller != d.subject {
			return fmt.Errorf("authentication key with wrong controller: %s", id)
		}
	}

	for id := range d.authorization {
		pk, ok := d.ownKey(id)
		if !ok {
			return fmt.Errorf("not exists public key reference: %s", id)
		}
		if pk.Controller == d.subject {
			return fmt.Errorf("authorization key with wrong controller: %s", id)
		}
		if d.authentication[id] {
			return fmt.Errorf("key %s can not be both authentication and authorization key", id)
		}
	}

	sortPublicKeys(d.publicKeys)

	d.defaultKey = did.DIDURL{}
	for _, pk := range d.publicKeys {
		if pk.Controller != d.subject {
			continue
		}
		if pk.Address() == d.subject.MethodSpecificID() {
			d.defaultKey = pk.ID
			d.authentication[pk.ID.String()] = true
			break
		}
	}

	if len(d.controllers) == 0 && d.defaultKey.IsZero() {
		return fmt.Errorf("missing default public key")
	}

	return nil
}

func (d *Document) ownKey(id string) (PublicKey, bool) {
	for _, pk := range d.publicKeys {
		if pk.ID.String() == id {
			return pk, true
		}
	}

	return PublicKey{}, false
}

func (d *Document) sanitizeCredentials() error {
	seen := make(map[string]bool, len(d.credentials))
	for _, c := range d.credentials {
		if c.ID().DID() != d.subject {
			return fmt.Errorf("invalid credential id %s, should under the subject", c.ID())
		}
		if c.Subject().ID != d.subject {
			return fmt.Errorf("invalid credential %s, subject should be %s", c.ID(), d.subject)
		}
		if seen[c.ID().String()] {
			return fmt.Errorf("credential already exists: %s", c.ID())
		}
		seen[c.ID().String()] = true
	}

	sortCredentials(d.credentials)

	return nil
}

func (d *Document) sanitizeServices() error {
	seen := make(map[string]bool, len(d.services))
	for _, svc := range d.services {
		if svc.ID.DID() != d.subject {
			return fmt.Errorf("invalid service id %s, should under the subject", svc.ID)
		}
		if svc.Type == "" {
			return fmt.Errorf("invalid service type: %s", svc.ID)
		}
		if svc.Endpoint == "" {
			return fmt.Errorf("missing service endpoint: %s", svc.ID)
		}
		if seen[svc.ID.String()] {
			return fmt.Errorf("service already exists: %s", svc.ID)
		}
		seen[svc.ID.String()] = true
	}

	sortServices(d.services)

	return nil
}

func (d *Document) sanitizeProofs() error {
	if len(d.proofs) == 0 {
		return fmt.Errorf("missing document proof")
	}

	creators := make(map[did.DID]bool, len(d.proofs))
	for i := range d.proofs {
		p := &d.proofs[i]

		// A relative creator of a single controller document names a key of
		// that controller.
		if d.IsCustomized() && len(d.controllers) == 1 && p.Creator.DID() == d.subject {
			p.Creator = did.NewURL(d.controllers[0], p.Creator.Fragment())
		}

		creator := p.Creator.DID()
		if creators[creator] {
			return fmt.Errorf("already exist proof from %s", creator)
		}
		creators[creator] = true
	}

	sortProofs(d.proofs)

	return nil
}
