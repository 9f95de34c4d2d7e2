package vp

import (
	"fmt"
	"sort"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
)

// JSON field names.
const (
	jsonFldID                   = "id"
	jsonFldType                 = "type"
	jsonFldHolder               = "holder"
	jsonFldCreated              = "created"
	jsonFldVerifiableCredential = "verifiableCredential"
	jsonFldProof                = "proof"
	jsonFldVerification         = "verificationMethod"
	jsonFldRealm                = "realm"
	jsonFldNonce                = "nonce"
	jsonFldSignature            = "signature"
)

// serializePresentation converts a presentation into a JSON object.
// Credentials are always emitted normalized.
func serializePresentation(p *Presentation, forSign bool) jsonmap.JSONMap {
	vpJSON := make(jsonmap.JSONMap)

	if len(p.contexts) > 0 {
		vpJSON[schema.ContextKey] = util.ToInterfaces(p.contexts)
	}
	if !p.id.IsZero() {
		vpJSON[jsonFldID] = p.id.String()
	}

	vpJSON[jsonFldType] = util.ToInterfaces(p.types)
	vpJSON[jsonFldHolder] = p.holder.String()
	vpJSON[jsonFldCreated] = util.FormatTime(p.created)

	credentials := make([]interface{}, 0, len(p.credentials))
	for _, c := range p.credentials {
		credentials = append(credentials, c.Map(true))
	}
	vpJSON[jsonFldVerifiableCredential] = credentials

	if !forSign {
		vpJSON[jsonFldProof] = jsonmap.JSONMap{
			jsonFldType:         p.proof.Type,
			jsonFldVerification: p.proof.VerificationMethod.String(),
			jsonFldRealm:        p.proof.Realm,
			jsonFldNonce:        p.proof.Nonce,
			jsonFldSignature:    p.proof.Signature,
		}
	}

	return vpJSON
}

// parsePresentation extracts a presentation from a JSON object.
func parsePresentation(m jsonmap.JSONMap, options *presentationOptions) (*Presentation, error) {
	p := &Presentation{}

	if ctx, ok := m[schema.ContextKey]; ok {
		contexts, err := util.ParseStrings(ctx)
		if err != nil {
			return nil, fmt.Errorf("invalid @context: %w", err)
		}
		p.contexts = contexts
	}

	types, err := util.ParseStrings(m[jsonFldType])
	if err != nil {
		return nil, fmt.Errorf("invalid presentation type: %w", err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("missing presentation type")
	}
	sort.Strings(types)
	p.types = types

	created, ok := m.String(jsonFldCreated)
	if !ok {
		return nil, fmt.Errorf("missing presentation created date")
	}
	if p.created, err = util.ParseTime(created); err != nil {
		return nil, fmt.Errorf("invalid presentation created date: %w", err)
	}

	proofObj, ok := m[jsonFldProof].(map[string]interface{})
	if !ok {
		if jm, isMap := m[jsonFldProof].(jsonmap.JSONMap); isMap {
			proofObj, ok = jm, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("missing presentation proof")
	}
	if p.proof, err = parseProof(proofObj, options.parser); err != nil {
		return nil, err
	}

	p.holder = p.proof.VerificationMethod.DID()
	if holder, ok := m.String(jsonFldHolder); ok && holder != "" {
		if p.holder, err = options.parser.ParseDID(holder); err != nil {
			return nil, fmt.Errorf("invalid presentation holder: %w", err)
		}
	}

	if id, ok := m.String(jsonFldID); ok && id != "" {
		if p.id, err = options.parser.ParseURLWithContext(p.holder, id); err != nil {
			return nil, fmt.Errorf("invalid presentation id: %w", err)
		}
	}

	items, ok := m[jsonFldVerifiableCredential].([]interface{})
	if !ok {
		return nil, fmt.Errorf("missing presentation credentials")
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			if jm, isMap := item.(jsonmap.JSONMap); isMap {
				obj, ok = jm, true
			}
		}
		if !ok {
			return nil, fmt.Errorf("credential at index %d is not an object", i)
		}

		c, err := vc.ParseMap(obj, vc.WithProcessor(options.processor), vc.WithParser(options.parser))
		if err != nil {
			return nil, fmt.Errorf("credential at index %d invalid: %w", i, err)
		}
		if seen[c.ID().String()] {
			return nil, fmt.Errorf("duplicated credential id: %s", c.ID())
		}
		seen[c.ID().String()] = true

		p.credentials = append(p.credentials, c)
	}
	sortCredentials(p.credentials)

	return p, nil
}

// parseProof converts a proof object into a Proof. The verification method
// must be absolute.
func parseProof(obj map[string]interface{}, parser *did.Parser) (Proof, error) {
	var proof Proof

	if t, ok := obj[jsonFldType].(string); ok {
		proof.Type = t
	}
	proof.Type = defaultProofType(proof.Type)

	vm, ok := obj[jsonFldVerification].(string)
	if !ok || vm == "" {
		return Proof{}, fmt.Errorf("missing presentation proof verificationMethod")
	}
	method, err := parser.ParseURL(vm)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid presentation proof verificationMethod: %w", err)
	}
	proof.VerificationMethod = method

	if proof.Realm, ok = obj[jsonFldRealm].(string); !ok || proof.Realm == "" {
		return Proof{}, fmt.Errorf("missing presentation proof realm")
	}
	if proof.Nonce, ok = obj[jsonFldNonce].(string); !ok || proof.Nonce == "" {
		return Proof{}, fmt.Errorf("missing presentation proof nonce")
	}
	if proof.Signature, ok = obj[jsonFldSignature].(string); !ok || proof.Signature == "" {
		return Proof{}, fmt.Errorf("missing presentation proof signature")
	}

	return proof, nil
}

func sortCredentials(credentials []*vc.Credential) {
	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].ID().String() < credentials[j].ID().String()
	})
}
