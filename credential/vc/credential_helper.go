package vc

import (
	"fmt"
	"sort"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
)

// JSON field names.
const (
	jsonFldID                = "id"
	jsonFldType              = "type"
	jsonFldIssuer            = "issuer"
	jsonFldIssuanceDate      = "issuanceDate"
	jsonFldExpirationDate    = "expirationDate"
	jsonFldCredentialSubject = "credentialSubject"
	jsonFldProof             = "proof"
	jsonFldCreated           = "created"
	jsonFldVerification      = "verificationMethod"
	jsonFldSignature         = "signature"
)

// serializeCredential converts a credential into a JSON object. owner is the
// DID of an embedding document; in compact form the subject id is omitted
// when it equals owner.
func serializeCredential(c *Credential, owner did.DID, normalized, forSign bool) jsonmap.JSONMap {
	vcJSON := make(jsonmap.JSONMap)

	if len(c.contexts) > 0 {
		vcJSON[schema.ContextKey] = util.ToInterfaces(c.contexts)
	}

	if normalized {
		vcJSON[jsonFldID] = c.id.String()
	} else {
		vcJSON[jsonFldID] = c.id.RelativeString(c.subject.ID)
	}

	vcJSON[jsonFldType] = util.ToInterfaces(c.types)

	if normalized || c.issuer != c.subject.ID {
		vcJSON[jsonFldIssuer] = c.issuer.String()
	}

	vcJSON[jsonFldIssuanceDate] = util.FormatTime(c.issuanceDate)
	if !c.expirationDate.IsZero() {
		vcJSON[jsonFldExpirationDate] = util.FormatTime(c.expirationDate)
	}

	vcJSON[jsonFldCredentialSubject] = serializeSubject(c.subject, owner, normalized)

	if !forSign {
		vcJSON[jsonFldProof] = serializeProof(c.proof, c.issuer, normalized)
	}

	return vcJSON
}

// serializeSubject converts the subject into a JSON object.
func serializeSubject(subject Subject, owner did.DID, normalized bool) jsonmap.JSONMap {
	jsonObj := make(jsonmap.JSONMap, len(subject.Properties)+1)
	for k, v := range subject.Properties {
		jsonObj[k] = v
	}
	if normalized || owner.IsZero() || subject.ID != owner {
		jsonObj[jsonFldID] = subject.ID.String()
	}

	return jsonObj
}

// serializeProof converts the proof into a JSON object.
func serializeProof(proof Proof, issuer did.DID, normalized bool) jsonmap.JSONMap {
	result := make(jsonmap.JSONMap)
	if normalized || proof.Type != crypto.KeyTypeSecp256k1 {
		result[jsonFldType] = proof.Type
	}
	if !proof.Created.IsZero() {
		result[jsonFldCreated] = util.FormatTime(proof.Created)
	}
	if normalized {
		result[jsonFldVerification] = proof.VerificationMethod.String()
	} else {
		result[jsonFldVerification] = proof.VerificationMethod.RelativeString(issuer)
	}
	result[jsonFldSignature] = proof.Signature

	return result
}

// parseCredential extracts a credential from a JSON object.
func parseCredential(m jsonmap.JSONMap, parser *did.Parser, owner did.DID) (*Credential, error) {
	c := &Credential{}

	if ctx, ok := m[schema.ContextKey]; ok {
		contexts, err := util.ParseStrings(ctx)
		if err != nil {
			return nil, fmt.Errorf("invalid @context: %w", err)
		}
		c.contexts = contexts
	}

	types, err := util.ParseStrings(m[jsonFldType])
	if err != nil {
		return nil, fmt.Errorf("invalid credential type: %w", err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("missing credential type")
	}
	sort.Strings(types)
	c.types = types

	subject, err := parseSubject(m[jsonFldCredentialSubject], parser, owner)
	if err != nil {
		return nil, err
	}
	c.subject = subject

	id, ok := m.String(jsonFldID)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing credential id")
	}
	c.id, err = parser.ParseURLWithContext(subject.ID, id)
	if err != nil {
		return nil, fmt.Errorf("invalid credential id: %w", err)
	}

	c.issuer = subject.ID
	if v, exists := m[jsonFldIssuer]; exists {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid credential issuer")
		}
		if c.issuer, err = parser.ParseDID(s); err != nil {
			return nil, fmt.Errorf("invalid credential issuer: %w", err)
		}
	}

	issuanceDate, ok := m.String(jsonFldIssuanceDate)
	if !ok {
		return nil, fmt.Errorf("missing credential issuance date")
	}
	if c.issuanceDate, err = util.ParseTime(issuanceDate); err != nil {
		return nil, fmt.Errorf("invalid credential issuance date: %w", err)
	}

	expirationDate, ok := m.String(jsonFldExpirationDate)
	if !ok {
		return nil, fmt.Errorf("missing credential expiration date")
	}
	if c.expirationDate, err = util.ParseTime(expirationDate); err != nil {
		return nil, fmt.Errorf("invalid credential expiration date: %w", err)
	}

	proofObj, ok := asObject(m[jsonFldProof])
	if !ok {
		return nil, fmt.Errorf("missing credential proof")
	}
	if c.proof, err = parseProof(proofObj, parser, c.issuer); err != nil {
		return nil, err
	}

	return c, nil
}

// parseSubject extracts the credentialSubject object.
func parseSubject(v interface{}, parser *did.Parser, owner did.DID) (Subject, error) {
	obj, ok := asObject(v)
	if !ok {
		return Subject{}, fmt.Errorf("missing credential subject")
	}

	subject := Subject{ID: owner, Properties: make(map[string]interface{}, len(obj))}
	for k, val := range obj {
		if k == jsonFldID {
			s, ok := val.(string)
			if !ok {
				return Subject{}, fmt.Errorf("invalid credential subject id")
			}
			id, err := parser.ParseDID(s)
			if err != nil {
				return Subject{}, fmt.Errorf("invalid credential subject id: %w", err)
			}
			subject.ID = id
			continue
		}
		subject.Properties[k] = val
	}

	if subject.ID.IsZero() {
		return Subject{}, fmt.Errorf("missing credential subject id")
	}

	return subject, nil
}

// parseProof converts a proof object into a Proof. Relative verification
// methods refer to the issuer.
func parseProof(obj map[string]interface{}, parser *did.Parser, issuer did.DID) (Proof, error) {
	var proof Proof

	if v, exists := obj[jsonFldType]; exists {
		t, ok := v.(string)
		if !ok || t == "" {
			return Proof{}, fmt.Errorf("invalid credential proof type")
		}
		proof.Type = t
	}
	proof.Type = defaultProofType(proof.Type)

	if created, ok := obj[jsonFldCreated].(string); ok {
		t, err := util.ParseTime(created)
		if err != nil {
			return Proof{}, fmt.Errorf("invalid credential proof created: %w", err)
		}
		proof.Created = t
	}

	vm, ok := obj[jsonFldVerification].(string)
	if !ok || vm == "" {
		return Proof{}, fmt.Errorf("missing credential proof verificationMethod")
	}
	method, err := parser.ParseURLWithContext(issuer, vm)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid credential proof verificationMethod: %w", err)
	}
	proof.VerificationMethod = method

	sig, ok := obj[jsonFldSignature].(string)
	if !ok || sig == "" {
		return Proof{}, fmt.Errorf("missing credential proof signature")
	}
	proof.Signature = sig

	return proof, nil
}

// asObject accepts both decoded and freshly serialized JSON objects.
func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, true
	case jsonmap.JSONMap:
		return obj, true
	default:
		return nil, false
	}
}

func copyProperties(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}

	return out
}
