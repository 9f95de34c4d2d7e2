package document

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
)

// PublicKey is a verification method of a document.
type PublicKey struct {
	ID              did.DIDURL
	Type            string
	Controller      did.DID
	PublicKeyBase58 string
}

// Address returns the DID address derived from the key.
func (pk PublicKey) Address() string {
	addr, err := crypto.AddressFromBase58(pk.PublicKeyBase58)
	if err != nil {
		return ""
	}

	return addr
}

// Service is a service endpoint of a document. Properties never contain
// id, type or serviceEndpoint.
type Service struct {
	ID         did.DIDURL
	Type       string
	Endpoint   string
	Properties map[string]interface{}
}

// Proof is a document signature. Customized documents carry one proof per
// signing controller.
type Proof struct {
	Type      string
	Created   time.Time
	Creator   did.DIDURL
	Signature string
}

// idString renders id relative to base in compact form.
func idString(id did.DIDURL, base did.DID, normalized bool) string {
	if normalized {
		return id.String()
	}

	return id.RelativeString(base)
}

func serializePublicKey(pk PublicKey, subject did.DID, normalized bool) jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldID:              idString(pk.ID, subject, normalized),
		jsonFldController:      pk.Controller.String(),
		jsonFldPublicKeyBase58: pk.PublicKeyBase58,
	}
	if normalized || pk.Type != crypto.KeyTypeSecp256k1 {
		m[jsonFldType] = pk.Type
	}

	return m
}

func parsePublicKey(obj map[string]interface{}, parser *did.Parser, subject did.DID) (PublicKey, error) {
	var pk PublicKey

	id, ok := obj[jsonFldID].(string)
	if !ok || id == "" {
		return PublicKey{}, fmt.Errorf("missing public key id")
	}
	u, err := parser.ParseURLWithContext(subject, id)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key id: %w", err)
	}
	pk.ID = u

	pk.Type = crypto.KeyTypeSecp256k1
	if t, exists := obj[jsonFldType]; exists {
		s, ok := t.(string)
		if !ok || s == "" {
			return PublicKey{}, fmt.Errorf("invalid public key type: %s", u)
		}
		pk.Type = s
	}

	controller, ok := obj[jsonFldController].(string)
	if !ok || controller == "" {
		return PublicKey{}, fmt.Errorf("missing public key controller: %s", u)
	}
	if pk.Controller, err = parser.ParseDID(controller); err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key controller: %w", err)
	}

	if pk.PublicKeyBase58, ok = obj[jsonFldPublicKeyBase58].(string); !ok || pk.PublicKeyBase58 == "" {
		return PublicKey{}, fmt.Errorf("missing publicKeyBase58: %s", u)
	}

	return pk, nil
}

func serializeService(svc Service, subject did.DID, normalized bool) jsonmap.JSONMap {
	m := make(jsonmap.JSONMap, len(svc.Properties)+3)
	for k, v := range svc.Properties {
		m[k] = v
	}
	m[jsonFldID] = idString(svc.ID, subject, normalized)
	m[jsonFldType] = svc.Type
	m[jsonFldServiceEndpoint] = svc.Endpoint

	return m
}

func parseService(obj map[string]interface{}, parser *did.Parser, subject did.DID) (Service, error) {
	var svc Service

	id, ok := obj[jsonFldID].(string)
	if !ok || id == "" {
		return Service{}, fmt.Errorf("missing service id")
	}
	u, err := parser.ParseURLWithContext(subject, id)
	if err != nil {
		return Service{}, fmt.Errorf("invalid service id: %w", err)
	}
	svc.ID = u

	if svc.Type, ok = obj[jsonFldType].(string); !ok {
		return Service{}, fmt.Errorf("missing service type: %s", u)
	}
	if svc.Endpoint, ok = obj[jsonFldServiceEndpoint].(string); !ok {
		return Service{}, fmt.Errorf("missing service endpoint: %s", u)
	}

	svc.Properties = make(map[string]interface{})
	for k, v := range obj {
		if isReservedServiceKey(k) {
			continue
		}
		svc.Properties[k] = v
	}

	return svc, nil
}

func isReservedServiceKey(k string) bool {
	return k == jsonFldID || k == jsonFldType || k == jsonFldServiceEndpoint
}

func serializeProof(p Proof, subject did.DID, normalized bool) jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldCreated:        util.FormatTime(p.Created),
		jsonFldCreator:        idString(p.Creator, subject, normalized),
		jsonFldSignatureValue: p.Signature,
	}
	if normalized || p.Type != crypto.KeyTypeSecp256k1 {
		m[jsonFldType] = p.Type
	}

	return m
}

func parseProof(obj map[string]interface{}, parser *did.Parser, subject did.DID) (Proof, error) {
	var p Proof

	p.Type = crypto.KeyTypeSecp256k1
	if t, ok := obj[jsonFldType].(string); ok && t != "" {
		p.Type = t
	}

	if created, ok := obj[jsonFldCreated].(string); ok {
		t, err := util.ParseTime(created)
		if err != nil {
			return Proof{}, fmt.Errorf("invalid proof created: %w", err)
		}
		p.Created = t
	}

	creator, ok := obj[jsonFldCreator].(string)
	if !ok || creator == "" {
		return Proof{}, fmt.Errorf("missing proof creator")
	}
	u, err := parser.ParseURLWithContext(subject, creator)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid proof creator: %w", err)
	}
	p.Creator = u

	if p.Signature, ok = obj[jsonFldSignatureValue].(string); !ok || p.Signature == "" {
		return Proof{}, fmt.Errorf("missing proof signatureValue")
	}

	return p, nil
}
