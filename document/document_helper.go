package document

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
	jsonFldController           = "controller"
	jsonFldMultiSig             = "multisig"
	jsonFldPublicKey            = "publicKey"
	jsonFldPublicKeyBase58      = "publicKeyBase58"
	jsonFldAuthentication       = "authentication"
	jsonFldAuthorization        = "authorization"
	jsonFldVerifiableCredential = "verifiableCredential"
	jsonFldService              = "service"
	jsonFldServiceEndpoint      = "serviceEndpoint"
	jsonFldExpires              = "expires"
	jsonFldProof                = "proof"
	jsonFldCreated              = "created"
	jsonFldCreator              = "creator"
	jsonFldSignatureValue       = "signatureValue"
)

// serializeDocument converts a document into a JSON object. Without
// normalized, ids under the subject are written relative and default types
// are omitted. forSign drops the proofs.
func serializeDocument(d *Document, normalized, forSign bool) jsonmap.JSONMap {
	m := make(jsonmap.JSONMap)

	if len(d.contexts) > 0 {
		m[schema.ContextKey] = util.ToInterfaces(d.contexts)
	}

	m[jsonFldID] = d.subject.String()

	switch len(d.controllers) {
	case 0:
	case 1:
		m[jsonFldController] = d.controllers[0].String()
	default:
		controllers := make([]interface{}, len(d.controllers))
		for i, c := range d.controllers {
			controllers[i] = c.String()
		}
		m[jsonFldController] = controllers
	}

	if d.multisig != nil {
		m[jsonFldMultiSig] = d.multisig.String()
	}

	if len(d.publicKeys) > 0 {
		keys := make([]interface{}, len(d.publicKeys))
		for i, pk := range d.publicKeys {
			keys[i] = serializePublicKey(pk, d.subject, normalized)
		}
		m[jsonFldPublicKey] = keys
	}

	if refs := d.keyRefs(d.authentication, normalized); len(refs) > 0 {
		m[jsonFldAuthentication] = refs
	}

	if refs := d.keyRefs(d.authorization, normalized); len(refs) > 0 {
		m[jsonFldAuthorization] = refs
	}

	if len(d.credentials) > 0 {
		credentials := make([]interface{}, len(d.credentials))
		for i, c := range d.credentials {
			credentials[i] = c.MapWithOwner(d.subject, normalized)
		}
		m[jsonFldVerifiableCredential] = credentials
	}

	if len(d.services) > 0 {
		services := make([]interface{}, len(d.services))
		for i, svc := range d.services {
			services[i] = serializeService(svc, d.subject, normalized)
		}
		m[jsonFldService] = services
	}

	m[jsonFldExpires] = util.FormatTime(d.expires)

	if !forSign && len(d.proofs) > 0 {
		if len(d.proofs) == 1 {
			m[jsonFldProof] = serializeProof(d.proofs[0], d.subject, normalized)
		} else {
			proofs := make([]interface{}, len(d.proofs))
			for i, p := range d.proofs {
				proofs[i] = serializeProof(p, d.subject, normalized)
			}
			m[jsonFldProof] = proofs
		}
	}

	return m
}

// keyRefs lists the keys of set in key order.
func (d *Document) keyRefs(set map[string]bool, normalized bool) []interface{} {
	var refs []interface{}
	for _, pk := range d.publicKeys {
		if set[pk.ID.String()] {
			refs = append(refs, idString(pk.ID, d.subject, normalized))
		}
	}

	return refs
}

func parseDocument(m jsonmap.JSONMap, o *options) (*Document, error) {
	parser := o.parser

	d := &Document{
		authentication: make(map[string]bool),
		authorization:  make(map[string]bool),
	}

	contexts, err := util.ParseStrings(m[schema.ContextKey])
	if err != nil {
		return nil, fmt.Errorf("invalid @context: %w", err)
	}
	d.contexts = contexts

	id, ok := m.String(jsonFldID)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing document id")
	}
	if d.subject, err = parser.ParseDID(id); err != nil {
		return nil, fmt.Errorf("invalid document id: %w", err)
	}

	controllers, err := util.ParseStrings(m[jsonFldController])
	if err != nil {
		return nil, fmt.Errorf("invalid controller: %w", err)
	}
	for _, c := range controllers {
		controller, err := parser.ParseDID(c)
		if err != nil {
			return nil, fmt.Errorf("invalid controller: %w", err)
		}
		d.controllers = append(d.controllers, controller)
	}

	if v, exists := m[jsonFldMultiSig]; exists {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid multisig")
		}
		if d.multisig, err = ParseMultiSignature(s); err != nil {
			return nil, err
		}
	}

	objs, err := objectList(m, jsonFldPublicKey)
	if err != nil {
		return nil, err
	}
	for _, obj := range objs {
		pk, err := parsePublicKey(obj, parser, d.subject)
		if err != nil {
			return nil, err
		}
		d.publicKeys = append(d.publicKeys, pk)
	}

	if err := parseKeyRefs(m, jsonFldAuthentication, parser, d.subject, d.authentication); err != nil {
		return nil, err
	}
	if err := parseKeyRefs(m, jsonFldAuthorization, parser, d.subject, d.authorization); err != nil {
		return nil, err
	}

	if objs, err = objectList(m, jsonFldVerifiableCredential); err != nil {
		return nil, err
	}
	for _, obj := range objs {
		c, err := vc.ParseMap(obj, vc.WithOwner(d.subject), vc.WithProcessor(o.processor), vc.WithParser(parser))
		if err != nil {
			return nil, fmt.Errorf("invalid embedded credential: %w", err)
		}
		d.credentials = append(d.credentials, c)
	}

	if objs, err = objectList(m, jsonFldService); err != nil {
		return nil, err
	}
	for _, obj := range objs {
		svc, err := parseService(obj, parser, d.subject)
		if err != nil {
			return nil, err
		}
		d.services = append(d.services, svc)
	}

	expires, ok := m.String(jsonFldExpires)
	if !ok || expires == "" {
		return nil, fmt.Errorf("missing expires")
	}
	if d.expires, err = util.ParseTime(expires); err != nil {
		return nil, fmt.Errorf("invalid expires: %w", err)
	}

	switch v := m[jsonFldProof].(type) {
	case nil:
	case []interface{}:
		for _, item := range v {
			obj, ok := asObject(item)
			if !ok {
				return nil, fmt.Errorf("invalid proof")
			}
			p, err := parseProof(obj, parser, d.subject)
			if err != nil {
				return nil, err
			}
			d.proofs = append(d.proofs, p)
		}
	default:
		obj, ok := asObject(v)
		if !ok {
			return nil, fmt.Errorf("invalid proof")
		}
		p, err := parseProof(obj, parser, d.subject)
		if err != nil {
			return nil, err
		}
		d.proofs = append(d.proofs, p)
	}

	return d, nil
}

// parseKeyRefs accepts key references only; embedded key objects belong in
// publicKey.
func parseKeyRefs(m jsonmap.JSONMap, field string, parser *did.Parser, subject did.DID, set map[string]bool) error {
	v, exists := m[field]
	if !exists {
		return nil
	}

	items, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("invalid %s", field)
	}

	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return fmt.Errorf("invalid %s entry, should be a key reference", field)
		}

		id, err := parser.ParseURLWithContext(subject, s)
		if err != nil {
			return fmt.Errorf("invalid %s key: %w", field, err)
		}
		set[id.String()] = true
	}

	return nil
}

func objectList(m jsonmap.JSONMap, field string) ([]jsonmap.JSONMap, error) {
	v, exists := m[field]
	if !exists {
		return nil, nil
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid %s, should be an array", field)
	}

	objs := make([]jsonmap.JSONMap, 0, len(items))
	for _, item := range items {
		obj, ok := asObject(item)
		if !ok {
			return nil, fmt.Errorf("invalid %s entry, should be an object", field)
		}
		objs = append(objs, obj)
	}

	return objs, nil
}

func asObject(v interface{}) (jsonmap.JSONMap, bool) {
	switch obj := v.(type) {
	case jsonmap.JSONMap:
		return obj, true
	case map[string]interface{}:
		return obj, true
	default:
		return nil, false
	}
}

func sortPublicKeys(keys []PublicKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID.Compare(keys[j].ID) < 0 })
}

func sortServices(services []Service) {
	sort.Slice(services, func(i, j int) bool { return services[i].ID.Compare(services[j].ID) < 0 })
}

func sortCredentials(credentials []*vc.Credential) {
	sort.Slice(credentials, func(i, j int) bool { return credentials[i].ID().Compare(credentials[j].ID()) < 0 })
}

func sortDIDs(ids []did.DID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
}

// sortProofs orders proofs by creation time, then creator.
func sortProofs(proofs []Proof) {
	sort.Slice(proofs, func(i, j int) bool {
		if !proofs[i].Created.Equal(proofs[j].Created) {
			return proofs[i].Created.Before(proofs[j].Created)
		}
		return proofs[i].Creator.Compare(proofs[j].Creator) < 0
	})
}
