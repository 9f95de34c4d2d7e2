package backend

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

// Method is a resolve method of the resolver JSON-RPC interface.
type Method string

// Resolve methods.
const (
	MethodResolveDID        Method = "resolvedid"
	MethodResolveCredential Method = "did_resolveCredential"
	MethodListCredentials   Method = "listcredentials"
)

// Credential list paging limits.
const (
	DefaultListLimit = 128
	MaxListLimit     = 256
)

// JSON field names.
const (
	jsonFldID          = "id"
	jsonFldMethod      = "method"
	jsonFldParams      = "params"
	jsonFldDID         = "did"
	jsonFldAll         = "all"
	jsonFldIssuer      = "issuer"
	jsonFldSkip        = "skip"
	jsonFldLimit       = "limit"
	jsonFldJSONRPC     = "jsonrpc"
	jsonFldResult      = "result"
	jsonFldError       = "error"
	jsonFldCode        = "code"
	jsonFldMessage     = "message"
	jsonFldData        = "data"
	jsonFldCredentials = "credentials"
)

// Request is a resolve request. The set of requests is closed: the only
// implementations are DIDResolveRequest, CredentialResolveRequest and
// CredentialListRequest.
type Request interface {
	// ID returns the request id, echoed by the response.
	ID() string
	// Method returns the resolve method.
	Method() Method
	// Params returns the parameter object of the request.
	Params() jsonmap.JSONMap

	isRequest()
}

// newRequestID returns a random id of 32 hex digits.
func newRequestID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

type baseRequest struct {
	id string
}

func (r baseRequest) ID() string { return r.id }

func (baseRequest) isRequest() {}

// DIDResolveRequest asks for the biography of a DID.
type DIDResolveRequest struct {
	baseRequest
	did did.DID
	all bool
}

// NewDIDResolveRequest creates a request for the biography of id. With all
// set the resolver returns every transaction, otherwise only the ones needed
// to resolve the current document.
func NewDIDResolveRequest(id did.DID, all bool) *DIDResolveRequest {
	return &DIDResolveRequest{baseRequest: baseRequest{id: newRequestID()}, did: id, all: all}
}

// Method implements Request.
func (r *DIDResolveRequest) Method() Method { return MethodResolveDID }

// DID returns the DID to resolve.
func (r *DIDResolveRequest) DID() did.DID { return r.did }

// All reports whether the full history is requested.
func (r *DIDResolveRequest) All() bool { return r.all }

// Params implements Request.
func (r *DIDResolveRequest) Params() jsonmap.JSONMap {
	return jsonmap.JSONMap{jsonFldDID: r.did.String(), jsonFldAll: r.all}
}

// CredentialResolveRequest asks for the biography of a credential.
type CredentialResolveRequest struct {
	baseRequest
	id     did.DIDURL
	issuer did.DID
}

// NewCredentialResolveRequest creates a request for the biography of id. A
// zero issuer resolves declarations by the owner only; otherwise revocations
// by issuer are reported as well.
func NewCredentialResolveRequest(id did.DIDURL, issuer did.DID) *CredentialResolveRequest {
	return &CredentialResolveRequest{baseRequest: baseRequest{id: newRequestID()}, id: id, issuer: issuer}
}

// Method implements Request.
func (r *CredentialResolveRequest) Method() Method { return MethodResolveCredential }

// CredentialID returns the credential to resolve.
func (r *CredentialResolveRequest) CredentialID() did.DIDURL { return r.id }

// Issuer returns the issuer, zero if not given.
func (r *CredentialResolveRequest) Issuer() did.DID { return r.issuer }

// Params implements Request.
func (r *CredentialResolveRequest) Params() jsonmap.JSONMap {
	m := jsonmap.JSONMap{jsonFldID: r.id.String()}
	if !r.issuer.IsZero() {
		m[jsonFldIssuer] = r.issuer.String()
	}

	return m
}

// CredentialListRequest asks for a page of the credentials declared by a DID.
type CredentialListRequest struct {
	baseRequest
	did   did.DID
	skip  int
	limit int
}

// NewCredentialListRequest creates a list request. skip must not be
// negative and limit must be in [0, MaxListLimit]; a zero limit means
// DefaultListLimit.
func NewCredentialListRequest(id did.DID, skip, limit int) (*CredentialListRequest, error) {
	if skip < 0 {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid skip %d", skip)
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid limit %d", limit)
	}
	if limit == 0 {
		limit = DefaultListLimit
	}

	return &CredentialListRequest{baseRequest: baseRequest{id: newRequestID()}, did: id, skip: skip, limit: limit}, nil
}

// Method implements Request.
func (r *CredentialListRequest) Method() Method { return MethodListCredentials }

// DID returns the DID whose credentials are listed.
func (r *CredentialListRequest) DID() did.DID { return r.did }

// Skip returns the number of credentials to skip.
func (r *CredentialListRequest) Skip() int { return r.skip }

// Limit returns the page size.
func (r *CredentialListRequest) Limit() int { return r.limit }

// Params implements Request.
func (r *CredentialListRequest) Params() jsonmap.JSONMap {
	return jsonmap.JSONMap{jsonFldDID: r.did.String(), jsonFldSkip: r.skip, jsonFldLimit: r.limit}
}

// SerializeRequest returns the JSON-RPC form of r:
// {"id": ..., "method": ..., "params": [{...}]}.
func SerializeRequest(r Request) ([]byte, error) {
	data, err := jsonmap.Marshal(jsonmap.JSONMap{
		jsonFldID:     r.ID(),
		jsonFldMethod: string(r.Method()),
		jsonFldParams: []interface{}{r.Params()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s request: %w", r.Method(), err)
	}

	return data, nil
}

// ParseRequest parses the JSON-RPC form of a resolve request. The request id
// is kept as sent.
func ParseRequest(data []byte, opts ...ParseOpt) (Request, error) {
	parser := getParseOptions(opts).parser

	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveRequest, err)
	}

	id, _ := m.String(jsonFldID)
	if id == "" {
		return nil, diderrors.Errorf(diderrors.ErrMalformedResolveRequest, "missing id")
	}

	method, _ := m.String(jsonFldMethod)

	params, err := firstParams(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveRequest, err)
	}

	base := baseRequest{id: id}

	switch Method(method) {
	case MethodResolveDID:
		s, _ := params.String(jsonFldDID)
		d, err := parser.ParseDID(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid did: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		all, _ := params[jsonFldAll].(bool)

		return &DIDResolveRequest{baseRequest: base, did: d, all: all}, nil

	case MethodResolveCredential:
		s, _ := params.String(jsonFldID)
		u, err := parser.ParseURL(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		r := &CredentialResolveRequest{baseRequest: base, id: u}
		if s, ok := params.String(jsonFldIssuer); ok && s != "" {
			if r.issuer, err = parser.ParseDID(s); err != nil {
				return nil, fmt.Errorf("%w: invalid issuer: %w", diderrors.ErrMalformedResolveRequest, err)
			}
		}

		return r, nil

	case MethodListCredentials:
		s, _ := params.String(jsonFldDID)
		d, err := parser.ParseDID(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid did: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		skip, err := intParam(params, jsonFldSkip)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		limit, err := intParam(params, jsonFldLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		r, err := NewCredentialListRequest(d, skip, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveRequest, err)
		}
		r.baseRequest = base

		return r, nil

	default:
		return nil, diderrors.Errorf(diderrors.ErrMalformedResolveRequest, "unknown method %q", method)
	}
}

func firstParams(m jsonmap.JSONMap) (jsonmap.JSONMap, error) {
	list, ok := m[jsonFldParams].([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("missing params")
	}

	switch p := list[0].(type) {
	case jsonmap.JSONMap:
		return p, nil
	case map[string]interface{}:
		return p, nil
	default:
		return nil, fmt.Errorf("invalid params")
	}
}
