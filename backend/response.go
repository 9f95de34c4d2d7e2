package backend

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-did-sdk/biography"
	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

// JSONRPCVersion is the only protocol version accepted in responses.
const JSONRPCVersion = "2.0"

// Result is the result of a resolve response.
type Result interface {
	Sanitize() error
	Map() jsonmap.JSONMap
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

// Err converts e to a *diderrors.ServerError.
func (e *RPCError) Err() error {
	return &diderrors.ServerError{Code: e.Code, Message: e.Message}
}

// Response is a resolve response carrying a result of type T or an error.
type Response[T Result] struct {
	id      string
	version string
	result  T
	hasRes  bool
	err     *RPCError
}

// NewResponse creates a successful response to the request with id.
func NewResponse[T Result](id string, result T) *Response[T] {
	return &Response[T]{id: id, version: JSONRPCVersion, result: result, hasRes: true}
}

// NewErrorResponse creates a failed response to the request with id.
func NewErrorResponse[T Result](id string, code int, message string) *Response[T] {
	return &Response[T]{id: id, version: JSONRPCVersion, err: &RPCError{Code: code, Message: message}}
}

// ID returns the id of the answered request.
func (r *Response[T]) ID() string { return r.id }

// Version returns the JSON-RPC version.
func (r *Response[T]) Version() string { return r.version }

// Result returns the result, if any.
func (r *Response[T]) Result() (T, bool) { return r.result, r.hasRes }

// Error returns the error object, or nil.
func (r *Response[T]) Error() *RPCError { return r.err }

// Sanitize checks the version and that the response has a sane result or an
// error.
func (r *Response[T]) Sanitize() error {
	if r.version != JSONRPCVersion {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "invalid JSON-RPC version %q", r.version)
	}

	if !r.hasRes && r.err == nil {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "missing result or error")
	}

	if r.hasRes {
		if err := r.result.Sanitize(); err != nil {
			return fmt.Errorf("%w: invalid result: %w", diderrors.ErrMalformedResolveResponse, err)
		}
	}

	return nil
}

// Map returns the response as a JSON object.
func (r *Response[T]) Map() jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldID:      r.id,
		jsonFldJSONRPC: r.version,
	}
	if r.hasRes {
		m[jsonFldResult] = r.result.Map()
	}
	if r.err != nil {
		e := jsonmap.JSONMap{jsonFldCode: r.err.Code, jsonFldMessage: r.err.Message}
		if r.err.Data != nil {
			e[jsonFldData] = r.err.Data
		}
		m[jsonFldError] = e
	}

	return m
}

// JSON returns the JSON form of the response.
func (r *Response[T]) JSON() ([]byte, error) {
	return jsonmap.Marshal(r.Map())
}

// DIDResolveResponse answers a DIDResolveRequest.
type DIDResolveResponse = Response[*biography.DIDBiography]

// CredentialResolveResponse answers a CredentialResolveRequest.
type CredentialResolveResponse = Response[*biography.CredentialBiography]

// CredentialListResponse answers a CredentialListRequest.
type CredentialListResponse = Response[*CredentialList]

// ParseDIDResolveResponse parses and sanitizes the response to a DID
// resolve request.
func ParseDIDResolveResponse(data []byte, opts ...ParseOpt) (*DIDResolveResponse, error) {
	o := getParseOptions(opts)

	return parseResponse(data, func(m jsonmap.JSONMap) (*biography.DIDBiography, error) {
		return biography.ParseDIDBiographyMap(m, o.biographyOpts()...)
	})
}

// ParseCredentialResolveResponse parses and sanitizes the response to a
// credential resolve request.
func ParseCredentialResolveResponse(data []byte, opts ...ParseOpt) (*CredentialResolveResponse, error) {
	o := getParseOptions(opts)

	return parseResponse(data, func(m jsonmap.JSONMap) (*biography.CredentialBiography, error) {
		return biography.ParseCredentialBiographyMap(m, o.biographyOpts()...)
	})
}

// ParseCredentialListResponse parses and sanitizes the response to a
// credential list request.
func ParseCredentialListResponse(data []byte, opts ...ParseOpt) (*CredentialListResponse, error) {
	return parseResponse(data, func(m jsonmap.JSONMap) (*CredentialList, error) {
		return ParseCredentialListMap(m, opts...)
	})
}

func parseResponse[T Result](data []byte, parseResult func(jsonmap.JSONMap) (T, error)) (*Response[T], error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResponse, err)
	}

	r := &Response[T]{}
	r.id, _ = m.String(jsonFldID)
	r.version, _ = m.String(jsonFldJSONRPC)

	if r.version != JSONRPCVersion {
		return nil, diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "invalid JSON-RPC version %q", r.version)
	}

	if v, ok := m[jsonFldError]; ok && v != nil {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "invalid error object")
		}
		e := jsonmap.JSONMap(obj)
		code, err := intParam(e, jsonFldCode)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid error object: %w", diderrors.ErrMalformedResolveResponse, err)
		}
		msg, _ := e.String(jsonFldMessage)
		r.err = &RPCError{Code: code, Message: msg, Data: e[jsonFldData]}
	}

	if v, ok := m[jsonFldResult]; ok && v != nil {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "invalid result")
		}
		if r.result, err = parseResult(obj); err != nil {
			return nil, fmt.Errorf("%w: invalid result: %w", diderrors.ErrMalformedResolveResponse, err)
		}
		r.hasRes = true
	}

	if err := r.Sanitize(); err != nil {
		return nil, err
	}

	return r, nil
}

// CredentialList is a page of the credential ids declared by a DID.
type CredentialList struct {
	did         did.DID
	credentials []did.DIDURL
}

// NewCredentialList creates a list of ids for id.
func NewCredentialList(id did.DID, credentials ...did.DIDURL) *CredentialList {
	return &CredentialList{did: id, credentials: append([]did.DIDURL(nil), credentials...)}
}

// ParseCredentialListMap parses and sanitizes a list from a decoded JSON
// object.
func ParseCredentialListMap(m jsonmap.JSONMap, opts ...ParseOpt) (*CredentialList, error) {
	o := getParseOptions(opts)
	l := &CredentialList{}

	if s, _ := m.String(jsonFldDID); s != "" {
		d, err := o.parser.ParseDID(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid did: %w", diderrors.ErrMalformedResolveResult, err)
		}
		l.did = d
	}

	if v, ok := m[jsonFldCredentials]; ok && v != nil {
		items, ok := v.([]interface{})
		if !ok {
			return nil, diderrors.Errorf(diderrors.ErrMalformedResolveResult, "invalid credentials")
		}
		for _, item := range items {
			s, _ := item.(string)
			id, err := o.parser.ParseURLWithContext(l.did, s)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid credential id: %w", diderrors.ErrMalformedResolveResult, err)
			}
			l.credentials = append(l.credentials, id)
		}
	}

	if err := l.Sanitize(); err != nil {
		return nil, err
	}

	return l, nil
}

// DID returns the DID whose credentials are listed.
func (l *CredentialList) DID() did.DID { return l.did }

// Count returns the number of ids.
func (l *CredentialList) Count() int { return len(l.credentials) }

// CredentialIDs returns the ids in the order returned by the resolver.
func (l *CredentialList) CredentialIDs() []did.DIDURL {
	return append([]did.DIDURL(nil), l.credentials...)
}

// Sanitize checks the list has a DID and holds only credentials of it.
func (l *CredentialList) Sanitize() error {
	if l.did.IsZero() {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResult, "missing did")
	}

	if len(l.credentials) > MaxListLimit {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResult, "too many credentials: %d", len(l.credentials))
	}

	for _, id := range l.credentials {
		if id.DID() != l.did {
			return diderrors.Errorf(diderrors.ErrMalformedResolveResult, "credential %s is not owned by %s", id, l.did)
		}
	}

	return nil
}

// Map returns the list as a JSON object.
func (l *CredentialList) Map() jsonmap.JSONMap {
	m := jsonmap.JSONMap{jsonFldDID: l.did.String()}
	if len(l.credentials) > 0 {
		ids := make([]interface{}, len(l.credentials))
		for i, id := range l.credentials {
			ids[i] = id.String()
		}
		m[jsonFldCredentials] = ids
	}

	return m
}

// intParam reads the integral member key of m. A missing member reads as 0.
func intParam(m jsonmap.JSONMap, key string) (int, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid %s %s", key, v)
		}
		return int(n), nil
	case float64:
		if float64(int(v)) != v {
			return 0, fmt.Errorf("invalid %s %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("invalid %s %v", key, v)
	}
}
