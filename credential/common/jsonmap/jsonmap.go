package jsonmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONMap represents a JSON object as a map.
type JSONMap map[string]interface{}

// ProofKey is the member excluded from signing input.
const ProofKey = "proof"

// Parse decodes a JSON object, keeping numbers as json.Number so that
// re-serialization does not alter them.
func Parse(data []byte) (JSONMap, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m JSONMap
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON object: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("JSON value is not an object")
	}

	return m, nil
}

// FromValue converts any JSON-marshalable value to a JSONMap.
func FromValue(v interface{}) (JSONMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	return Parse(data)
}

// ToJSON serializes the JSONMap with sorted keys.
func (m JSONMap) ToJSON() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	return Marshal(m)
}

// Canonicalize returns the canonical bytes of the JSONMap for signing or
// verification, excluding the proof field.
func (m JSONMap) Canonicalize() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	mCopy := make(JSONMap, len(m))
	for k, v := range m {
		if k != ProofKey {
			mCopy[k] = v
		}
	}

	return Marshal(mCopy)
}

// Copy returns a shallow copy of m without the given keys.
func (m JSONMap) Copy(exclude ...string) JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range exclude {
		delete(out, k)
	}

	return out
}

// String returns the string member named key.
func (m JSONMap) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Marshal returns the canonical JSON of v: object keys sorted
// lexicographically, arrays in order, no HTML escaping, no trailing newline.
func Marshal(v interface{}) ([]byte, error) {
	// Round trip through a generic value so struct field order does not leak
	// into the output.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize JSON: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to encode canonical JSON: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
