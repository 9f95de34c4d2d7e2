// Package did implements DID and DIDURL identifiers and their parser.
//
// A DID has the form did:<method>:<method-specific-id>. A DIDURL extends a
// DID with optional parameters, path, query and fragment:
//
//	did:elastos:iXyZ...;version=2/path/to?name=value&flag#fragment
//
// Identifiers are immutable values; equality and ordering are defined by
// their canonical string form.
package did

import (
	"fmt"
	"strings"
)

// Scheme is the URI scheme of every DID.
const Scheme = "did"

// DefaultMethod is the DID method accepted by the package level parse functions.
const DefaultMethod = "elastos"

// DID is a decentralized identifier.
type DID struct {
	method           string
	methodSpecificID string
}

// New creates a DID from its method and method specific id.
func New(method, methodSpecificID string) DID {
	return DID{method: method, methodSpecificID: methodSpecificID}
}

// NewDefault creates a DID of the default method.
func NewDefault(methodSpecificID string) DID {
	return New(DefaultMethod, methodSpecificID)
}

// Parse parses a DID string of the default method.
func Parse(s string) (DID, error) {
	return defaultParser.ParseDID(s)
}

// MustParse is like Parse but panics if the string cannot be parsed.
func MustParse(s string) DID {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return d
}

// Method returns the DID method.
func (d DID) Method() string {
	return d.method
}

// MethodSpecificID returns the method specific id.
func (d DID) MethodSpecificID() string {
	return d.methodSpecificID
}

// IsZero reports whether d is the zero DID.
func (d DID) IsZero() bool {
	return d.method == "" && d.methodSpecificID == ""
}

// String returns the canonical form did:<method>:<id>.
func (d DID) String() string {
	if d.IsZero() {
		return ""
	}

	return Scheme + ":" + d.method + ":" + d.methodSpecificID
}

// Equal reports whether d and other are the same identifier.
func (d DID) Equal(other DID) bool {
	return d == other
}

// Compare orders DIDs by their canonical string form.
func (d DID) Compare(other DID) int {
	return strings.Compare(d.String(), other.String())
}

// URL returns the DIDURL of d with the given fragment.
func (d DID) URL(fragment string) DIDURL {
	return NewURL(d, fragment)
}

// MarshalText implements encoding.TextMarshaler.
func (d DID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return fmt.Errorf("failed to unmarshal DID: %w", err)
	}
	*d = parsed

	return nil
}
