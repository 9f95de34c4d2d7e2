package did

import (
	"fmt"
	"strings"
)

// Pair is a name/value entry of the params or query section of a DIDURL.
// An empty Value is serialized as the bare name.
type Pair struct {
	Name  string
	Value string
}

// DIDURL is a DID plus optional params, path, query and fragment.
type DIDURL struct {
	did      DID
	params   []Pair
	path     string
	query    []Pair
	fragment string
}

// NewURL creates a DIDURL with a fragment.
func NewURL(d DID, fragment string) DIDURL {
	return DIDURL{did: d, fragment: fragment}
}

// ParseURL parses an absolute DIDURL string of the default method.
func ParseURL(s string) (DIDURL, error) {
	return defaultParser.ParseURL(s)
}

// ParseURLWithContext parses a DIDURL string that may be relative to base,
// such as "#key-1".
func ParseURLWithContext(base DID, s string) (DIDURL, error) {
	return defaultParser.ParseURLWithContext(base, s)
}

// MustParseURL is like ParseURL but panics if the string cannot be parsed.
func MustParseURL(s string) DIDURL {
	u, err := ParseURL(s)
	if err != nil {
		panic(err)
	}

	return u
}

// DID returns the DID the URL belongs to.
func (u DIDURL) DID() DID {
	return u.did
}

// Params returns a copy of the params in parse order.
func (u DIDURL) Params() []Pair {
	return append([]Pair(nil), u.params...)
}

// Param returns the value of the named param.
func (u DIDURL) Param(name string) (string, bool) {
	return lookup(u.params, name)
}

// Path returns the path including its leading slash, or "".
func (u DIDURL) Path() string {
	return u.path
}

// Query returns a copy of the query pairs in parse order.
func (u DIDURL) Query() []Pair {
	return append([]Pair(nil), u.query...)
}

// QueryParam returns the value of the named query parameter.
func (u DIDURL) QueryParam(name string) (string, bool) {
	return lookup(u.query, name)
}

// Fragment returns the fragment without the leading '#'.
func (u DIDURL) Fragment() string {
	return u.fragment
}

// HasFragment reports whether the URL has a fragment.
func (u DIDURL) HasFragment() bool {
	return u.fragment != ""
}

// IsZero reports whether u is the zero DIDURL.
func (u DIDURL) IsZero() bool {
	return u.did.IsZero() && len(u.params) == 0 && u.path == "" && len(u.query) == 0 && u.fragment == ""
}

// String returns the canonical, fully qualified form of the URL.
func (u DIDURL) String() string {
	var sb strings.Builder
	sb.WriteString(u.did.String())
	u.writeTail(&sb)

	return sb.String()
}

// RelativeString returns the compact form of the URL: the DID part is
// omitted when it equals base.
func (u DIDURL) RelativeString(base DID) string {
	if u.did != base {
		return u.String()
	}

	var sb strings.Builder
	u.writeTail(&sb)

	return sb.String()
}

func (u DIDURL) writeTail(sb *strings.Builder) {
	for _, p := range u.params {
		sb.WriteByte(';')
		writePair(sb, p)
	}

	sb.WriteString(u.path)

	if len(u.query) > 0 {
		sb.WriteByte('?')
		for i, p := range u.query {
			if i > 0 {
				sb.WriteByte('&')
			}
			writePair(sb, p)
		}
	}

	if u.fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.fragment)
	}
}

// Equal reports whether u and other have the same canonical form.
func (u DIDURL) Equal(other DIDURL) bool {
	return u.String() == other.String()
}

// Compare orders DIDURLs by their canonical string form.
func (u DIDURL) Compare(other DIDURL) int {
	return strings.Compare(u.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (u DIDURL) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only absolute URLs are
// accepted.
func (u *DIDURL) UnmarshalText(text []byte) error {
	parsed, err := ParseURL(string(text))
	if err != nil {
		return fmt.Errorf("failed to unmarshal DIDURL: %w", err)
	}
	*u = parsed

	return nil
}

func writePair(sb *strings.Builder, p Pair) {
	sb.WriteString(p.Name)
	if p.Value != "" {
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
}

func lookup(pairs []Pair, name string) (string, bool) {
	for _, p := range pairs {
		if p.Name == name {
			return p.Value, true
		}
	}

	return "", false
}
