package did

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-sdk/diderrors"
)

func TestParseDID(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		method      string
		id          string
		expectError bool
		errorMsg    string
		offset      int
	}{
		{
			name:   "Valid DID",
			input:  "did:elastos:123456789abc",
			method: "elastos",
			id:     "123456789abc",
		},
		{
			name:   "Surrounding whitespace is trimmed",
			input:  "  did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN \n",
			method: "elastos",
			id:     "icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN",
		},
		{
			name:   "Method specific id with inner separators",
			input:  "did:elastos:foo.bar-baz_1",
			method: "elastos",
			id:     "foo.bar-baz_1",
		},
		{
			name:        "Empty string",
			input:       "   ",
			expectError: true,
			errorMsg:    "empty DID string",
		},
		{
			name:        "Wrong scheme",
			input:       "dif:elastos:abc",
			expectError: true,
			errorMsg:    "invalid DID schema: 'dif', at: 0",
		},
		{
			name:        "Unknown method",
			input:       "did:example:abc",
			expectError: true,
			errorMsg:    "unknown DID method: 'example', at: 4",
			offset:      4,
		},
		{
			name:        "Missing id",
			input:       "did:elastos",
			expectError: true,
			errorMsg:    "missing id string at: 11",
			offset:      11,
		},
		{
			name:        "Missing method and id",
			input:       "did",
			expectError: true,
			errorMsg:    "missing method and id string at: 3",
			offset:      3,
		},
		{
			name:        "Doubled separator",
			input:       "did::abc",
			expectError: true,
			errorMsg:    "invalid char at: 4",
			offset:      4,
		},
		{
			name:        "Trailing separator",
			input:       "did:elastos:",
			expectError: true,
			errorMsg:    "invalid char at: 11",
			offset:      11,
		},
		{
			name:        "Fragment is not part of a DID",
			input:       "did:elastos:abc#key1",
			expectError: true,
			errorMsg:    "invalid char at: 15",
			offset:      15,
		},
		{
			name:        "Token cannot start with a dot",
			input:       "did:elastos:.abc",
			expectError: true,
			errorMsg:    "invalid char at: 12",
			offset:      12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)

			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, diderrors.ErrMalformedDID)
				assert.Contains(t, err.Error(), tt.errorMsg)

				var perr *ParseError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, tt.offset, perr.Offset)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.method, d.Method())
			assert.Equal(t, tt.id, d.MethodSpecificID())
		})
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		did      string
		params   []Pair
		path     string
		query    []Pair
		fragment string
	}{
		{
			name:  "DID only",
			input: "did:elastos:123456789abc",
			did:   "did:elastos:123456789abc",
		},
		{
			name:     "Fragment",
			input:    "did:elastos:abc#key1",
			did:      "did:elastos:abc",
			fragment: "key1",
		},
		{
			name:     "All sections",
			input:    "did:elastos:abc;version=2;flag/path/to/res?name=value&debug#frag-1",
			did:      "did:elastos:abc",
			params:   []Pair{{Name: "version", Value: "2"}, {Name: "flag"}},
			path:     "/path/to/res",
			query:    []Pair{{Name: "name", Value: "value"}, {Name: "debug"}},
			fragment: "frag-1",
		},
		{
			name:  "Percent escapes",
			input: "did:elastos:abc/a%20b?q=%E4%BD%A0",
			did:   "did:elastos:abc",
			path:  "/a%20b",
			query: []Pair{{Name: "q", Value: "%E4%BD%A0"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURL(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.did, u.DID().String())
			assert.Equal(t, tt.params, []Pair(u.Params()))
			assert.Equal(t, tt.path, u.Path())
			assert.Equal(t, tt.query, []Pair(u.Query()))
			assert.Equal(t, tt.fragment, u.Fragment())
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "Empty", input: "\t", errorMsg: "empty DIDURL string"},
		{name: "Bad hex escape", input: "did:elastos:abc/a%2g", errorMsg: "invalid hex char at: 17"},
		{name: "Truncated escape", input: "did:elastos:abc/a%2", errorMsg: "invalid char at: 17"},
		{name: "Doubled path separator", input: "did:elastos:abc/a//b", errorMsg: "invalid char at: 18"},
		{name: "Doubled query separator", input: "did:elastos:abc?a=1&&b=2", errorMsg: "invalid char at: 20"},
		{name: "Empty query", input: "did:elastos:abc?#key", errorMsg: "missing query at: 15"},
		{name: "Empty fragment", input: "did:elastos:abc#", errorMsg: "missing fragment at: 16"},
		{name: "Invalid fragment char", input: "did:elastos:abc#key 1", errorMsg: "invalid char at: 19"},
		{name: "Unknown method", input: "did:foo:abc#key", errorMsg: "unknown DID method: 'foo', at: 4"},
		{name: "Relative without context", input: "#key1", errorMsg: "missing DID at: 0"},
		{name: "Bare fragment without context", input: "key1", errorMsg: "missing DID at: 0"},
		{name: "Duplicated param", input: "did:elastos:abc;a=1;a=2", errorMsg: "duplicated param 'a' at: 20"},
		{name: "Duplicated bare param", input: "did:elastos:abc;a;b;a#k", errorMsg: "duplicated param 'a' at: 20"},
		{name: "Duplicated query name", input: "did:elastos:abc?a=1&b=2&a=3", errorMsg: "duplicated query parameter 'a' at: 24"},
		{name: "Duplicated bare query name", input: "did:elastos:abc?a&a", errorMsg: "duplicated query parameter 'a' at: 18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, diderrors.ErrMalformedDIDURL)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestParseURLWithContext(t *testing.T) {
	base := MustParse("did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN")

	t.Run("relative fragment", func(t *testing.T) {
		u, err := ParseURLWithContext(base, "#primary")
		require.NoError(t, err)
		assert.Equal(t, base, u.DID())
		assert.Equal(t, "primary", u.Fragment())
		assert.Equal(t, "#primary", u.RelativeString(base))
		assert.Equal(t, base.String()+"#primary", u.String())
	})

	t.Run("bare fragment is the whole input", func(t *testing.T) {
		u, err := ParseURLWithContext(base, "primary")
		require.NoError(t, err)
		assert.Equal(t, "primary", u.Fragment())
	})

	t.Run("bare fragment after a path is rejected", func(t *testing.T) {
		_, err := ParseURLWithContext(base, "/path key")
		require.Error(t, err)
		assert.ErrorIs(t, err, diderrors.ErrMalformedDIDURL)
	})

	t.Run("absolute input overrides context", func(t *testing.T) {
		u, err := ParseURLWithContext(base, "did:elastos:other#k")
		require.NoError(t, err)
		assert.Equal(t, "did:elastos:other", u.DID().String())
		assert.Equal(t, "did:elastos:other#k", u.RelativeString(base))
	})

	t.Run("relative path and query", func(t *testing.T) {
		u, err := ParseURLWithContext(base, "/service?type=hub#1")
		require.NoError(t, err)
		assert.Equal(t, "/service", u.Path())
		v, ok := u.QueryParam("type")
		assert.True(t, ok)
		assert.Equal(t, "hub", v)
		assert.Equal(t, "/service?type=hub#1", u.RelativeString(base))
	})
}

func TestParserWithMethod(t *testing.T) {
	p := NewParser(WithMethod("example"))
	assert.Equal(t, "example", p.Method())

	d, err := p.ParseDID("did:example:123")
	require.NoError(t, err)
	assert.Equal(t, "example", d.Method())

	_, err = p.ParseDID("did:elastos:123")
	require.Error(t, err)
	assert.ErrorIs(t, err, diderrors.ErrMalformedDID)
}

func TestParserFor(t *testing.T) {
	assert.Same(t, DefaultParser(), ParserFor(MustParse("did:elastos:abc")))

	p := ParserFor(New("example", "abc"))
	assert.Equal(t, "example", p.Method())

	u, err := p.ParseURLWithContext(New("example", "abc"), "#key-1")
	require.NoError(t, err)
	assert.Equal(t, "did:example:abc#key-1", u.String())
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN",
		"did:elastos:icJ4z2DULrHEzYSvjKNJpKyhqFDxvYV7pN#primary",
		"did:elastos:abc;version=1/path/to?name=value&key#frag",
		"did:elastos:abc/a%20b?q=1",
		"did:elastos:foo:bar#k-1.2_3",
		"did:elastos:abc?flag",
		"did:elastos:abc;a=1;b=1?a=1&b=2",
	}

	for _, s := range inputs {
		t.Run(s, func(t *testing.T) {
			u, err := ParseURL(s)
			require.NoError(t, err)
			assert.Equal(t, s, u.String())
		})
	}
}
