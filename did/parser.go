package did

import (
	"fmt"
	"strings"

	"github.com/pilacorp/go-did-sdk/diderrors"
)

// ParseError reports a grammar violation at a byte offset of the input.
type ParseError struct {
	Input  string
	Offset int
	Msg    string
	kind   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.Msg)
}

// Unwrap returns diderrors.ErrMalformedDID or diderrors.ErrMalformedDIDURL.
func (e *ParseError) Unwrap() error {
	return e.kind
}

// Parser parses DID and DIDURL strings of one method.
type Parser struct {
	method string
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMethod sets the DID method accepted by the parser.
func WithMethod(method string) ParserOption {
	return func(p *Parser) { p.method = method }
}

// NewParser creates a parser, by default for DefaultMethod.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{method: DefaultMethod}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

var defaultParser = NewParser()

// DefaultParser returns the parser behind Parse, ParseURL and
// ParseURLWithContext.
func DefaultParser() *Parser {
	return defaultParser
}

// ParserFor returns a parser accepting the method of d.
func ParserFor(d DID) *Parser {
	if d.Method() == defaultParser.method {
		return defaultParser
	}

	return NewParser(WithMethod(d.Method()))
}

// Method returns the DID method accepted by the parser.
func (p *Parser) Method() string {
	return p.method
}

// ParseDID parses a DID string.
func (p *Parser) ParseDID(s string) (DID, error) {
	sc := scanner{input: s, kind: diderrors.ErrMalformedDID}

	start, limit := trim(s)
	if start == limit {
		return DID{}, sc.fail(0, "empty DID string")
	}

	end, err := sc.scanNextPart(start, limit, "", ":")
	if err != nil {
		return DID{}, err
	}

	return p.parseDIDPart(&sc, start, end)
}

// ParseURL parses an absolute DIDURL string.
func (p *Parser) ParseURL(s string) (DIDURL, error) {
	return p.parseURL(nil, s)
}

// ParseURLWithContext parses a DIDURL string, resolving a missing DID part
// against base.
func (p *Parser) ParseURLWithContext(base DID, s string) (DIDURL, error) {
	return p.parseURL(&base, s)
}

func (p *Parser) parseURL(base *DID, s string) (DIDURL, error) {
	var u DIDURL
	if base != nil {
		u.did = *base
	}

	sc := scanner{input: s, kind: diderrors.ErrMalformedDIDURL}

	start, limit := trim(s)
	if start == limit {
		return DIDURL{}, sc.fail(0, "empty DIDURL string")
	}

	pos := start

	// did
	if strings.HasPrefix(s[pos:limit], Scheme+":") {
		end, err := sc.scanNextPart(pos, limit, ";/?#", ":")
		if err != nil {
			return DIDURL{}, err
		}

		d, err := p.parseDIDPart(&sc, pos, end)
		if err != nil {
			return DIDURL{}, err
		}
		u.did = d
		pos = end
	}

	// params
	if pos < limit && s[pos] == ';' {
		end, err := sc.scanNextPart(pos+1, limit, "/?#", ";=")
		if err != nil {
			return DIDURL{}, err
		}
		if end == pos+1 {
			return DIDURL{}, sc.fail(pos, "missing params at: %d", pos)
		}

		u.params, err = sc.scanPairs(pos+1, end, ";", "param")
		if err != nil {
			return DIDURL{}, err
		}
		pos = end
	}

	// path
	if pos < limit && s[pos] == '/' {
		end, err := sc.scanNextPart(pos+1, limit, "?#", "/")
		if err != nil {
			return DIDURL{}, err
		}
		if end == pos+1 {
			return DIDURL{}, sc.fail(pos, "missing path at: %d", pos)
		}

		u.path = s[pos:end]
		pos = end
	}

	// query
	if pos < limit && s[pos] == '?' {
		end, err := sc.scanNextPart(pos+1, limit, "#", "&=")
		if err != nil {
			return DIDURL{}, err
		}
		if end == pos+1 {
			return DIDURL{}, sc.fail(pos, "missing query at: %d", pos)
		}

		u.query, err = sc.scanPairs(pos+1, end, "&", "query parameter")
		if err != nil {
			return DIDURL{}, err
		}
		pos = end
	}

	// fragment; a fragment without leading '#' is only accepted when it is
	// the whole input (v1 compatible relative key ids)
	if pos < limit && (s[pos] == '#' || pos == start) {
		if s[pos] == '#' {
			pos++
		}

		end, err := sc.scanNextPart(pos, limit, "", "")
		if err != nil {
			return DIDURL{}, err
		}
		if end == pos {
			return DIDURL{}, sc.fail(pos, "missing fragment at: %d", pos)
		}

		u.fragment = s[pos:end]
		pos = end
	}

	if pos < limit {
		return DIDURL{}, sc.fail(pos, "invalid char at: %d", pos)
	}

	if u.did.IsZero() {
		return DIDURL{}, sc.fail(start, "missing DID at: %d", start)
	}

	return u, nil
}

// parseDIDPart splits s[start:end], already checked by the scanner, into
// scheme, method and method specific id.
func (p *Parser) parseDIDPart(sc *scanner, start, end int) (DID, error) {
	part := sc.input[start:end]

	parts := strings.SplitN(part, ":", 3)
	if parts[0] != Scheme {
		return DID{}, sc.fail(start, "invalid DID schema: '%s', at: %d", parts[0], start)
	}

	if len(parts) < 2 {
		return DID{}, sc.fail(start+len(parts[0]), "missing method and id string at: %d", start+len(parts[0]))
	}

	methodPos := start + len(Scheme) + 1
	if parts[1] != p.method {
		return DID{}, sc.fail(methodPos, "unknown DID method: '%s', at: %d", parts[1], methodPos)
	}

	idPos := methodPos + len(parts[1])
	if len(parts) < 3 {
		return DID{}, sc.fail(idPos, "missing id string at: %d", idPos)
	}

	return New(parts[1], parts[2]), nil
}

// scanPairs splits input[start:end] into name/value pairs. A name may appear
// only once.
func (sc *scanner) scanPairs(start, end int, sep, what string) ([]Pair, error) {
	var pairs []Pair

	offset := start
	for _, item := range strings.Split(sc.input[start:end], sep) {
		name, value, _ := strings.Cut(item, "=")
		if _, dup := lookup(pairs, name); dup {
			return nil, sc.fail(offset, "duplicated %s '%s' at: %d", what, name, offset)
		}
		pairs = append(pairs, Pair{Name: name, Value: value})
		offset += len(item) + len(sep)
	}

	return pairs, nil
}

type scanner struct {
	input string
	kind  error
}

func (sc *scanner) fail(offset int, format string, args ...interface{}) error {
	return &ParseError{
		Input:  sc.input,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
		kind:   sc.kind,
	}
}

// scanNextPart scans input[start:limit] up to the first byte of partSeps and
// returns its index, or limit. Tokens are separated by bytes of tokenSeps;
// empty tokens are rejected.
func (sc *scanner) scanNextPart(start, limit int, partSeps, tokenSeps string) (int, error) {
	s := sc.input
	tokenStart := true

	i := start
	for ; i < limit; i++ {
		ch := s[i]

		if strings.IndexByte(partSeps, ch) >= 0 {
			break
		}

		if strings.IndexByte(tokenSeps, ch) >= 0 {
			if tokenStart {
				return 0, sc.fail(i, "invalid char at: %d", i)
			}
			tokenStart = true
			continue
		}

		if isTokenChar(ch, tokenStart) {
			tokenStart = false
			continue
		}

		if ch == '%' {
			if i+2 >= limit {
				return 0, sc.fail(i, "invalid char at: %d", i)
			}
			if !isHexChar(s[i+1]) || !isHexChar(s[i+2]) {
				return 0, sc.fail(i, "invalid hex char at: %d", i)
			}
			i += 2
			tokenStart = false
			continue
		}

		return 0, sc.fail(i, "invalid char at: %d", i)
	}

	if tokenStart && i > start {
		// trailing token separator
		return 0, sc.fail(i-1, "invalid char at: %d", i-1)
	}

	return i, nil
}

func trim(s string) (int, int) {
	start, limit := 0, len(s)
	for limit > 0 && s[limit-1] <= ' ' {
		limit--
	}
	for start < limit && s[start] <= ' ' {
		start++
	}

	return start, limit
}

func isTokenChar(ch byte, start bool) bool {
	if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
		return true
	}
	if start {
		return false
	}

	return ch == '.' || ch == '_' || ch == '-'
}

func isHexChar(ch byte) bool {
	return (ch >= 'A' && ch <= 'F') || (ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')
}
