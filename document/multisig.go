package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pilacorp/go-did-sdk/diderrors"
)

// MultiSignature is an m-of-n signing rule of a customized DID with several
// controllers.
type MultiSignature struct {
	M int
	N int
}

// NewMultiSignature validates an m-of-n rule: 0 < m <= n and n > 1.
func NewMultiSignature(m, n int) (*MultiSignature, error) {
	if m <= 0 || n <= 1 || m > n {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid multisig spec %d:%d", m, n)
	}

	return &MultiSignature{M: m, N: n}, nil
}

// ParseMultiSignature parses the "m:n" form.
func ParseMultiSignature(s string) (*MultiSignature, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid multisig spec '%s'", s)
	}

	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multisig m: %w", diderrors.ErrIllegalArgument, err)
	}

	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multisig n: %w", diderrors.ErrIllegalArgument, err)
	}

	return NewMultiSignature(m, n)
}

func (ms *MultiSignature) String() string {
	return fmt.Sprintf("%d:%d", ms.M, ms.N)
}

// Equal reports whether both rules are the same. Nil rules are equal.
func (ms *MultiSignature) Equal(other *MultiSignature) bool {
	if ms == nil || other == nil {
		return ms == other
	}

	return ms.M == other.M && ms.N == other.N
}
