package idchain

import (
	"fmt"
	"strings"
)

// Specification tags carried by request headers.
const (
	DIDSpecification        = "elastos/did/1.0"
	CredentialSpecification = "elastos/credential/1.0"
)

// Operation is the operation a chain request performs.
type Operation int

// Supported operations.
const (
	Create Operation = iota
	Update
	Transfer
	Deactivate
	Declare
	Revoke
)

var operationNames = map[Operation]string{
	Create:     "create",
	Update:     "update",
	Transfer:   "transfer",
	Deactivate: "deactivate",
	Declare:    "declare",
	Revoke:     "revoke",
}

// ParseOperation parses an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	name := strings.ToLower(s)
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}

	return 0, fmt.Errorf("unknown operation %q", s)
}

func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}

	return fmt.Sprintf("operation(%d)", int(o))
}

// Specification returns the header tag of the operation: credential
// operations use CredentialSpecification, all others DIDSpecification.
func (o Operation) Specification() string {
	if o.IsCredentialOperation() {
		return CredentialSpecification
	}

	return DIDSpecification
}

// IsCredentialOperation reports whether o acts on a credential.
func (o Operation) IsCredentialOperation() bool {
	return o == Declare || o == Revoke
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	n, ok := operationNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown operation %d", int(o))
	}

	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}

	*o = op

	return nil
}
