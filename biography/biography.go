// Package biography holds the transaction histories the resolver returns for
// DIDs and credentials.
//
// A biography is assembled from a resolve response, sanitized once, and
// read-only afterwards. Transactions are ordered newest first.
package biography

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/idchain"
)

// JSON field names.
const (
	jsonFldDID         = "did"
	jsonFldID          = "id"
	jsonFldStatus      = "status"
	jsonFldTransaction = "transaction"
)

// Opt configures biography parsing.
type Opt func(*options)

type options struct {
	parser    *did.Parser
	processor *schema.Processor
}

// WithParser sets the parser of the resolved ids and of the recorded
// requests. Nil keeps the default.
func WithParser(p *did.Parser) Opt {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithProcessor enables JSON-LD context checks on the recorded documents and
// credentials.
func WithProcessor(p *schema.Processor) Opt {
	return func(o *options) {
		o.processor = p
	}
}

func getOptions(opts []Opt) *options {
	o := &options{parser: did.DefaultParser()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *options) requestOpts() []idchain.ParseOpt {
	return []idchain.ParseOpt{idchain.WithParser(o.parser), idchain.WithProcessor(o.processor)}
}

// DIDStatus is the resolution status of a DID.
type DIDStatus int

// DID statuses, as encoded on the wire.
const (
	DIDStatusValid       DIDStatus = 0
	DIDStatusExpired     DIDStatus = 1
	DIDStatusDeactivated DIDStatus = 2
	DIDStatusNotFound    DIDStatus = 3
)

func (s DIDStatus) String() string {
	switch s {
	case DIDStatusValid:
		return "valid"
	case DIDStatusExpired:
		return "expired"
	case DIDStatusDeactivated:
		return "deactivated"
	case DIDStatusNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// CredentialStatus is the resolution status of a credential.
type CredentialStatus int

// Credential statuses, as encoded on the wire.
const (
	CredentialStatusValid    CredentialStatus = 0
	CredentialStatusExpired  CredentialStatus = 1
	CredentialStatusRevoked  CredentialStatus = 2
	CredentialStatusNotFound CredentialStatus = 3
)

func (s CredentialStatus) String() string {
	switch s {
	case CredentialStatusValid:
		return "valid"
	case CredentialStatusExpired:
		return "expired"
	case CredentialStatusRevoked:
		return "revoked"
	case CredentialStatusNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type transaction interface {
	Sanitize() error
	Map() jsonmap.JSONMap
}

// history is the transaction list shared by both biographies.
type history[T transaction] struct {
	transactions []T
	sanitized    bool
}

func (h *history[T]) checkMutable() error {
	if h.sanitized {
		return diderrors.Errorf(diderrors.ErrIllegalState, "biography is read-only")
	}

	return nil
}

func (h *history[T]) append(tx T) error {
	if err := h.checkMutable(); err != nil {
		return err
	}

	h.transactions = append(h.transactions, tx)

	return nil
}

func (h *history[T]) all() []T {
	return append([]T(nil), h.transactions...)
}

// sanitize checks the transaction count against the status and every
// transaction.
func (h *history[T]) sanitize(notFound bool) error {
	if notFound {
		if len(h.transactions) != 0 {
			return fmt.Errorf("should not include transaction")
		}

		return nil
	}

	if len(h.transactions) == 0 {
		return fmt.Errorf("missing transaction")
	}

	for _, tx := range h.transactions {
		if err := tx.Sanitize(); err != nil {
			return fmt.Errorf("invalid transaction: %w", err)
		}
	}

	return nil
}

func (h *history[T]) serialize() []interface{} {
	out := make([]interface{}, len(h.transactions))
	for i, tx := range h.transactions {
		out[i] = tx.Map()
	}

	return out
}

// parseTransactions parses the transaction list of m with parse.
func parseTransactions[T transaction](m jsonmap.JSONMap, parse func(jsonmap.JSONMap) (T, error)) ([]T, error) {
	v, ok := m[jsonFldTransaction]
	if !ok || v == nil {
		return nil, nil
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid transaction list")
	}

	txs := make([]T, 0, len(items))
	for _, item := range items {
		var obj jsonmap.JSONMap
		switch o := item.(type) {
		case jsonmap.JSONMap:
			obj = o
		case map[string]interface{}:
			obj = o
		default:
			return nil, fmt.Errorf("invalid transaction")
		}

		tx, err := parse(obj)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// parseStatus reads the numeric status of m, in [0, 3].
func parseStatus(m jsonmap.JSONMap) (int, error) {
	var status int64

	switch v := m[jsonFldStatus].(type) {
	case nil:
		return 0, fmt.Errorf("missing status")
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid status %s", v)
		}
		status = n
	case float64:
		status = int64(v)
		if float64(status) != v {
			return 0, fmt.Errorf("invalid status %v", v)
		}
	case int:
		status = int64(v)
	default:
		return 0, fmt.Errorf("invalid status %v", v)
	}

	if status < 0 || status > 3 {
		return 0, fmt.Errorf("invalid status %d", status)
	}

	return int(status), nil
}
