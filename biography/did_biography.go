package biography

import (
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/idchain"
)

// DIDBiography is the resolution result of a DID: its status and the
// transactions that created, updated, transferred or deactivated it.
type DIDBiography struct {
	did    did.DID
	status DIDStatus
	txs    history[*idchain.DIDTransaction]
}

// NewDIDBiography starts an empty biography of id.
func NewDIDBiography(id did.DID, status DIDStatus) *DIDBiography {
	return &DIDBiography{did: id, status: status}
}

// ParseDIDBiography parses and sanitizes a biography from its JSON form.
func ParseDIDBiography(data []byte, opts ...Opt) (*DIDBiography, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResponse, err)
	}

	return ParseDIDBiographyMap(m, opts...)
}

// ParseDIDBiographyMap parses and sanitizes a biography from a decoded JSON
// object.
func ParseDIDBiographyMap(m jsonmap.JSONMap, opts ...Opt) (*DIDBiography, error) {
	o := getOptions(opts)
	b := &DIDBiography{}

	id, ok := m.String(jsonFldDID)
	if !ok {
		id, _ = m.String(jsonFldID)
	}
	if id != "" {
		d, err := o.parser.ParseDID(id)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid did: %w", diderrors.ErrMalformedResolveResponse, err)
		}
		b.did = d
	}

	status, err := parseStatus(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResponse, err)
	}
	b.status = DIDStatus(status)

	parse := func(tx jsonmap.JSONMap) (*idchain.DIDTransaction, error) {
		return idchain.ParseDIDTransactionMap(tx, o.requestOpts()...)
	}
	if b.txs.transactions, err = parseTransactions(m, parse); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResponse, err)
	}

	if err := b.Sanitize(); err != nil {
		return nil, err
	}

	return b, nil
}

// DID returns the resolved DID.
func (b *DIDBiography) DID() did.DID { return b.did }

// Status returns the resolution status.
func (b *DIDBiography) Status() DIDStatus { return b.status }

// SetStatus sets the status while the biography is assembled.
func (b *DIDBiography) SetStatus(status DIDStatus) error {
	if err := b.txs.checkMutable(); err != nil {
		return err
	}

	b.status = status

	return nil
}

// Count returns the number of transactions.
func (b *DIDBiography) Count() int { return len(b.txs.transactions) }

// Transaction returns the i-th transaction, newest first.
func (b *DIDBiography) Transaction(i int) *idchain.DIDTransaction { return b.txs.transactions[i] }

// Transactions returns all transactions, newest first.
func (b *DIDBiography) Transactions() []*idchain.DIDTransaction { return b.txs.all() }

// AppendTransaction adds tx while the biography is assembled.
func (b *DIDBiography) AppendTransaction(tx *idchain.DIDTransaction) error {
	return b.txs.append(tx)
}

// Sanitize checks the biography: a DID that was not found has no
// transactions, any other status needs at least one, and each transaction
// must be sane. A sanitized biography is read-only.
func (b *DIDBiography) Sanitize() error {
	if err := b.txs.sanitize(b.status == DIDStatusNotFound); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResponse, err)
	}

	if b.did.IsZero() {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResponse, "missing did")
	}

	for _, tx := range b.txs.transactions {
		if tx.DID() != b.did {
			return diderrors.Errorf(diderrors.ErrMalformedResolveResponse,
				"transaction %s is not about %s", tx.TransactionID(), b.did)
		}
	}

	b.txs.sanitized = true

	return nil
}

// Map returns the biography as a JSON object.
func (b *DIDBiography) Map() jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldDID:    b.did.String(),
		jsonFldStatus: int(b.status),
	}
	if len(b.txs.transactions) > 0 {
		m[jsonFldTransaction] = b.txs.serialize()
	}

	return m
}

// JSON returns the canonical JSON of the biography.
func (b *DIDBiography) JSON() ([]byte, error) {
	return jsonmap.Marshal(b.Map())
}

// MarshalJSON implements json.Marshaler.
func (b *DIDBiography) MarshalJSON() ([]byte, error) {
	return b.JSON()
}
