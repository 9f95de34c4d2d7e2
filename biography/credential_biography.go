package biography

import (
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/idchain"
)

// CredentialBiography is the resolution result of a credential: its status
// and the transactions that declared or revoked it.
type CredentialBiography struct {
	id     did.DIDURL
	status CredentialStatus
	txs    history[*idchain.CredentialTransaction]
}

// NewCredentialBiography starts an empty biography of id.
func NewCredentialBiography(id did.DIDURL, status CredentialStatus) *CredentialBiography {
	return &CredentialBiography{id: id, status: status}
}

// ParseCredentialBiography parses and sanitizes a biography from its JSON
// form.
func ParseCredentialBiography(data []byte, opts ...Opt) (*CredentialBiography, error) {
	m, err := jsonmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResult, err)
	}

	return ParseCredentialBiographyMap(m, opts...)
}

// ParseCredentialBiographyMap parses and sanitizes a biography from a decoded
// JSON object.
func ParseCredentialBiographyMap(m jsonmap.JSONMap, opts ...Opt) (*CredentialBiography, error) {
	o := getOptions(opts)
	b := &CredentialBiography{}

	if id, _ := m.String(jsonFldID); id != "" {
		u, err := o.parser.ParseURL(id)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id: %w", diderrors.ErrMalformedResolveResult, err)
		}
		b.id = u
	}

	status, err := parseStatus(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResult, err)
	}
	b.status = CredentialStatus(status)

	parse := func(tx jsonmap.JSONMap) (*idchain.CredentialTransaction, error) {
		return idchain.ParseCredentialTransactionMap(tx, o.requestOpts()...)
	}
	if b.txs.transactions, err = parseTransactions(m, parse); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResult, err)
	}

	if err := b.Sanitize(); err != nil {
		return nil, err
	}

	return b, nil
}

// ID returns the resolved credential id.
func (b *CredentialBiography) ID() did.DIDURL { return b.id }

// Status returns the resolution status.
func (b *CredentialBiography) Status() CredentialStatus { return b.status }

// SetStatus sets the status while the biography is assembled.
func (b *CredentialBiography) SetStatus(status CredentialStatus) error {
	if err := b.txs.checkMutable(); err != nil {
		return err
	}

	b.status = status

	return nil
}

// Count returns the number of transactions.
func (b *CredentialBiography) Count() int { return len(b.txs.transactions) }

// Transaction returns the i-th transaction, newest first.
func (b *CredentialBiography) Transaction(i int) *idchain.CredentialTransaction {
	return b.txs.transactions[i]
}

// Transactions returns all transactions, newest first.
func (b *CredentialBiography) Transactions() []*idchain.CredentialTransaction { return b.txs.all() }

// AppendTransaction adds tx while the biography is assembled.
func (b *CredentialBiography) AppendTransaction(tx *idchain.CredentialTransaction) error {
	return b.txs.append(tx)
}

// Sanitize checks the biography: an unknown credential has no transactions,
// any other status needs at least one, and each transaction must be sane.
// A sanitized biography is read-only.
func (b *CredentialBiography) Sanitize() error {
	if err := b.txs.sanitize(b.status == CredentialStatusNotFound); err != nil {
		return fmt.Errorf("%w: %w", diderrors.ErrMalformedResolveResult, err)
	}

	if b.id.IsZero() {
		return diderrors.Errorf(diderrors.ErrMalformedResolveResult, "missing id")
	}

	for _, tx := range b.txs.transactions {
		if !tx.CredentialID().Equal(b.id) {
			return diderrors.Errorf(diderrors.ErrMalformedResolveResult,
				"transaction %s is not about %s", tx.TransactionID(), b.id)
		}
	}

	b.txs.sanitized = true

	return nil
}

// Map returns the biography as a JSON object.
func (b *CredentialBiography) Map() jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldID:     b.id.String(),
		jsonFldStatus: int(b.status),
	}
	if len(b.txs.transactions) > 0 {
		m[jsonFldTransaction] = b.txs.serialize()
	}

	return m
}

// JSON returns the canonical JSON of the biography.
func (b *CredentialBiography) JSON() ([]byte, error) {
	return jsonmap.Marshal(b.Map())
}

// MarshalJSON implements json.Marshaler.
func (b *CredentialBiography) MarshalJSON() ([]byte, error) {
	return b.JSON()
}
