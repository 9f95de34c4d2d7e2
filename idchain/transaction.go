package idchain

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

const (
	jsonFldTxID      = "txid"
	jsonFldTimestamp = "timestamp"
)

// DIDTransaction is a DID request as recorded on chain.
type DIDTransaction struct {
	txID      string
	timestamp time.Time
	request   *DIDRequest
}

// NewDIDTransaction wraps request recorded under txID at timestamp.
func NewDIDTransaction(txID string, timestamp time.Time, request *DIDRequest) *DIDTransaction {
	return &DIDTransaction{txID: txID, timestamp: timestamp.UTC(), request: request}
}

// ParseDIDTransactionMap parses and sanitizes a transaction from a decoded
// JSON object.
func ParseDIDTransactionMap(m jsonmap.JSONMap, opts ...ParseOpt) (*DIDTransaction, error) {
	txID, timestamp, op, err := parseTransaction(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedTransaction, err)
	}

	request, err := ParseDIDRequestMap(op, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request: %w", diderrors.ErrMalformedTransaction, err)
	}

	tx := NewDIDTransaction(txID, timestamp, request)
	if err := tx.Sanitize(); err != nil {
		return nil, err
	}

	return tx, nil
}

// TransactionID returns the transaction id.
func (tx *DIDTransaction) TransactionID() string { return tx.txID }

// Timestamp returns the time the transaction was recorded, in UTC.
func (tx *DIDTransaction) Timestamp() time.Time { return tx.timestamp }

// Request returns the recorded request.
func (tx *DIDTransaction) Request() *DIDRequest { return tx.request }

// DID returns the subject of the recorded request.
func (tx *DIDTransaction) DID() did.DID {
	if tx.request == nil {
		return did.DID{}
	}

	return tx.request.DID()
}

// Sanitize checks the transaction id and the recorded request.
func (tx *DIDTransaction) Sanitize() error {
	if tx.txID == "" {
		return diderrors.Errorf(diderrors.ErrMalformedTransaction, "missing txid")
	}
	if tx.request == nil {
		return diderrors.Errorf(diderrors.ErrMalformedTransaction, "missing operation")
	}

	if err := tx.request.Sanitize(); err != nil {
		return fmt.Errorf("%w: invalid request: %w", diderrors.ErrMalformedTransaction, err)
	}

	return nil
}

// Map returns the transaction as a JSON object. A transaction without a
// request has no operation field.
func (tx *DIDTransaction) Map() jsonmap.JSONMap {
	var op jsonmap.JSONMap
	if tx.request != nil {
		op = tx.request.Map()
	}

	return serializeTransaction(tx.txID, tx.timestamp, op)
}

// JSON returns the canonical JSON of the transaction.
func (tx *DIDTransaction) JSON() ([]byte, error) {
	return jsonmap.Marshal(tx.Map())
}

// MarshalJSON implements json.Marshaler.
func (tx *DIDTransaction) MarshalJSON() ([]byte, error) {
	return tx.JSON()
}

// CredentialTransaction is a credential request as recorded on chain.
type CredentialTransaction struct {
	txID      string
	timestamp time.Time
	request   *CredentialRequest
}

// NewCredentialTransaction wraps request recorded under txID at timestamp.
func NewCredentialTransaction(txID string, timestamp time.Time, request *CredentialRequest) *CredentialTransaction {
	return &CredentialTransaction{txID: txID, timestamp: timestamp.UTC(), request: request}
}

// ParseCredentialTransactionMap parses and sanitizes a transaction from a
// decoded JSON object.
func ParseCredentialTransactionMap(m jsonmap.JSONMap, opts ...ParseOpt) (*CredentialTransaction, error) {
	txID, timestamp, op, err := parseTransaction(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedTransaction, err)
	}

	request, err := ParseCredentialRequestMap(op, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request: %w", diderrors.ErrMalformedTransaction, err)
	}

	tx := NewCredentialTransaction(txID, timestamp, request)
	if err := tx.Sanitize(); err != nil {
		return nil, err
	}

	return tx, nil
}

// TransactionID returns the transaction id.
func (tx *CredentialTransaction) TransactionID() string { return tx.txID }

// Timestamp returns the time the transaction was recorded, in UTC.
func (tx *CredentialTransaction) Timestamp() time.Time { return tx.timestamp }

// Request returns the recorded request.
func (tx *CredentialTransaction) Request() *CredentialRequest { return tx.request }

// CredentialID returns the credential id of the recorded request.
func (tx *CredentialTransaction) CredentialID() did.DIDURL {
	if tx.request == nil {
		return did.DIDURL{}
	}

	return tx.request.CredentialID()
}

// Sanitize checks the transaction id and the recorded request.
func (tx *CredentialTransaction) Sanitize() error {
	if tx.txID == "" {
		return diderrors.Errorf(diderrors.ErrMalformedTransaction, "missing txid")
	}
	if tx.request == nil {
		return diderrors.Errorf(diderrors.ErrMalformedTransaction, "missing operation")
	}

	if err := tx.request.Sanitize(); err != nil {
		return fmt.Errorf("%w: invalid request: %w", diderrors.ErrMalformedTransaction, err)
	}

	return nil
}

// Map returns the transaction as a JSON object.
func (tx *CredentialTransaction) Map() jsonmap.JSONMap {
	var op jsonmap.JSONMap
	if tx.request != nil {
		op = tx.request.Map()
	}

	return serializeTransaction(tx.txID, tx.timestamp, op)
}

// JSON returns the canonical JSON of the transaction.
func (tx *CredentialTransaction) JSON() ([]byte, error) {
	return jsonmap.Marshal(tx.Map())
}

// MarshalJSON implements json.Marshaler.
func (tx *CredentialTransaction) MarshalJSON() ([]byte, error) {
	return tx.JSON()
}

func serializeTransaction(txID string, timestamp time.Time, request jsonmap.JSONMap) jsonmap.JSONMap {
	m := jsonmap.JSONMap{
		jsonFldTxID:      txID,
		jsonFldTimestamp: util.FormatTime(timestamp),
	}
	if request != nil {
		m[jsonFldOperation] = request
	}

	return m
}

func parseTransaction(m jsonmap.JSONMap) (string, time.Time, jsonmap.JSONMap, error) {
	txID, _ := m.String(jsonFldTxID)
	if txID == "" {
		return "", time.Time{}, nil, fmt.Errorf("missing txid")
	}

	ts, _ := m.String(jsonFldTimestamp)
	timestamp, err := util.ParseTime(ts)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	op, ok := asObject(m[jsonFldOperation])
	if !ok {
		return "", time.Time{}, nil, fmt.Errorf("missing operation")
	}

	return txID, timestamp, op, nil
}
