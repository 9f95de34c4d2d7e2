// Package metadata keeps the chain side data of DIDs and credentials
// (transaction id, publish time, status flags, aliases) outside the
// identifier values themselves.
package metadata

import (
	"context"
	"time"

	"github.com/pilacorp/go-did-sdk/did"
)

// DIDMetadata is the side data of a resolved DID document.
type DIDMetadata struct {
	TransactionID     string     `json:"txid,omitempty"`
	Signature         string     `json:"signature,omitempty"`
	PreviousSignature string     `json:"prevSignature,omitempty"`
	Published         *time.Time `json:"published,omitempty"`
	Deactivated       bool       `json:"deactivated,omitempty"`
	Alias             string     `json:"alias,omitempty"`
}

// Clone returns a deep copy of m. It returns nil for a nil m.
func (m *DIDMetadata) Clone() *DIDMetadata {
	if m == nil {
		return nil
	}

	c := *m
	if m.Published != nil {
		p := *m.Published
		c.Published = &p
	}

	return &c
}

// CredentialMetadata is the side data of a resolved credential.
type CredentialMetadata struct {
	TransactionID string     `json:"txid,omitempty"`
	Published     *time.Time `json:"published,omitempty"`
	Revoked       bool       `json:"revoked,omitempty"`
	Alias         string     `json:"alias,omitempty"`
}

// Clone returns a deep copy of m. It returns nil for a nil m.
func (m *CredentialMetadata) Clone() *CredentialMetadata {
	if m == nil {
		return nil
	}

	c := *m
	if m.Published != nil {
		p := *m.Published
		c.Published = &p
	}

	return &c
}

// Store persists metadata. Load methods return nil, nil when nothing is
// stored for the identifier.
type Store interface {
	SaveDID(ctx context.Context, id did.DID, md *DIDMetadata) error
	LoadDID(ctx context.Context, id did.DID) (*DIDMetadata, error)
	SaveCredential(ctx context.Context, id did.DIDURL, md *CredentialMetadata) error
	LoadCredential(ctx context.Context, id did.DIDURL) (*CredentialMetadata, error)
}
