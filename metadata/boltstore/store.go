// Package boltstore persists DID and credential metadata in a bbolt file.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
	bbolt "go.etcd.io/bbolt"

	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/metadata"
)

var logger = log.New("did-metadata-store")

var (
	didBucket        = []byte("did-metadata")
	credentialBucket = []byte("credential-metadata")
)

// Store is a metadata.Store backed by bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens, or creates, the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{didBucket, credentialBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create metadata buckets: %w", err)
	}

	logger.Debug("Opened metadata store", logfields.WithPath(path))

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDID implements metadata.Store.
func (s *Store) SaveDID(ctx context.Context, id did.DID, md *metadata.DIDMetadata) error {
	return s.put(ctx, didBucket, id.String(), md)
}

// LoadDID implements metadata.Store.
func (s *Store) LoadDID(ctx context.Context, id did.DID) (*metadata.DIDMetadata, error) {
	var md metadata.DIDMetadata

	found, err := s.get(ctx, didBucket, id.String(), &md)
	if err != nil || !found {
		return nil, err
	}

	return &md, nil
}

// SaveCredential implements metadata.Store.
func (s *Store) SaveCredential(ctx context.Context, id did.DIDURL, md *metadata.CredentialMetadata) error {
	return s.put(ctx, credentialBucket, id.String(), md)
}

// LoadCredential implements metadata.Store.
func (s *Store) LoadCredential(ctx context.Context, id did.DIDURL) (*metadata.CredentialMetadata, error) {
	var md metadata.CredentialMetadata

	found, err := s.get(ctx, credentialBucket, id.String(), &md)
	if err != nil || !found {
		return nil, err
	}

	return &md, nil
}

// put stores value as JSON under key. A nil value deletes the key.
func (s *Store) put(ctx context.Context, bucket []byte, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf []byte
	if !isNil(value) {
		var err error
		buf, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata of %s: %w", key, err)
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if buf == nil {
			return b.Delete([]byte(key))
		}

		return b.Put([]byte(key), buf)
	})
}

func (s *Store) get(ctx context.Context, bucket []byte, key string, value interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		buf := tx.Bucket(bucket).Get([]byte(key))
		if buf == nil {
			return nil
		}
		found = true

		return json.Unmarshal(buf, value)
	})
	if err != nil {
		return false, fmt.Errorf("failed to read metadata of %s: %w", key, err)
	}

	return found, nil
}

func isNil(v interface{}) bool {
	switch md := v.(type) {
	case *metadata.DIDMetadata:
		return md == nil
	case *metadata.CredentialMetadata:
		return md == nil
	default:
		return v == nil
	}
}
