package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerProvider signs 32 byte hashes for the account that pays for ID chain
// transactions.
type SignerProvider interface {
	// Sign returns the 65 byte r||s||v signature of hash.
	Sign(ctx context.Context, hash []byte) ([]byte, error)
	// GetAddress returns the lower case hex account address.
	GetAddress() string
}

// DefaultProvider signs with an in-memory private key.
type DefaultProvider struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultProvider creates a new default signer provider.
//
// privHex is the private key in hex format, with or without 0x prefix.
func NewDefaultProvider(privHex string) (*DefaultProvider, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &DefaultProvider{priv: priv}, nil
}

// Sign signs the hash.
func (s *DefaultProvider) Sign(_ context.Context, hash []byte) ([]byte, error) {
	signature, err := crypto.Sign(hash, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature, nil
}

// GetAddress returns the address of the signer.
func (s *DefaultProvider) GetAddress() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}

// TxSignerFn creates a bind.SignerFn-compatible function using a SignerProvider.
// It hashes the transaction with EIP-155 and signs it via the provider.
func TxSignerFn(ctx context.Context, chainID *big.Int, s SignerProvider) func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if !strings.EqualFold(address.Hex(), s.GetAddress()) {
			return nil, fmt.Errorf("signer address mismatch: %s", address.Hex())
		}

		eip155Signer := types.NewEIP155Signer(chainID)
		h := eip155Signer.Hash(tx)
		sig, err := s.Sign(ctx, h.Bytes())
		if err != nil {
			return nil, err
		}

		return tx.WithSignature(eip155Signer, sig)
	}
}
