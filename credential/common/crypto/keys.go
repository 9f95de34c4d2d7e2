package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyTypeSecp256k1 is the verification method type of secp256k1 keys.
const KeyTypeSecp256k1 = "ECDSAsecp256k1"

// AddressVersion is the version byte of DID addresses.
const AddressVersion = 0x67

const compressedKeyLength = 33

// GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return key, nil
}

// ParsePrivateKeyHex parses a 32 byte hex private key, with or without 0x prefix.
func ParsePrivateKeyHex(privHex string) (*ecdsa.PrivateKey, error) {
	privHex = strings.TrimPrefix(privHex, "0x")
	if len(privHex) != 64 {
		return nil, errors.New("private key must be 32 bytes")
	}

	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return key, nil
}

// CompressPublicKey returns the 33 byte compressed form of pub.
func CompressPublicKey(pub *ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(pub)
}

// PublicKeyBase58 returns the base58 encoding of the compressed public key.
func PublicKeyBase58(pub *ecdsa.PublicKey) string {
	return base58.Encode(CompressPublicKey(pub))
}

// DecodePublicKeyBase58 decodes and validates a base58 compressed public key.
func DecodePublicKeyBase58(keyBase58 string) ([]byte, error) {
	if keyBase58 == "" {
		return nil, errors.New("public key is empty")
	}

	raw := base58.Decode(keyBase58)
	if len(raw) != compressedKeyLength {
		return nil, fmt.Errorf("invalid public key length: got %d, want %d", len(raw), compressedKeyLength)
	}

	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	return raw, nil
}

// UncompressPublicKey converts a compressed key to the 65 byte uncompressed form.
func UncompressPublicKey(compressed []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compressed public key: %w", err)
	}

	return pub.SerializeUncompressed(), nil
}

// Address derives the DID address, the method specific id of a DID, from a
// compressed public key: base58check(0x67 || hash160(0x21 || key || 0xAC)).
func Address(compressed []byte) string {
	script := make([]byte, 0, len(compressed)+2)
	script = append(script, byte(len(compressed)))
	script = append(script, compressed...)
	script = append(script, 0xAC)

	return base58.CheckEncode(btcutil.Hash160(script), AddressVersion)
}

// AddressFromBase58 derives the DID address of a base58 public key.
func AddressFromBase58(keyBase58 string) (string, error) {
	raw, err := DecodePublicKeyBase58(keyBase58)
	if err != nil {
		return "", err
	}

	return Address(raw), nil
}

// IsAddress reports whether s is a well formed DID address.
func IsAddress(s string) bool {
	_, version, err := base58.CheckDecode(s)
	return err == nil && version == AddressVersion
}

// VerifyKeyPair reports whether priv matches the base58 public key.
func VerifyKeyPair(priv *ecdsa.PrivateKey, keyBase58 string) bool {
	raw, err := DecodePublicKeyBase58(keyBase58)
	if err != nil {
		return false
	}

	uncompressed, err := UncompressPublicKey(raw)
	if err != nil {
		return false
	}

	pub, err := crypto.UnmarshalPubkey(uncompressed)
	if err != nil {
		return false
	}

	return priv.PublicKey.X.Cmp(pub.X) == 0 && priv.PublicKey.Y.Cmp(pub.Y) == 0
}
