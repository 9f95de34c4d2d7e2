package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an r||s signature.
const SignatureLength = 64

// Digest returns sha256 over the concatenation of data.
func Digest(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

// SignDigest signs a 32 byte digest and returns the 64 byte r||s signature.
func SignDigest(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	signature, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}

	// Validate signature length
	if len(signature) != 65 {
		return nil, fmt.Errorf("ecdsa: invalid signature length, expected 65 bytes")
	}

	return signature[:SignatureLength], nil
}

// Sign signs the digest of data.
func Sign(priv *ecdsa.PrivateKey, data ...[]byte) ([]byte, error) {
	return SignDigest(priv, Digest(data...))
}

// VerifyDigest verifies an r||s signature, or r||s||v, of a digest with a
// compressed public key.
func VerifyDigest(compressed, digest, signature []byte) bool {
	if len(signature) == 65 {
		signature = signature[:SignatureLength]
	}
	if len(signature) != SignatureLength || len(compressed) != compressedKeyLength || len(digest) != 32 {
		return false
	}

	return crypto.VerifySignature(compressed, digest, signature)
}

// Verify checks a base64url signature of data against a base58 public key.
func Verify(keyBase58, signature string, data ...[]byte) bool {
	pub, err := DecodePublicKeyBase58(keyBase58)
	if err != nil {
		return false
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return false
	}

	return VerifyDigest(pub, Digest(data...), sig)
}

// EncodeSignature encodes a signature as unpadded base64url.
func EncodeSignature(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeSignature decodes an unpadded base64url signature.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}

	return sig, nil
}
