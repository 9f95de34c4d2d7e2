package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestKeys(t *testing.T) {
	priv, err := ParsePrivateKeyHex(testPrivateKey)
	require.NoError(t, err)

	keyBase58 := PublicKeyBase58(&priv.PublicKey)
	raw, err := DecodePublicKeyBase58(keyBase58)
	require.NoError(t, err)
	assert.Len(t, raw, 33)
	assert.Equal(t, CompressPublicKey(&priv.PublicKey), raw)

	uncompressed, err := UncompressPublicKey(raw)
	require.NoError(t, err)
	assert.Len(t, uncompressed, 65)

	assert.True(t, VerifyKeyPair(priv, keyBase58))

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, VerifyKeyPair(other, keyBase58))
}

func TestParsePrivateKeyHex(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		errorMsg    string
	}{
		{name: "With prefix", input: testPrivateKey},
		{name: "Without prefix", input: strings.TrimPrefix(testPrivateKey, "0x")},
		{name: "Too short", input: "0x1234", expectError: true, errorMsg: "private key must be 32 bytes"},
		{name: "Not hex", input: strings.Repeat("zz", 32), expectError: true, errorMsg: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrivateKeyHex(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDecodePublicKeyBase58(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "Empty", input: "", errorMsg: "public key is empty"},
		{name: "Wrong length", input: "3mJr7AoUXx2Wqd", errorMsg: "invalid public key length"},
		{name: "Not on curve", input: strings.Repeat("1", 33), errorMsg: "invalid public key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePublicKeyBase58(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestAddress(t *testing.T) {
	priv, err := ParsePrivateKeyHex(testPrivateKey)
	require.NoError(t, err)

	addr := Address(CompressPublicKey(&priv.PublicKey))
	assert.True(t, strings.HasPrefix(addr, "i"), "DID addresses start with 'i'")
	assert.True(t, IsAddress(addr))
	assert.False(t, IsAddress("not-an-address"))

	fromBase58, err := AddressFromBase58(PublicKeyBase58(&priv.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, addr, fromBase58)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, addr, Address(CompressPublicKey(&other.PublicKey)))
}

func TestSignVerify(t *testing.T) {
	priv, err := ParsePrivateKeyHex(testPrivateKey)
	require.NoError(t, err)
	keyBase58 := PublicKeyBase58(&priv.PublicKey)

	sig, err := Sign(priv, []byte("hello"), []byte(" "), []byte("world"))
	require.NoError(t, err)
	assert.Len(t, sig, SignatureLength)

	encoded := EncodeSignature(sig)
	assert.NotContains(t, encoded, "=")

	tests := []struct {
		name      string
		key       string
		signature string
		data      [][]byte
		want      bool
	}{
		{name: "Same segments", key: keyBase58, signature: encoded, data: [][]byte{[]byte("hello"), []byte(" "), []byte("world")}, want: true},
		{name: "Same bytes differently split", key: keyBase58, signature: encoded, data: [][]byte{[]byte("hello world")}, want: true},
		{name: "Different data", key: keyBase58, signature: encoded, data: [][]byte{[]byte("hello")}, want: false},
		{name: "Garbage signature", key: keyBase58, signature: "!!!", data: [][]byte{[]byte("hello world")}, want: false},
		{name: "Bad key", key: "abc", signature: encoded, data: [][]byte{[]byte("hello world")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.key, tt.signature, tt.data...))
		})
	}
}
