package signing

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
)

const testEvmKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func intentID(b byte) [32]byte {
	var id [32]byte
	id[31] = b
	return id
}

func TestEcdsaSignerProducesRecoverableDeterministicSignature(t *testing.T) {
	signer, err := NewEcdsaSigner("0x" + testEvmKey)
	require.NoError(t, err)

	sig1, err := signer.Sign(intentID(1))
	require.NoError(t, err)
	sig2, err := signer.Sign(intentID(1))
	require.NoError(t, err)

	require.Len(t, sig1, EvmSignatureLength)
	assert.Equal(t, sig1, sig2, "signatures must be deterministic")
	assert.Contains(t, []byte{27, 28}, sig1[64])

	recovered, err := RecoverEvmSigner(intentID(1), sig1)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)

	addr := signer.Address().Hex()
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)
}

func TestEvmDigestUsesMessagePrefix(t *testing.T) {
	id := intentID(7)
	inner := crypto.Keccak256(id[:])
	expected := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner)

	assert.Equal(t, expected, EvmDigest(id))
}

func TestVerify(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 1
	edSigner, err := NewEd25519Signer(seed)
	require.NoError(t, err)
	evmSigner, err := NewEcdsaSigner(testEvmKey)
	require.NoError(t, err)

	edSig, err := edSigner.Sign(intentID(2))
	require.NoError(t, err)
	evmSig, err := evmSigner.Sign(intentID(2))
	require.NoError(t, err)

	t.Run("ed25519 valid", func(t *testing.T) {
		assert.NoError(t, Verify(chains.SchemeEd25519, edSigner.PublicKey(), intentID(2), edSig))
	})
	t.Run("ed25519 wrong intent", func(t *testing.T) {
		assert.ErrorIs(t, Verify(chains.SchemeEd25519, edSigner.PublicKey(), intentID(3), edSig), ErrInvalidSignature)
	})
	t.Run("ed25519 truncated", func(t *testing.T) {
		assert.ErrorIs(t, Verify(chains.SchemeEd25519, edSigner.PublicKey(), intentID(2), edSig[:10]), ErrInvalidSignature)
	})
	t.Run("ecdsa valid", func(t *testing.T) {
		assert.NoError(t, Verify(chains.SchemeEcdsaPersonal, evmSigner.PublicKey(), intentID(2), evmSig))
	})
	t.Run("ecdsa other approver", func(t *testing.T) {
		other := make([]byte, 20)
		assert.ErrorIs(t, Verify(chains.SchemeEcdsaPersonal, other, intentID(2), evmSig), ErrInvalidSignature)
	})
	t.Run("unknown scheme", func(t *testing.T) {
		assert.ErrorIs(t, Verify(0, nil, intentID(2), nil), ErrUnsupportedScheme)
	})
}

func TestParseEd25519Signer(t *testing.T) {
	hexSeed := strings.Repeat("01", 32)
	fromHex, err := ParseEd25519Signer("0x" + hexSeed)
	require.NoError(t, err)

	fromB64, err := ParseEd25519Signer("AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")
	require.NoError(t, err)

	assert.Equal(t, fromHex.PublicKey(), fromB64.PublicKey())

	_, err = ParseEd25519Signer("0x0102")
	assert.Error(t, err)
}
