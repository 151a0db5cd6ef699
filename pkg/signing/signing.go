// Package signing produces and verifies approval signatures over a 32-byte
// intent id. Both schemes are deterministic for a fixed key and intent id.
package signing

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
)

// EvmSignatureLength is the length of an r || s || v signature
const EvmSignatureLength = 65

var (
	// ErrInvalidSignature is returned when a signature does not verify
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnsupportedScheme is returned for an unknown signature scheme
	ErrUnsupportedScheme = errors.New("unsupported signature scheme")
)

// Signer signs intent ids for one signature scheme
type Signer interface {
	Scheme() chains.SignatureScheme
	Sign(intentID [32]byte) ([]byte, error)
	// PublicKey returns the verifying key: the raw Ed25519 public key or the
	// 20-byte Ethereum address
	PublicKey() []byte
}

// EvmDigest returns keccak256("\x19Ethereum Signed Message:\n32" || keccak256(intentID))
func EvmDigest(intentID [32]byte) []byte {
	return accounts.TextHash(crypto.Keccak256(intentID[:]))
}

// Ed25519Signer signs the raw intent id bytes
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer creates a signer from a 32-byte seed or a 64-byte private key
func NewEd25519Signer(key []byte) (*Ed25519Signer, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return &Ed25519Signer{key: ed25519.NewKeyFromSeed(key)}, nil
	case ed25519.PrivateKeySize:
		return &Ed25519Signer{key: ed25519.PrivateKey(bytes.Clone(key))}, nil
	}
	return nil, fmt.Errorf("ed25519 key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(key))
}

// ParseEd25519Signer accepts a hex (optionally 0x-prefixed) or base64 encoded key
func ParseEd25519Signer(encoded string) (*Ed25519Signer, error) {
	s := strings.TrimSpace(encoded)
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return NewEd25519Signer(raw)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ed25519 key is neither hex nor base64")
	}
	return NewEd25519Signer(raw)
}

func (s *Ed25519Signer) Scheme() chains.SignatureScheme { return chains.SchemeEd25519 }

func (s *Ed25519Signer) Sign(intentID [32]byte) ([]byte, error) {
	return ed25519.Sign(s.key, intentID[:]), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	return bytes.Clone(s.key.Public().(ed25519.PublicKey))
}

// EcdsaSigner signs the Ethereum-prefixed keccak digest of the intent id
type EcdsaSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewEcdsaSigner creates a signer from a hex encoded secp256k1 private key
func NewEcdsaSigner(hexKey string) (*EcdsaSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
	}
	return &EcdsaSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *EcdsaSigner) Scheme() chains.SignatureScheme { return chains.SchemeEcdsaPersonal }

// Sign returns a 65-byte r || s || v signature with v in {27, 28}
func (s *EcdsaSigner) Sign(intentID [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(EvmDigest(intentID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign intent id: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

func (s *EcdsaSigner) PublicKey() []byte {
	return s.address.Bytes()
}

// Address returns the Ethereum address of the signer
func (s *EcdsaSigner) Address() common.Address {
	return s.address
}

// Verify checks sig over intentID against the approver key for scheme. For
// Ed25519 the approver is the public key, for ECDSA it is the 20-byte address.
func Verify(scheme chains.SignatureScheme, approver []byte, intentID [32]byte, sig []byte) error {
	switch scheme {
	case chains.SchemeEd25519:
		if len(approver) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return ErrInvalidSignature
		}
		if !ed25519.Verify(ed25519.PublicKey(approver), intentID[:], sig) {
			return ErrInvalidSignature
		}
		return nil
	case chains.SchemeEcdsaPersonal:
		signer, err := RecoverEvmSigner(intentID, sig)
		if err != nil {
			return err
		}
		if !bytes.Equal(signer.Bytes(), approver) {
			return ErrInvalidSignature
		}
		return nil
	}
	return ErrUnsupportedScheme
}

// RecoverEvmSigner returns the address that produced an r || s || v signature
func RecoverEvmSigner(intentID [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != EvmSignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := bytes.Clone(sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(EvmDigest(intentID), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
