// Package normalize canonicalizes the address, intent id and token metadata
// strings that different chain runtimes serialize differently.
//
// Move strips leading zeros from addresses inside type names, EVM addresses
// are 20 bytes while Move and Solana addresses are 32, and some feeds wrap
// token addresses as {"inner":"0x.."}. Every comparison in the verifier goes
// through this package so that values denoting the same bytes compare equal.
package normalize

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
)

// IntentIDWidth is the width of a canonical intent id
const IntentIDWidth = 32

var (
	// ErrInvalidHex is returned when a value is not valid hexadecimal
	ErrInvalidHex = errors.New("invalid hex")
	// ErrTooLong is returned when a value decodes to more bytes than the target width
	ErrTooLong = errors.New("value too long")
)

// Bytes decodes a hex string with an optional 0x prefix into exactly width
// bytes, left-padding with zeros. Odd-length input gets a leading zero nibble.
func Bytes(value string, width int) ([]byte, error) {
	s := strings.TrimSpace(value)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, value)
	}
	if len(raw) > width {
		return nil, fmt.Errorf("%w: %q is %d bytes, max %d", ErrTooLong, value, len(raw), width)
	}
	return common.LeftPadBytes(raw, width), nil
}

// Hex returns the canonical lowercase 0x-prefixed form of value at width bytes
func Hex(value string, width int) (string, error) {
	b, err := Bytes(value, width)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// Equal reports whether a and b denote the same bytes at the given width.
// Values that fail to normalize are never equal to anything.
func Equal(a, b string, width int) bool {
	ab, err := Bytes(a, width)
	if err != nil {
		return false
	}
	bb, err := Bytes(b, width)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// IntentID normalizes an intent id to its 32-byte form
func IntentID(value string) ([32]byte, error) {
	var id [32]byte
	b, err := Bytes(value, IntentIDWidth)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// IntentIDHex normalizes an intent id to lowercase 0x plus 64 hex characters
func IntentIDHex(value string) (string, error) {
	return Hex(value, IntentIDWidth)
}

// Address normalizes a chain-native address to the width of its chain kind.
// Solana-VM addresses may also be given in base58.
func Address(value string, kind chains.Kind) ([]byte, error) {
	if kind == chains.SolanaVm {
		return solanaAddress(value)
	}
	return Bytes(value, kind.AddressWidth())
}

// AddressHex returns the canonical hex form of a chain-native address
func AddressHex(value string, kind chains.Kind) (string, error) {
	b, err := Address(value, kind)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// AddressEqual reports whether two chain-native addresses of the same kind match
func AddressEqual(a, b string, kind chains.Kind) bool {
	ab, err := Address(a, kind)
	if err != nil {
		return false
	}
	bb, err := Address(b, kind)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// solanaAddress reads hex first. Only a value that is not hex of at most 32
// bytes is decoded as base58.
func solanaAddress(value string) ([]byte, error) {
	s := strings.TrimSpace(value)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return Bytes(s, 32)
	}
	b, hexErr := Bytes(s, 32)
	if hexErr == nil {
		return b, nil
	}
	if decoded := base58.Decode(s); len(decoded) == 32 {
		return decoded, nil
	}
	return nil, hexErr
}

type wrappedMetadata struct {
	Inner string `json:"inner"`
}

// Metadata canonicalizes a token metadata value. JSON values of the form
// {"inner":"0x.."} are unwrapped; hex values are normalized to 32 bytes and
// anything else is compared lowercase.
func Metadata(value string) string {
	s := strings.TrimSpace(value)
	if strings.HasPrefix(s, "{") {
		var w wrappedMetadata
		if err := json.Unmarshal([]byte(s), &w); err == nil && w.Inner != "" {
			s = w.Inner
		}
	}
	if canonical, err := Hex(s, 32); err == nil {
		return canonical
	}
	return strings.ToLower(s)
}

// MetadataEqual compares two token metadata values after canonicalization
func MetadataEqual(a, b string) bool {
	return Metadata(a) == Metadata(b)
}
