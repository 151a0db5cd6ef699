package chains

import (
	"fmt"
	"strings"
)

// Kind is the execution environment family of a chain
type Kind int

const (
	// Evm chains use 20-byte addresses and secp256k1 signatures
	Evm Kind = iota + 1
	// MoveVm chains use 32-byte addresses and Ed25519 signatures
	MoveVm
	// SolanaVm chains use 32-byte public keys and Ed25519 signatures
	SolanaVm
)

// SignatureScheme identifies how approvals for a chain kind are signed
type SignatureScheme int

const (
	// SchemeEd25519 signs the raw 32-byte intent id
	SchemeEd25519 SignatureScheme = iota + 1
	// SchemeEcdsaPersonal signs keccak256 of the intent id behind the Ethereum message prefix
	SchemeEcdsaPersonal
)

type kindInfo struct {
	name         string
	addressWidth int
	scheme       SignatureScheme
}

var kinds = map[Kind]kindInfo{
	Evm:      {name: "evm", addressWidth: 20, scheme: SchemeEcdsaPersonal},
	MoveVm:   {name: "mvm", addressWidth: 32, scheme: SchemeEd25519},
	SolanaVm: {name: "svm", addressWidth: 32, scheme: SchemeEd25519},
}

// Kinds lists every supported chain kind
var Kinds = []Kind{Evm, MoveVm, SolanaVm}

// ParseKind parses a chain kind name such as "evm", "mvm" or "svm"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "evm":
		return Evm, nil
	case "mvm", "move", "movevm":
		return MoveVm, nil
	case "svm", "solana", "solanavm":
		return SolanaVm, nil
	}
	return 0, fmt.Errorf("unknown chain kind: %q", s)
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// String returns the short name of the kind
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// AddressWidth returns the native address width in bytes
func (k Kind) AddressWidth() int {
	if info, ok := kinds[k]; ok {
		return info.addressWidth
	}
	return 32
}

// Scheme returns the signature scheme used for approvals targeting k
func (k Kind) Scheme() SignatureScheme {
	return kinds[k].scheme
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid chain kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (s SignatureScheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeEcdsaPersonal:
		return "ecdsa-personal"
	}
	return "unknown"
}

// chainNames maps well-known chain IDs to their names
var chainNames = map[uint64]string{
	1:        "ETHEREUM",
	137:      "POLYGON",
	42161:    "ARBITRUM",
	8453:     "BASE",
	84532:    "BASE_SEPOLIA",
	11155111: "SEPOLIA",
	126:      "MOVEMENT",
	250:      "MOVEMENT_BARDOCK",
	101:      "SOLANA",
	103:      "SOLANA_DEVNET",
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID uint64) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}
