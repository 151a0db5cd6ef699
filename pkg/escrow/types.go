package escrow

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// DefaultExpiryDuration is the escrow lifetime in seconds when none is supplied
const DefaultExpiryDuration int64 = 120

// Address is a 32-byte account on the host chain. Narrower addresses are
// left-padded with zeros.
type Address [32]byte

// IntentID identifies the intent an escrow belongs to
type IntentID [32]byte

// ParseAddress normalizes a hex address into a 32-byte Address
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := normalize.Bytes(s, 32)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// ParseIntentID normalizes a hex intent id
func ParseIntentID(s string) (IntentID, error) {
	id, err := normalize.IntentID(s)
	return IntentID(id), err
}

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	*a = parsed
	return nil
}

func (id IntentID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id IntentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *IntentID) UnmarshalText(text []byte) error {
	parsed, err := ParseIntentID(string(text))
	if err != nil {
		return fmt.Errorf("invalid intent id: %w", err)
	}
	*id = parsed
	return nil
}

// VaultAddress derives the account holding the deposit for an intent
func VaultAddress(intentID IntentID) Address {
	return Address(crypto.Keccak256Hash([]byte("escrow-vault"), intentID[:]))
}

// ReleaseMode selects what a trusted fulfillment proof does on arrival
type ReleaseMode int

const (
	// ReleaseOnProof pays the solver as part of proof intake
	ReleaseOnProof ReleaseMode = iota
	// ReleaseOnClaim records the proof and waits for ClaimWithProof
	ReleaseOnClaim
)

// ParseReleaseMode accepts "proof" or "claim". Empty selects ReleaseOnProof.
func ParseReleaseMode(s string) (ReleaseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "proof":
		return ReleaseOnProof, nil
	case "claim":
		return ReleaseOnClaim, nil
	}
	return ReleaseOnProof, fmt.Errorf("unknown release mode %q, must be 'proof' or 'claim'", s)
}

func (m ReleaseMode) String() string {
	if m == ReleaseOnClaim {
		return "claim"
	}
	return "proof"
}

// ProgramConfig is the singleton program state written by Initialize
type ProgramConfig struct {
	Approver      []byte                 `json:"approver"`
	Scheme        chains.SignatureScheme `json:"scheme"`
	TrustedRelay  Address                `json:"trusted_relay"`
	TrustedSource Address                `json:"trusted_source"`
	ReleaseMode   ReleaseMode            `json:"release_mode"`
}

// Escrow is the deposit locked for one intent
type Escrow struct {
	IntentID       IntentID `json:"intent_id"`
	Requester      Address  `json:"requester"`
	Token          Address  `json:"token"`
	Amount         uint64   `json:"amount"`
	ReservedSolver Address  `json:"reserved_solver"`
	Expiry         int64    `json:"expiry"`
	IsClaimed      bool     `json:"is_claimed"`
}

// Requirements are the stored IntentRequirements for an intent plus the
// flags tracking their use
type Requirements struct {
	IntentID        IntentID `json:"intent_id"`
	RequesterAddr   Address  `json:"requester_addr"`
	AmountRequired  uint64   `json:"amount_required"`
	TokenAddr       Address  `json:"token_addr"`
	SolverAddr      Address  `json:"solver_addr"`
	Expiry          uint64   `json:"expiry"`
	EscrowCreated   bool     `json:"escrow_created"`
	Fulfilled       bool     `json:"fulfilled"`
	FulfilledBy     Address  `json:"fulfilled_by"`
	AmountFulfilled uint64   `json:"amount_fulfilled"`
	ProofConsumed   bool     `json:"proof_consumed"`
}
