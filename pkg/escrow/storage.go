package escrow

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Ledger when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientFunds is returned by Transfer when the source balance is too low
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Ledger is the host-chain state visible to a single instruction
type Ledger interface {
	LoadConfig() (*ProgramConfig, error)
	StoreConfig(cfg *ProgramConfig) error
	LoadEscrow(intentID IntentID) (*Escrow, error)
	StoreEscrow(e *Escrow) error
	LoadRequirements(intentID IntentID) (*Requirements, error)
	StoreRequirements(r *Requirements) error
	Transfer(token, from, to Address, amount uint64) error
}

// ChainStorage runs instructions against host-chain state. Writes made
// through the Ledger passed to fn are committed only if fn returns nil.
type ChainStorage interface {
	Update(ctx context.Context, fn func(Ledger) error) error
	// View runs fn against a read-only snapshot
	View(ctx context.Context, fn func(Ledger) error) error
	// ListEscrows returns every escrow record
	ListEscrows(ctx context.Context) ([]Escrow, error)
}

// Minter credits token balances on the host chain
type Minter interface {
	Mint(ctx context.Context, token, account Address, amount uint64) error
}

var (
	_ Minter = (*MemoryStorage)(nil)
	_ Minter = (*LevelDBStorage)(nil)
)
