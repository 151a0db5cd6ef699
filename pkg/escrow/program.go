// Package escrow implements the escrow lifecycle shared by every chain
// runtime that hosts it: create, then either claim or cancel, plus intake of
// trusted GMP requirements and fulfillment proofs.
//
// The guard logic lives in Program and runs against a ChainStorage adapter,
// which stands in for the host runtime's account model and its
// all-or-nothing instruction semantics.
package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/signing"
)

// Program executes escrow instructions
type Program struct {
	storage ChainStorage
	now     func() time.Time
}

// Option configures a Program
type Option func(*Program)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(p *Program) {
		p.now = now
	}
}

// NewProgram creates a Program over storage
func NewProgram(storage ChainStorage, opts ...Option) *Program {
	p := &Program{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InitializeParams configures the program once
type InitializeParams struct {
	// Approver is the Ed25519 public key or 20-byte EVM address allowed to
	// sign claims. Empty disables signature claims.
	Approver []byte
	Scheme   chains.SignatureScheme
	// TrustedRelay is the only caller accepted by the LzReceive instructions
	TrustedRelay Address
	// TrustedSource, when set, must match the source address of GMP messages
	TrustedSource Address
	ReleaseMode   ReleaseMode
}

// CreateEscrowParams are the arguments of CreateEscrow
type CreateEscrowParams struct {
	IntentID       IntentID
	Amount         uint64
	Requester      Address
	Token          Address
	ReservedSolver Address
	// ExpiryDuration in seconds; non-positive values use DefaultExpiryDuration
	ExpiryDuration int64
}

// Initialize writes the program configuration
func (p *Program) Initialize(ctx context.Context, params InitializeParams) error {
	if len(params.Approver) > 0 {
		switch params.Scheme {
		case chains.SchemeEd25519:
			if len(params.Approver) != 32 {
				return ErrInvalidInstructionData
			}
		case chains.SchemeEcdsaPersonal:
			if len(params.Approver) != 20 {
				return ErrInvalidInstructionData
			}
		default:
			return ErrInvalidInstructionData
		}
	}

	return p.storage.Update(ctx, func(l Ledger) error {
		_, err := l.LoadConfig()
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		return l.StoreConfig(&ProgramConfig{
			Approver:      append([]byte(nil), params.Approver...),
			Scheme:        params.Scheme,
			TrustedRelay:  params.TrustedRelay,
			TrustedSource: params.TrustedSource,
			ReleaseMode:   params.ReleaseMode,
		})
	})
}

// CreateEscrow locks the requester's deposit. When requirements were received
// for the intent, it returns the EscrowConfirmation the host sends back to
// the hub; otherwise the returned message is nil.
func (p *Program) CreateEscrow(ctx context.Context, params CreateEscrowParams) (*gmp.EscrowConfirmation, error) {
	var confirmation *gmp.EscrowConfirmation

	err := p.storage.Update(ctx, func(l Ledger) error {
		if _, err := loadConfig(l); err != nil {
			return err
		}
		if params.Amount == 0 {
			return ErrInvalidAmount
		}
		if params.ReservedSolver.IsZero() {
			return ErrInvalidSolver
		}

		requirements, err := l.LoadRequirements(params.IntentID)
		switch {
		case errors.Is(err, ErrNotFound):
			requirements = nil
		case err != nil:
			return err
		default:
			if requirements.EscrowCreated {
				return ErrEscrowAlreadyCreated
			}
			if params.Amount < requirements.AmountRequired {
				return ErrAmountMismatch
			}
			if params.Token != requirements.TokenAddr {
				return ErrTokenMismatch
			}
		}

		if _, err := l.LoadEscrow(params.IntentID); err == nil {
			return ErrEscrowAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		vault := VaultAddress(params.IntentID)
		if err := l.Transfer(params.Token, params.Requester, vault, params.Amount); err != nil {
			return err
		}

		duration := params.ExpiryDuration
		if duration <= 0 {
			duration = DefaultExpiryDuration
		}
		e := &Escrow{
			IntentID:       params.IntentID,
			Requester:      params.Requester,
			Token:          params.Token,
			Amount:         params.Amount,
			ReservedSolver: params.ReservedSolver,
			Expiry:         p.now().Unix() + duration,
		}
		if err := l.StoreEscrow(e); err != nil {
			return err
		}

		if requirements != nil {
			requirements.EscrowCreated = true
			if err := l.StoreRequirements(requirements); err != nil {
				return err
			}
			confirmation = &gmp.EscrowConfirmation{
				IntentID:       params.IntentID,
				EscrowID:       vault,
				AmountEscrowed: params.Amount,
				TokenAddr:      params.Token,
				CreatorAddr:    params.Requester,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

// Claim releases the deposit to the reserved solver on a valid approver
// signature over the intent id. Claiming at exactly the expiry is allowed.
func (p *Program) Claim(ctx context.Context, intentID IntentID, signature []byte) error {
	return p.storage.Update(ctx, func(l Ledger) error {
		cfg, err := loadConfig(l)
		if err != nil {
			return err
		}
		e, err := p.claimableEscrow(l, intentID)
		if err != nil {
			return err
		}
		if len(cfg.Approver) == 0 {
			return ErrUnauthorizedApprover
		}
		if err := signing.Verify(cfg.Scheme, cfg.Approver, [32]byte(intentID), signature); err != nil {
			return ErrInvalidSignature
		}
		return release(l, e, e.ReservedSolver)
	})
}

// ClaimWithProof releases the deposit to the solver named in a previously
// received fulfillment proof. Only used in ReleaseOnClaim mode.
func (p *Program) ClaimWithProof(ctx context.Context, intentID IntentID) error {
	return p.storage.Update(ctx, func(l Ledger) error {
		if _, err := loadConfig(l); err != nil {
			return err
		}
		requirements, err := l.LoadRequirements(intentID)
		if errors.Is(err, ErrNotFound) {
			return ErrRequirementsNotFound
		}
		if err != nil {
			return err
		}
		if !requirements.Fulfilled {
			return ErrProofNotReceived
		}
		if requirements.ProofConsumed {
			return ErrAlreadyFulfilled
		}

		e, err := p.claimableEscrow(l, intentID)
		if err != nil {
			return err
		}
		if err := release(l, e, requirements.FulfilledBy); err != nil {
			return err
		}
		requirements.ProofConsumed = true
		return l.StoreRequirements(requirements)
	})
}

// Cancel refunds the requester. Only allowed strictly after expiry.
func (p *Program) Cancel(ctx context.Context, intentID IntentID, caller Address) error {
	return p.storage.Update(ctx, func(l Ledger) error {
		if _, err := loadConfig(l); err != nil {
			return err
		}
		e, err := loadEscrow(l, intentID)
		if err != nil {
			return err
		}
		if e.IsClaimed {
			return ErrEscrowAlreadyClaimed
		}
		if e.Amount == 0 {
			return ErrNoDeposit
		}
		if caller != e.Requester {
			return ErrUnauthorizedRequester
		}
		if p.now().Unix() <= e.Expiry {
			return ErrEscrowNotExpiredYet
		}
		return release(l, e, e.Requester)
	})
}

// LzReceiveRequirements stores IntentRequirements delivered by the trusted
// relay. Requirements are write-once.
func (p *Program) LzReceiveRequirements(ctx context.Context, caller, srcAddr Address, payload []byte) error {
	return p.storage.Update(ctx, func(l Ledger) error {
		cfg, err := loadConfig(l)
		if err != nil {
			return err
		}
		if err := checkGmpSource(cfg, caller, srcAddr); err != nil {
			return err
		}
		msg, err := gmp.DecodeIntentRequirements(payload)
		if err != nil {
			return ErrInvalidGmpMessage
		}

		intentID := IntentID(msg.IntentID)
		if _, err := l.LoadRequirements(intentID); err == nil {
			return ErrRequirementsAlreadyExist
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		return l.StoreRequirements(&Requirements{
			IntentID:       intentID,
			RequesterAddr:  msg.RequesterAddr,
			AmountRequired: msg.AmountRequired,
			TokenAddr:      msg.TokenAddr,
			SolverAddr:     msg.SolverAddr,
			Expiry:         msg.Expiry,
		})
	})
}

// LzReceiveFulfillmentProof accepts a FulfillmentProof from the trusted
// relay. In ReleaseOnProof mode the deposit is paid to the proof's solver in
// the same instruction.
func (p *Program) LzReceiveFulfillmentProof(ctx context.Context, caller, srcAddr Address, payload []byte) error {
	return p.storage.Update(ctx, func(l Ledger) error {
		cfg, err := loadConfig(l)
		if err != nil {
			return err
		}
		if err := checkGmpSource(cfg, caller, srcAddr); err != nil {
			return err
		}
		proof, err := gmp.DecodeFulfillmentProof(payload)
		if err != nil {
			return ErrInvalidGmpMessage
		}

		intentID := IntentID(proof.IntentID)
		requirements, err := l.LoadRequirements(intentID)
		if errors.Is(err, ErrNotFound) {
			return ErrRequirementsNotFound
		}
		if err != nil {
			return err
		}
		if requirements.Fulfilled {
			return ErrAlreadyFulfilled
		}

		requirements.Fulfilled = true
		requirements.FulfilledBy = proof.SolverAddr
		requirements.AmountFulfilled = proof.AmountFulfilled

		if cfg.ReleaseMode == ReleaseOnClaim {
			return l.StoreRequirements(requirements)
		}

		e, err := loadEscrow(l, intentID)
		if err != nil {
			return err
		}
		if e.IntentID != intentID {
			return ErrEscrowDoesNotExist
		}
		if e.IsClaimed {
			return ErrEscrowAlreadyClaimed
		}
		if e.Amount == 0 {
			return ErrNoDeposit
		}
		if err := release(l, e, proof.SolverAddr); err != nil {
			return err
		}
		requirements.ProofConsumed = true
		return l.StoreRequirements(requirements)
	})
}

// Escrow returns the escrow for an intent
func (p *Program) Escrow(ctx context.Context, intentID IntentID) (*Escrow, error) {
	var e *Escrow
	err := p.storage.View(ctx, func(l Ledger) error {
		var err error
		e, err = loadEscrow(l, intentID)
		return err
	})
	return e, err
}

// Requirements returns the stored requirements for an intent
func (p *Program) Requirements(ctx context.Context, intentID IntentID) (*Requirements, error) {
	var r *Requirements
	err := p.storage.View(ctx, func(l Ledger) error {
		var err error
		r, err = l.LoadRequirements(intentID)
		if errors.Is(err, ErrNotFound) {
			return ErrRequirementsNotFound
		}
		return err
	})
	return r, err
}

// Escrows lists every escrow held by the program
func (p *Program) Escrows(ctx context.Context) ([]Escrow, error) {
	return p.storage.ListEscrows(ctx)
}

func (p *Program) claimableEscrow(l Ledger, intentID IntentID) (*Escrow, error) {
	e, err := loadEscrow(l, intentID)
	if err != nil {
		return nil, err
	}
	if e.IsClaimed {
		return nil, ErrEscrowAlreadyClaimed
	}
	if e.Amount == 0 {
		return nil, ErrNoDeposit
	}
	if p.now().Unix() > e.Expiry {
		return nil, ErrEscrowExpired
	}
	return e, nil
}

func release(l Ledger, e *Escrow, to Address) error {
	if err := l.Transfer(e.Token, VaultAddress(e.IntentID), to, e.Amount); err != nil {
		return err
	}
	e.IsClaimed = true
	e.Amount = 0
	return l.StoreEscrow(e)
}

func loadConfig(l Ledger) (*ProgramConfig, error) {
	cfg, err := l.LoadConfig()
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAccountNotInitialized
	}
	return cfg, err
}

func loadEscrow(l Ledger, intentID IntentID) (*Escrow, error) {
	e, err := l.LoadEscrow(intentID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrEscrowDoesNotExist
	}
	return e, err
}

func checkGmpSource(cfg *ProgramConfig, caller, srcAddr Address) error {
	if caller != cfg.TrustedRelay {
		return ErrUnauthorizedGmpSource
	}
	if !cfg.TrustedSource.IsZero() && srcAddr != cfg.TrustedSource {
		return ErrUnauthorizedGmpSource
	}
	return nil
}
