package relay

import (
	"context"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

// Host runs requester and solver instructions against an escrow program
// hosted by this process. Escrow confirmations produced by the program are
// relayed back to the hub chain.
type Host struct {
	program    *escrow.Program
	minter     escrow.Minter
	relay      *Relay
	chainID    uint64
	hubChainID uint64
	// source is the program's GMP address stamped on outgoing messages
	source [32]byte
	logger logger.Logger
}

func NewHost(program *escrow.Program, minter escrow.Minter, relay *Relay, chainID, hubChainID uint64, source [32]byte, logger logger.Logger) *Host {
	return &Host{
		program:    program,
		minter:     minter,
		relay:      relay,
		chainID:    chainID,
		hubChainID: hubChainID,
		source:     source,
		logger:     logger,
	}
}

// ChainID is the chain the hosted program runs on
func (h *Host) ChainID() uint64 { return h.chainID }

// CreateEscrow locks a deposit and relays the confirmation to the hub when
// the intent's requirements had arrived. A failed relay is logged; the
// escrow stays created.
func (h *Host) CreateEscrow(ctx context.Context, params escrow.CreateEscrowParams) (*gmp.EscrowConfirmation, error) {
	confirmation, err := h.program.CreateEscrow(ctx, params)
	if err != nil {
		return nil, err
	}
	h.logger.InfoWithChain(h.chainID, "Created escrow for intent %s (amount %d)", params.IntentID, params.Amount)
	if confirmation == nil {
		return nil, nil
	}

	payload := confirmation.Encode()
	err = h.relay.Deliver(ctx, Envelope{
		SrcChainID: h.chainID,
		SrcAddr:    h.source,
		DstChainID: h.hubChainID,
		Payload:    payload[:],
	})
	if err != nil {
		h.logger.ErrorWithChain(h.chainID, "Relaying escrow confirmation for intent %s failed: %v", params.IntentID, err)
	}
	return confirmation, nil
}

func (h *Host) Claim(ctx context.Context, intentID escrow.IntentID, signature []byte) error {
	if err := h.program.Claim(ctx, intentID, signature); err != nil {
		return err
	}
	h.logger.InfoWithChain(h.chainID, "Escrow for intent %s claimed with approval", intentID)
	return nil
}

func (h *Host) ClaimWithProof(ctx context.Context, intentID escrow.IntentID) error {
	if err := h.program.ClaimWithProof(ctx, intentID); err != nil {
		return err
	}
	h.logger.InfoWithChain(h.chainID, "Escrow for intent %s claimed with fulfillment proof", intentID)
	return nil
}

func (h *Host) Cancel(ctx context.Context, intentID escrow.IntentID, caller escrow.Address) error {
	if err := h.program.Cancel(ctx, intentID, caller); err != nil {
		return err
	}
	h.logger.InfoWithChain(h.chainID, "Escrow for intent %s cancelled by %s", intentID, caller)
	return nil
}

// Mint credits token to an account so it can fund escrows
func (h *Host) Mint(ctx context.Context, token, account escrow.Address, amount uint64) error {
	return h.minter.Mint(ctx, token, account, amount)
}

func (h *Host) Escrow(ctx context.Context, intentID escrow.IntentID) (*escrow.Escrow, error) {
	return h.program.Escrow(ctx, intentID)
}
