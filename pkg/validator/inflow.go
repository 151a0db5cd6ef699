package validator

import (
	"context"

	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// ValidateInflow checks that an escrow on a connected chain locks what the
// intent offers. The first failing check determines the message.
func (v *Validator) ValidateInflow(ctx context.Context, intent *models.Intent, escrow *models.Escrow) (res models.ValidationResult, err error) {
	start := v.now()
	defer func() { record(models.Inflow, intent.ConnectedChainID, start, res, err) }()

	if intent.ConnectedChainID == nil {
		return v.invalid("Intent %s has no connected_chain_id", intent.IntentID), nil
	}
	if escrow.OfferedAmount != intent.OfferedAmount {
		return v.invalid("Escrow offered amount %d does not match intent offered amount %d",
			escrow.OfferedAmount, intent.OfferedAmount), nil
	}
	if !normalize.MetadataEqual(escrow.OfferedMetadata, intent.OfferedMetadata) {
		return v.invalid("Escrow offered metadata %s does not match intent offered metadata %s",
			escrow.OfferedMetadata, intent.OfferedMetadata), nil
	}
	if escrow.ChainID != *intent.ConnectedChainID {
		return v.invalid("Escrow chain_id %d does not match intent connected_chain_id %d",
			escrow.ChainID, *intent.ConnectedChainID), nil
	}
	if escrow.DesiredAmount != 0 {
		return v.invalid("Escrow desired amount must be 0, got %d", escrow.DesiredAmount), nil
	}

	res, err = v.checkInflowSolver(ctx, intent, escrow)
	if err != nil || !res.Valid {
		return res, err
	}

	v.logger.DebugWithChain(escrow.ChainID, "Escrow %s satisfies intent %s", escrow.EscrowID, intent.IntentID)
	return v.result(true, "Request-intent fulfillment validation successful"), nil
}

func (v *Validator) checkInflowSolver(ctx context.Context, intent *models.Intent, escrow *models.Escrow) (models.ValidationResult, error) {
	switch {
	case intent.ReservedSolverAddr == nil && escrow.ReservedSolverAddr == nil:
		return v.result(true, "No solver reserved"), nil
	case intent.ReservedSolverAddr == nil || escrow.ReservedSolverAddr == nil:
		return v.invalid("Solver reservation mismatch: intent reserved solver %s, escrow reserved solver %s",
			optional(intent.ReservedSolverAddr), optional(escrow.ReservedSolverAddr)), nil
	}

	addr, ok, err := v.resolver.Resolve(ctx, *intent.ReservedSolverAddr, escrow.ChainKind)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if !ok {
		return v.invalid("Reserved solver %s has no %s address in the solver registry",
			*intent.ReservedSolverAddr, escrow.ChainKind), nil
	}
	if !normalize.AddressEqual(addr, *escrow.ReservedSolverAddr, escrow.ChainKind) {
		return v.invalid("Escrow reserved solver %s does not match registered solver address %s",
			*escrow.ReservedSolverAddr, addr), nil
	}
	return v.result(true, "Reserved solver matches"), nil
}
