package validator

import (
	"context"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// ValidateOutflow checks that a transaction on a connected chain of the given
// kind delivered what the intent desires to the requester.
func (v *Validator) ValidateOutflow(ctx context.Context, intent *models.Intent, params *models.FulfillmentTransactionParams, kind chains.Kind) (res models.ValidationResult, err error) {
	start := v.now()
	defer func() { record(models.Outflow, intent.ConnectedChainID, start, res, err) }()

	if intent.ConnectedChainID == nil {
		return v.invalid("Intent %s has no connected_chain_id", intent.IntentID), nil
	}
	if !params.Success {
		return v.invalid("Transaction %s was not successful", params.TxHash), nil
	}
	if res, ok := v.checkTimestamp(intent, params); !ok {
		return res, nil
	}
	if !normalize.Equal(params.IntentID, intent.IntentID, normalize.IntentIDWidth) {
		return v.invalid("Transaction intent_id %s does not match intent %s", params.IntentID, intent.IntentID), nil
	}
	if intent.RequesterAddrConnectedChain == nil {
		return v.invalid("Intent %s has no requester address on the connected chain", intent.IntentID), nil
	}
	if !normalize.AddressEqual(params.RecipientAddr, *intent.RequesterAddrConnectedChain, kind) {
		return v.invalid("Transaction recipient %s does not match intent requester %s",
			params.RecipientAddr, *intent.RequesterAddrConnectedChain), nil
	}
	if params.Amount != intent.DesiredAmount {
		return v.invalid("Transaction amount %d does not match intent desired amount %d",
			params.Amount, intent.DesiredAmount), nil
	}
	if !normalize.MetadataEqual(params.TokenMetadata, intent.DesiredMetadata) {
		return v.invalid("Transaction token %s does not match intent desired metadata %s",
			params.TokenMetadata, intent.DesiredMetadata), nil
	}

	if intent.ReservedSolverAddr == nil {
		return v.invalid("Intent %s has no reserved solver", intent.IntentID), nil
	}
	addr, ok, err := v.resolver.Resolve(ctx, *intent.ReservedSolverAddr, kind)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if !ok {
		return v.invalid("Reserved solver %s has no %s address in the solver registry",
			*intent.ReservedSolverAddr, kind), nil
	}
	if !normalize.AddressEqual(params.SolverAddr, addr, kind) {
		return v.invalid("Transaction solver %s does not match registered solver address %s",
			params.SolverAddr, addr), nil
	}

	v.logger.DebugWithChain(*intent.ConnectedChainID, "Transaction %s fulfills intent %s", params.TxHash, intent.IntentID)
	return v.result(true, "Outflow fulfillment validation successful"), nil
}
