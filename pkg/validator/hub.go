package validator

import (
	"context"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// directionHubFulfillment labels hub fulfillment checks in the validation metrics
const directionHubFulfillment models.Direction = "inflow_fulfillment"

// ValidateHubFulfillment checks that a hub transaction delivered what an
// inflow intent desires, by its reserved solver, no later than the intent's
// expiry. Hub addresses are compared as given, without a registry lookup.
func (v *Validator) ValidateHubFulfillment(_ context.Context, intent *models.Intent, params *models.FulfillmentTransactionParams, hubKind chains.Kind) (res models.ValidationResult, err error) {
	start := v.now()
	defer func() { record(directionHubFulfillment, intent.ConnectedChainID, start, res, err) }()

	if params == nil {
		return v.invalid("Intent %s has no hub fulfillment", intent.IntentID), nil
	}
	if !params.Success {
		return v.invalid("Hub transaction %s was not successful", params.TxHash), nil
	}
	if !normalize.Equal(params.IntentID, intent.IntentID, normalize.IntentIDWidth) {
		return v.invalid("Hub transaction intent_id %s does not match intent %s", params.IntentID, intent.IntentID), nil
	}
	if params.Amount != intent.DesiredAmount {
		return v.invalid("Hub fulfillment amount %d does not match intent desired amount %d",
			params.Amount, intent.DesiredAmount), nil
	}
	if !normalize.MetadataEqual(params.TokenMetadata, intent.DesiredMetadata) {
		return v.invalid("Hub fulfillment token %s does not match intent desired metadata %s",
			params.TokenMetadata, intent.DesiredMetadata), nil
	}
	if intent.ReservedSolverAddr != nil && !normalize.AddressEqual(params.SolverAddr, *intent.ReservedSolverAddr, hubKind) {
		return v.invalid("Hub fulfillment solver %s does not match reserved solver %s",
			params.SolverAddr, *intent.ReservedSolverAddr), nil
	}
	if res, ok := v.checkTimestamp(intent, params); !ok {
		return res, nil
	}

	v.logger.Debug("Hub transaction %s fulfills intent %s", params.TxHash, intent.IntentID)
	return v.result(true, "Hub fulfillment validation successful"), nil
}

// checkTimestamp rejects a fulfillment without a block time or one included
// after the intent expired. A fulfillment at the expiry second is on time.
func (v *Validator) checkTimestamp(intent *models.Intent, params *models.FulfillmentTransactionParams) (models.ValidationResult, bool) {
	if params.Timestamp == 0 {
		return v.invalid("Transaction %s has no block timestamp", params.TxHash), false
	}
	if params.Timestamp > intent.ExpiryTime {
		return v.invalid("Transaction %s at %d is after intent expiry %d",
			params.TxHash, params.Timestamp, intent.ExpiryTime), false
	}
	return models.ValidationResult{}, true
}
