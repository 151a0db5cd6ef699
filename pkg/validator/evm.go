package validator

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/gmp-verifier/pkg/contracts"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// ExtractEvmFulfillmentParams reads the fulfillment fields of an EVM
// transaction. The solver fulfills with an ERC20 transfer whose calldata has
// the 32-byte intent id appended after the transfer arguments.
func ExtractEvmFulfillmentParams(tx models.EvmTransaction) (*models.FulfillmentTransactionParams, error) {
	input, err := hexutil.Decode(tx.Input)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction input %q: %w", tx.Input, err)
	}

	call, err := contracts.DecodeTransfer(input)
	if err != nil {
		return nil, err
	}
	if len(call.Trailing) < 32 {
		return nil, fmt.Errorf("insufficient calldata length: %d bytes, expected the intent_id after the transfer arguments", len(input))
	}
	if !call.Amount.IsUint64() {
		return nil, fmt.Errorf("amount %s exceeds u64::MAX (%d); Move contracts only support u64 amounts",
			call.Amount, uint64(math.MaxUint64))
	}

	return &models.FulfillmentTransactionParams{
		TxHash:        tx.Hash,
		Success:       tx.Success,
		IntentID:      hexutil.Encode(call.Trailing[:32]),
		RecipientAddr: strings.ToLower(call.To.Hex()),
		Amount:        call.Amount.Uint64(),
		SolverAddr:    strings.ToLower(tx.From),
		TokenMetadata: strings.ToLower(tx.To),
		Timestamp:     tx.Timestamp,
	}, nil
}
