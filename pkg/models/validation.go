package models

import "github.com/speedrun-hq/gmp-verifier/pkg/chains"

// ValidationResult is the outcome of a business-rule validation
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message"`
	Timestamp uint64 `json:"timestamp"`
}

// Approval is a signed authorization to release an escrow
type Approval struct {
	IntentID      string      `json:"intent_id"`
	EscrowID      string      `json:"escrow_id"`
	ChainID       uint64      `json:"chain_id"`
	ChainKind     chains.Kind `json:"chain_type"`
	ApprovalValue uint64      `json:"approval_value"`
	Signature     string      `json:"signature"`
	FulfillmentTx string      `json:"fulfillment_tx"`
	Timestamp     uint64      `json:"timestamp"`
}
