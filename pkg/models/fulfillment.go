package models

// FulfillmentTransactionParams are the fields of a fulfillment transaction
// that the validator compares against the intent. Outflow fulfillments are
// read from a connected chain, inflow fulfillments from the hub.
type FulfillmentTransactionParams struct {
	TxHash        string `json:"tx_hash"`
	Success       bool   `json:"success"`
	IntentID      string `json:"intent_id"`
	RecipientAddr string `json:"recipient_addr"`
	Amount        uint64 `json:"amount"`
	SolverAddr    string `json:"solver_addr"`
	TokenMetadata string `json:"token_metadata"`
	// Timestamp is the unix time of the block that included the transaction
	Timestamp uint64 `json:"timestamp"`
}

// EvmTransaction is a fetched EVM transaction with its receipt status
type EvmTransaction struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Input     string `json:"input"`
	Success   bool   `json:"success"`
	Timestamp uint64 `json:"timestamp"`
}
