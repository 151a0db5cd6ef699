package models

// Direction is the leg of an intent that needs verification
type Direction string

const (
	// Inflow intents escrow on a connected chain and pay out on the hub
	Inflow Direction = "inflow"
	// Outflow intents escrow on the hub and pay out on a connected chain
	Outflow Direction = "outflow"
)

// Intent represents a requester's offer published on the hub chain
type Intent struct {
	IntentID                    string    `json:"intent_id"`
	Direction                   Direction `json:"direction"`
	RequesterAddr               string    `json:"requester_addr"`
	RequesterAddrConnectedChain *string   `json:"requester_addr_connected_chain,omitempty"`
	ReservedSolverAddr          *string   `json:"reserved_solver_addr,omitempty"`
	OfferedMetadata             string    `json:"offered_metadata"`
	OfferedAmount               uint64    `json:"offered_amount"`
	DesiredMetadata             string    `json:"desired_metadata"`
	DesiredAmount               uint64    `json:"desired_amount"`
	ExpiryTime                  uint64    `json:"expiry_time"`
	Revocable                   bool      `json:"revocable"`
	ConnectedChainID            *uint64   `json:"connected_chain_id,omitempty"`
	ReadyOnConnectedChain       bool      `json:"ready_on_connected_chain"`
	EscrowConfirmed             bool      `json:"escrow_confirmed"`
	Timestamp                   uint64    `json:"timestamp"`
}
