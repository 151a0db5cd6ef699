package models

import "github.com/speedrun-hq/gmp-verifier/pkg/chains"

// Escrow represents collateral locked on a connected chain
type Escrow struct {
	EscrowID           string      `json:"escrow_id"`
	IntentID           string      `json:"intent_id"`
	ChainID            uint64      `json:"chain_id"`
	ChainKind          chains.Kind `json:"chain_type"`
	RequesterAddr      string      `json:"requester_addr"`
	OfferedMetadata    string      `json:"offered_metadata"`
	OfferedAmount      uint64      `json:"offered_amount"`
	DesiredMetadata    string      `json:"desired_metadata"`
	DesiredAmount      uint64      `json:"desired_amount"`
	ReservedSolverAddr *string     `json:"reserved_solver_addr,omitempty"`
	ExpiryTime         uint64      `json:"expiry_time"`
	Revocable          bool        `json:"revocable"`
	Timestamp          uint64      `json:"timestamp"`
}
