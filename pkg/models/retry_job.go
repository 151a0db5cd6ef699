package models

import (
	"time"
)

// ValidationJob is a unit of work for the verifier worker pool
type ValidationJob struct {
	Direction Direction
	IntentID  string
	// Escrow is set for inflow jobs
	Escrow *Escrow
	// Fulfillment is the hub fulfillment of an inflow job or the
	// connected-chain transaction of an outflow job
	Fulfillment *FulfillmentTransactionParams
	ChainID     uint64
	// Attempt counts previous failed runs of the job
	Attempt int
}

// RetryJob represents a validation that needs to be retried
type RetryJob struct {
	Job         ValidationJob
	RetryCount  int
	NextAttempt time.Time
	ErrorType   string // Type of error that caused the retry
}
