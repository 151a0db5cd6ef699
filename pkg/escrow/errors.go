package escrow

import "fmt"

// Error is an escrow guard violation. The numeric values are the stable
// codes surfaced at the chain boundary and must never be reordered.
type Error uint32

const (
	ErrEscrowAlreadyClaimed Error = iota
	ErrEscrowDoesNotExist
	ErrNoDeposit
	ErrUnauthorizedRequester
	ErrInvalidSignature
	ErrUnauthorizedApprover
	ErrEscrowExpired
	ErrEscrowNotExpiredYet
	ErrInvalidAmount
	ErrInvalidSolver
	ErrInvalidInstructionData
	ErrAccountNotInitialized
	ErrInvalidPDA
	ErrInvalidAccountOwner
	ErrEscrowAlreadyExists
	ErrInvalidGmpMessage
	ErrRequirementsNotFound
	ErrRequirementsAlreadyExist
	ErrAmountMismatch
	ErrTokenMismatch
	ErrEscrowAlreadyCreated
	ErrAlreadyFulfilled
	ErrUnauthorizedGmpSource
	ErrAlreadyInitialized
	ErrProofNotReceived
)

var errorMessages = map[Error]string{
	ErrEscrowAlreadyClaimed:     "escrow already claimed",
	ErrEscrowDoesNotExist:       "escrow does not exist",
	ErrNoDeposit:                "no deposit",
	ErrUnauthorizedRequester:    "unauthorized requester",
	ErrInvalidSignature:         "invalid signature",
	ErrUnauthorizedApprover:     "unauthorized approver",
	ErrEscrowExpired:            "escrow expired",
	ErrEscrowNotExpiredYet:      "escrow not expired yet",
	ErrInvalidAmount:            "invalid amount",
	ErrInvalidSolver:            "invalid solver",
	ErrInvalidInstructionData:   "invalid instruction data",
	ErrAccountNotInitialized:    "account not initialized",
	ErrInvalidPDA:               "invalid program derived address",
	ErrInvalidAccountOwner:      "invalid account owner",
	ErrEscrowAlreadyExists:      "escrow already exists",
	ErrInvalidGmpMessage:        "invalid gmp message",
	ErrRequirementsNotFound:     "requirements not found",
	ErrRequirementsAlreadyExist: "requirements already exist",
	ErrAmountMismatch:           "amount mismatch",
	ErrTokenMismatch:            "token mismatch",
	ErrEscrowAlreadyCreated:     "escrow already created",
	ErrAlreadyFulfilled:         "already fulfilled",
	ErrUnauthorizedGmpSource:    "unauthorized gmp source",
	ErrAlreadyInitialized:       "already initialized",
	ErrProofNotReceived:         "fulfillment proof not received",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("escrow error %d", uint32(e))
}

// Code returns the numeric error code
func (e Error) Code() uint32 {
	return uint32(e)
}
