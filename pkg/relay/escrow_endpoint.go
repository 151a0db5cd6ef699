package relay

import (
	"context"
	"fmt"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
)

// EscrowEndpoint feeds payloads into an escrow program, calling it as the
// program's trusted relay account
type EscrowEndpoint struct {
	program *escrow.Program
	account escrow.Address
}

func NewEscrowEndpoint(program *escrow.Program, relayAccount escrow.Address) *EscrowEndpoint {
	return &EscrowEndpoint{program: program, account: relayAccount}
}

func (e *EscrowEndpoint) Receive(ctx context.Context, msgType gmp.MessageType, srcAddr [32]byte, payload []byte) error {
	switch msgType {
	case gmp.TypeIntentRequirements:
		return e.program.LzReceiveRequirements(ctx, e.account, srcAddr, payload)
	case gmp.TypeFulfillmentProof:
		return e.program.LzReceiveFulfillmentProof(ctx, e.account, srcAddr, payload)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMessage, msgType)
}
