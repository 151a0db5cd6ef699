package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

const (
	hubChain    = 1
	escrowChain = 2
)

func addr(b byte) escrow.Address {
	var a escrow.Address
	a[31] = b
	return a
}

var (
	requester    = addr(0x01)
	solver       = addr(0x02)
	token        = addr(0x03)
	relayAccount = addr(0x04)
	hubSource    = addr(0x05)
	intentID     = escrow.IntentID(addr(0xaa))
)

func newEscrowHost(t *testing.T) (*escrow.MemoryStorage, *escrow.Program) {
	t.Helper()
	storage := escrow.NewMemoryStorage()
	program := escrow.NewProgram(storage)
	require.NoError(t, program.Initialize(context.Background(), escrow.InitializeParams{
		TrustedRelay:  relayAccount,
		TrustedSource: hubSource,
	}))
	require.NoError(t, storage.Mint(context.Background(), token, requester, 1000))
	return storage, program
}

func TestDeliverToEscrowProgram(t *testing.T) {
	ctx := context.Background()
	storage, program := newEscrowHost(t)

	r := New(&logger.EmptyLogger{})
	r.Register(escrowChain, NewEscrowEndpoint(program, relayAccount))
	assert.True(t, r.HasRoute(escrowChain))
	assert.False(t, r.HasRoute(hubChain))

	requirements := (&gmp.IntentRequirements{
		IntentID:       intentID,
		RequesterAddr:  requester,
		AmountRequired: 400,
		TokenAddr:      token,
		SolverAddr:     solver,
		Expiry:         2_000_000_000,
	}).Encode()
	require.NoError(t, r.Deliver(ctx, Envelope{SrcChainID: hubChain, SrcAddr: hubSource, DstChainID: escrowChain, Payload: requirements[:]}))

	confirmation, err := program.CreateEscrow(ctx, escrow.CreateEscrowParams{
		IntentID:       intentID,
		Amount:         400,
		Requester:      requester,
		Token:          token,
		ReservedSolver: solver,
	})
	require.NoError(t, err)
	require.NotNil(t, confirmation)

	proof := (&gmp.FulfillmentProof{
		IntentID:        intentID,
		SolverAddr:      solver,
		AmountFulfilled: 400,
		Timestamp:       1_700_000_000,
	}).Encode()
	require.NoError(t, r.Deliver(ctx, Envelope{SrcChainID: hubChain, SrcAddr: hubSource, DstChainID: escrowChain, Payload: proof[:]}))

	assert.Equal(t, uint64(400), storage.Balance(token, solver))
	e, err := program.Escrow(ctx, intentID)
	require.NoError(t, err)
	assert.True(t, e.IsClaimed)

	// a replayed proof is rejected by the program
	err = r.Deliver(ctx, Envelope{SrcChainID: hubChain, SrcAddr: hubSource, DstChainID: escrowChain, Payload: proof[:]})
	require.Error(t, err)
	assert.True(t, errors.Is(err, escrow.ErrAlreadyFulfilled))
}

func TestDeliverErrors(t *testing.T) {
	ctx := context.Background()
	_, program := newEscrowHost(t)
	r := New(&logger.EmptyLogger{})
	r.Register(escrowChain, NewEscrowEndpoint(program, relayAccount))

	t.Run("empty payload", func(t *testing.T) {
		err := r.Deliver(ctx, Envelope{DstChainID: escrowChain})
		var lengthErr *gmp.InvalidLengthError
		require.True(t, errors.As(err, &lengthErr))
		assert.Equal(t, 1, lengthErr.Expected)
	})

	t.Run("truncated payload", func(t *testing.T) {
		proof := (&gmp.FulfillmentProof{IntentID: intentID}).Encode()
		err := r.Deliver(ctx, Envelope{DstChainID: escrowChain, Payload: proof[:80]})
		var lengthErr *gmp.InvalidLengthError
		require.True(t, errors.As(err, &lengthErr))
		assert.Equal(t, gmp.FulfillmentProofSize, lengthErr.Expected)
	})

	t.Run("unknown type", func(t *testing.T) {
		err := r.Deliver(ctx, Envelope{DstChainID: escrowChain, Payload: []byte{0x09}})
		var unknown gmp.UnknownMessageTypeError
		assert.True(t, errors.As(err, &unknown))
	})

	t.Run("no route", func(t *testing.T) {
		proof := (&gmp.FulfillmentProof{IntentID: intentID}).Encode()
		err := r.Deliver(ctx, Envelope{DstChainID: 99, Payload: proof[:]})
		assert.True(t, errors.Is(err, ErrNoRoute))
	})

	t.Run("confirmation not accepted by escrow host", func(t *testing.T) {
		msg := (&gmp.EscrowConfirmation{IntentID: intentID}).Encode()
		err := r.Deliver(ctx, Envelope{DstChainID: escrowChain, Payload: msg[:]})
		assert.True(t, errors.Is(err, ErrUnsupportedMessage))
	})

	t.Run("untrusted source", func(t *testing.T) {
		proof := (&gmp.FulfillmentProof{IntentID: intentID}).Encode()
		err := r.Deliver(ctx, Envelope{SrcAddr: addr(0x66), DstChainID: escrowChain, Payload: proof[:]})
		assert.True(t, errors.Is(err, escrow.ErrUnauthorizedGmpSource))
	})
}

func TestEndpointFunc(t *testing.T) {
	var got gmp.MessageType
	r := New(&logger.EmptyLogger{})
	r.Register(hubChain, EndpointFunc(func(_ context.Context, msgType gmp.MessageType, _ [32]byte, _ []byte) error {
		got = msgType
		return nil
	}))

	msg := (&gmp.EscrowConfirmation{IntentID: intentID}).Encode()
	require.NoError(t, r.Deliver(context.Background(), Envelope{SrcChainID: escrowChain, DstChainID: hubChain, Payload: msg[:]}))
	assert.Equal(t, gmp.TypeEscrowConfirmation, got)
}
