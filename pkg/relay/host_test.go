package relay

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/signing"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
)

var programSource = addr(0x07)

type hostFixture struct {
	host    *Host
	relay   *Relay
	cache   *tracker.EventCache
	storage *escrow.MemoryStorage
	signer  *signing.Ed25519Signer
	clock   *time.Time
}

func newHostFixture(t *testing.T, mode escrow.ReleaseMode) *hostFixture {
	t.Helper()
	ctx := context.Background()
	log := &logger.EmptyLogger{}

	signer, err := signing.NewEd25519Signer(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)

	clock := time.Unix(1_700_000_000, 0)
	storage := escrow.NewMemoryStorage()
	program := escrow.NewProgram(storage, escrow.WithClock(func() time.Time { return clock }))
	require.NoError(t, program.Initialize(ctx, escrow.InitializeParams{
		Approver:      signer.PublicKey(),
		Scheme:        chains.SchemeEd25519,
		TrustedRelay:  relayAccount,
		TrustedSource: hubSource,
		ReleaseMode:   mode,
	}))

	cache := tracker.NewEventCache()
	_, err = cache.AddIntent(models.Intent{IntentID: intentID.String(), Direction: models.Inflow})
	require.NoError(t, err)

	r := New(log)
	r.Register(escrowChain, NewEscrowEndpoint(program, relayAccount))
	r.Register(hubChain, NewHubEndpoint(cache, log, programSource))

	return &hostFixture{
		host:    NewHost(program, storage, r, escrowChain, hubChain, programSource, log),
		relay:   r,
		cache:   cache,
		storage: storage,
		signer:  signer,
		clock:   &clock,
	}
}

func (f *hostFixture) deliverRequirements(t *testing.T, id escrow.IntentID) {
	t.Helper()
	msg := (&gmp.IntentRequirements{
		IntentID:       id,
		RequesterAddr:  requester,
		AmountRequired: 400,
		TokenAddr:      token,
		SolverAddr:     solver,
		Expiry:         2_000_000_000,
	}).Encode()
	require.NoError(t, f.relay.Deliver(context.Background(), Envelope{SrcChainID: hubChain, SrcAddr: hubSource, DstChainID: escrowChain, Payload: msg[:]}))
}

func createParams(id escrow.IntentID) escrow.CreateEscrowParams {
	return escrow.CreateEscrowParams{
		IntentID:       id,
		Amount:         400,
		Requester:      requester,
		Token:          token,
		ReservedSolver: solver,
	}
}

func TestHostRelaysEscrowConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newHostFixture(t, escrow.ReleaseOnProof)
	require.NoError(t, f.host.Mint(ctx, token, requester, 1000))
	f.deliverRequirements(t, intentID)

	confirmation, err := f.host.CreateEscrow(ctx, createParams(intentID))
	require.NoError(t, err)
	require.NotNil(t, confirmation)
	assert.Equal(t, uint64(400), confirmation.AmountEscrowed)
	assert.Equal(t, [32]byte(requester), confirmation.CreatorAddr)

	intent, ok := f.cache.Intent(intentID.String())
	require.True(t, ok)
	assert.True(t, intent.EscrowConfirmed)
	assert.Equal(t, uint64(600), f.storage.Balance(token, requester))

	// without requirements there is nothing to confirm
	other := escrow.IntentID(addr(0xab))
	confirmation, err = f.host.CreateEscrow(ctx, createParams(other))
	require.NoError(t, err)
	assert.Nil(t, confirmation)

	_, err = f.host.CreateEscrow(ctx, createParams(intentID))
	assert.ErrorIs(t, err, escrow.ErrEscrowAlreadyCreated)
}

func TestHostConfirmationForUntrackedIntent(t *testing.T) {
	ctx := context.Background()
	f := newHostFixture(t, escrow.ReleaseOnProof)
	require.NoError(t, f.host.Mint(ctx, token, requester, 1000))
	f.cache.Remove(intentID.String())
	f.deliverRequirements(t, intentID)

	// the escrow is created even though the hub rejected the confirmation
	confirmation, err := f.host.CreateEscrow(ctx, createParams(intentID))
	require.NoError(t, err)
	require.NotNil(t, confirmation)
	held, err := f.host.Escrow(ctx, intentID)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), held.Amount)
}

func TestHubEndpointRejects(t *testing.T) {
	ctx := context.Background()
	cache := tracker.NewEventCache()
	endpoint := NewHubEndpoint(cache, &logger.EmptyLogger{}, programSource)
	msg := (&gmp.EscrowConfirmation{IntentID: intentID}).Encode()

	err := endpoint.Receive(ctx, gmp.TypeEscrowConfirmation, addr(0x66), msg[:])
	assert.ErrorIs(t, err, ErrUntrustedSource)

	err = endpoint.Receive(ctx, gmp.TypeEscrowConfirmation, programSource, msg[:])
	assert.ErrorIs(t, err, ErrUnknownIntent)

	proof := (&gmp.FulfillmentProof{IntentID: intentID}).Encode()
	err = endpoint.Receive(ctx, gmp.TypeFulfillmentProof, programSource, proof[:])
	assert.ErrorIs(t, err, ErrUnsupportedMessage)
}

func TestHostClaim(t *testing.T) {
	ctx := context.Background()
	f := newHostFixture(t, escrow.ReleaseOnProof)
	require.NoError(t, f.host.Mint(ctx, token, requester, 1000))
	_, err := f.host.CreateEscrow(ctx, createParams(intentID))
	require.NoError(t, err)

	assert.ErrorIs(t, f.host.Claim(ctx, intentID, make([]byte, ed25519.SignatureSize)), escrow.ErrInvalidSignature)

	sig, err := f.signer.Sign(intentID)
	require.NoError(t, err)
	require.NoError(t, f.host.Claim(ctx, intentID, sig))
	assert.Equal(t, uint64(400), f.storage.Balance(token, solver))
}

func TestHostClaimWithProof(t *testing.T) {
	ctx := context.Background()
	f := newHostFixture(t, escrow.ReleaseOnClaim)
	require.NoError(t, f.host.Mint(ctx, token, requester, 1000))
	f.deliverRequirements(t, intentID)
	_, err := f.host.CreateEscrow(ctx, createParams(intentID))
	require.NoError(t, err)

	assert.ErrorIs(t, f.host.ClaimWithProof(ctx, intentID), escrow.ErrProofNotReceived)

	proof := (&gmp.FulfillmentProof{IntentID: intentID, SolverAddr: solver, AmountFulfilled: 400, Timestamp: 1_700_000_010}).Encode()
	require.NoError(t, f.relay.Deliver(ctx, Envelope{SrcChainID: hubChain, SrcAddr: hubSource, DstChainID: escrowChain, Payload: proof[:]}))
	// the proof alone does not pay out in claim mode
	assert.Equal(t, uint64(0), f.storage.Balance(token, solver))

	require.NoError(t, f.host.ClaimWithProof(ctx, intentID))
	assert.Equal(t, uint64(400), f.storage.Balance(token, solver))
	assert.ErrorIs(t, f.host.ClaimWithProof(ctx, intentID), escrow.ErrAlreadyFulfilled)
}

func TestHostCancel(t *testing.T) {
	ctx := context.Background()
	f := newHostFixture(t, escrow.ReleaseOnProof)
	require.NoError(t, f.host.Mint(ctx, token, requester, 1000))
	_, err := f.host.CreateEscrow(ctx, createParams(intentID))
	require.NoError(t, err)

	assert.ErrorIs(t, f.host.Cancel(ctx, intentID, requester), escrow.ErrEscrowNotExpiredYet)

	*f.clock = f.clock.Add(time.Duration(escrow.DefaultExpiryDuration+1) * time.Second)
	assert.ErrorIs(t, f.host.Cancel(ctx, intentID, solver), escrow.ErrUnauthorizedRequester)
	require.NoError(t, f.host.Cancel(ctx, intentID, requester))
	assert.Equal(t, uint64(1000), f.storage.Balance(token, requester))
}
