// Package approval signs and stores escrow release approvals
package approval

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
	"github.com/speedrun-hq/gmp-verifier/pkg/signing"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
)

var (
	// ErrNoEscrow is returned when no escrow is tracked for the intent
	ErrNoEscrow = errors.New("no escrow tracked for intent")
	// ErrNoSigner is returned when no signer is configured for a chain kind
	ErrNoSigner = errors.New("no approver key configured for chain kind")
	// ErrNoFulfillment is returned when an approval is requested without the
	// fulfillment transaction it is based on
	ErrNoFulfillment = errors.New("no validated fulfillment for intent")
)

// Service produces signed approvals for tracked escrows
type Service struct {
	signers map[chains.Kind]signing.Signer
	store   Store
	cache   *tracker.EventCache
	logger  logger.Logger
	now     func() time.Time

	mu        sync.RWMutex
	listeners []func(models.Approval)
}

// NewService creates an approval service. Signers are looked up by the
// chain kind of the escrow being released.
func NewService(signers map[chains.Kind]signing.Signer, store Store, cache *tracker.EventCache, logger logger.Logger) *Service {
	return &Service{
		signers: signers,
		store:   store,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// OnApproval registers fn to be called with every new approval
func (s *Service) OnApproval(fn func(models.Approval)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Approve signs the intent id for release of its tracked escrow once the
// given fulfillment of the intent has been validated. Inflow approvals carry
// the escrow's offered amount, outflow approvals the intent's desired amount.
func (s *Service) Approve(ctx context.Context, intentID string, fulfillment *models.FulfillmentTransactionParams) (*models.Approval, error) {
	id, err := normalize.IntentID(intentID)
	if err != nil {
		return nil, fmt.Errorf("invalid intent id %q: %w", intentID, err)
	}
	if fulfillment == nil || !normalize.Equal(fulfillment.IntentID, intentID, normalize.IntentIDWidth) {
		return nil, fmt.Errorf("%w %s", ErrNoFulfillment, intentID)
	}

	escrow, ok := s.cache.EscrowForIntent(intentID)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoEscrow, intentID)
	}

	signer, ok := s.signers[escrow.ChainKind]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoSigner, escrow.ChainKind)
	}

	value := escrow.OfferedAmount
	if intent, ok := s.cache.Intent(intentID); ok && intent.Direction == models.Outflow {
		value = intent.DesiredAmount
	}

	sig, err := signer.Sign(id)
	if err != nil {
		return nil, fmt.Errorf("failed to sign approval for intent %s: %w", intentID, err)
	}

	approval := models.Approval{
		IntentID:      hexutil.Encode(id[:]),
		EscrowID:      escrow.EscrowID,
		ChainID:       escrow.ChainID,
		ChainKind:     escrow.ChainKind,
		ApprovalValue: value,
		Signature:     hexutil.Encode(sig),
		FulfillmentTx: fulfillment.TxHash,
		Timestamp:     uint64(s.now().Unix()),
	}
	if err := s.store.Save(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to store approval for intent %s: %w", intentID, err)
	}

	metrics.ApprovalsSigned.WithLabelValues(escrow.ChainKind.String()).Inc()
	s.logger.InfoWithChain(escrow.ChainID, "Signed %s approval for intent %s (value %d)", signer.Scheme(), approval.IntentID, value)

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(approval)
	}
	return &approval, nil
}

// Approval returns the stored approval for an intent, or nil
func (s *Service) Approval(ctx context.Context, intentID string) (*models.Approval, error) {
	key, err := normalize.IntentIDHex(intentID)
	if err != nil {
		return nil, fmt.Errorf("invalid intent id %q: %w", intentID, err)
	}
	return s.store.Get(ctx, key)
}

// Approvals returns all stored approvals
func (s *Service) Approvals(ctx context.Context) ([]models.Approval, error) {
	return s.store.List(ctx)
}

// PublicKeys returns the hex verifying key per configured chain kind
func (s *Service) PublicKeys() map[chains.Kind]string {
	out := make(map[chains.Kind]string, len(s.signers))
	for kind, signer := range s.signers {
		out[kind] = "0x" + hex.EncodeToString(signer.PublicKey())
	}
	return out
}
