// Package verifier polls the hub and connected chains, validates escrows and
// fulfillments, and signs approvals for the ones that pass
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/circuitbreaker"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
	"github.com/speedrun-hq/gmp-verifier/pkg/relay"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
	"github.com/speedrun-hq/gmp-verifier/pkg/validator"
)

// ErrIntentNotTracked is returned when a job refers to an intent the cache no longer holds
var ErrIntentNotTracked = errors.New("intent not tracked")

// DefaultExpiredRetention is how long an intent stays tracked after its expiry
const DefaultExpiredRetention = time.Hour

// HubFeed is the hub side of the indexer
type HubFeed interface {
	FetchIntents(ctx context.Context) ([]models.Intent, error)
	FetchEscrows(ctx context.Context, chainID uint64) ([]models.Escrow, error)
	FetchFulfillments(ctx context.Context, chainID uint64) ([]models.FulfillmentTransactionParams, error)
}

// Approver signs approvals for intents with a validated fulfillment
type Approver interface {
	Approve(ctx context.Context, intentID string, fulfillment *models.FulfillmentTransactionParams) (*models.Approval, error)
}

// Options configures the service loops
type Options struct {
	HubChainID      uint64
	HubKind         chains.Kind
	PollingInterval time.Duration
	Workers         int
	MaxRetries      int
	CircuitBreaker  circuitbreaker.Config
	// RelaySource is the GMP source address stamped on relayed messages
	RelaySource [32]byte
	// ExpiredRetention keeps expired intents tracked long enough for late
	// observations of a fulfillment made before the expiry
	ExpiredRetention time.Duration
}

// Service runs the pollers and the validation worker pool
type Service struct {
	opts      Options
	hub       HubFeed
	cache     *tracker.EventCache
	validator *validator.Validator
	approver  Approver
	relay     *relay.Relay
	retry     *RetryManager
	logger    logger.Logger
	now       func() time.Time

	sources  map[uint64]ChainSource
	breakers map[uint64]*circuitbreaker.CircuitBreaker

	jobs chan models.ValidationJob
	wg   sync.WaitGroup

	mu      sync.Mutex
	handled map[string]bool
}

// NewService creates a verifier service. Chains are added with AddSource
// before Start.
func NewService(opts Options, hub HubFeed, cache *tracker.EventCache, v *validator.Validator, approver Approver, r *relay.Relay, logger logger.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollingInterval <= 0 {
		opts.PollingInterval = 5 * time.Second
	}
	if opts.ExpiredRetention <= 0 {
		opts.ExpiredRetention = DefaultExpiredRetention
	}
	return &Service{
		opts:      opts,
		hub:       hub,
		cache:     cache,
		validator: v,
		approver:  approver,
		relay:     r,
		retry:     NewRetryManager(opts.MaxRetries, logger),
		logger:    logger,
		now:       time.Now,
		sources:   make(map[uint64]ChainSource),
		breakers:  make(map[uint64]*circuitbreaker.CircuitBreaker),
		jobs:      make(chan models.ValidationJob, 100), // Buffer for pending validations
		handled:   make(map[string]bool),
	}
}

// AddSource registers a connected chain and its circuit breaker
func (s *Service) AddSource(src ChainSource) {
	s.sources[src.ChainID()] = src
	s.breakers[src.ChainID()] = circuitbreaker.NewCircuitBreaker(src.ChainID(), s.opts.CircuitBreaker, s.logger)
}

// Start runs until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	s.logger.Notice("Starting worker pool with %d workers", s.opts.Workers)
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Add(1)
	go s.retryHandler(ctx)

	for _, src := range s.sources {
		s.wg.Add(1)
		go s.chainPoller(ctx, src)
	}

	s.logger.Info("Polling hub chain %d every %v", s.opts.HubChainID, s.opts.PollingInterval)
	ticker := time.NewTicker(s.opts.PollingInterval)
	defer ticker.Stop()

	s.PollHub(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Notice("Context cancelled, shutting down service")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.PollHub(ctx)
		}
	}
}

// PollHub refreshes hub intents, hub escrows and hub fulfillments, then
// queues inflow validations
func (s *Service) PollHub(ctx context.Context) {
	hubLabel := strconv.FormatUint(s.opts.HubChainID, 10)
	cutoff := s.expiryCutoff()

	intents, err := s.hub.FetchIntents(ctx)
	if err != nil {
		metrics.PollErrors.WithLabelValues(hubLabel, "intents").Inc()
		s.logger.ErrorWithChain(s.opts.HubChainID, "Error fetching intents: %v", err)
		return
	}
	s.logger.DebugWithChain(s.opts.HubChainID, "Found %d open intents", len(intents))

	for _, intent := range intents {
		if intent.ExpiryTime < cutoff {
			continue
		}
		added, err := s.cache.AddIntent(intent)
		if errors.Is(err, tracker.ErrRevocableIntent) {
			s.logger.DebugWithChain(s.opts.HubChainID, "Skipping revocable intent %s", intent.IntentID)
			continue
		}
		if err != nil {
			s.logger.ErrorWithChain(s.opts.HubChainID, "Skipping intent: %v", err)
			continue
		}
		if added && intent.Direction == models.Inflow {
			s.forwardRequirements(ctx, intent)
		}
	}

	escrows, err := s.hub.FetchEscrows(ctx, s.opts.HubChainID)
	if err != nil {
		metrics.PollErrors.WithLabelValues(hubLabel, "escrows").Inc()
		s.logger.ErrorWithChain(s.opts.HubChainID, "Error fetching hub escrows: %v", err)
	}
	for _, e := range escrows {
		e.ChainID = s.opts.HubChainID
		e.ChainKind = s.opts.HubKind
		if _, err := s.cache.AddEscrow(e); err != nil {
			s.logger.ErrorWithChain(s.opts.HubChainID, "Skipping hub escrow %s: %v", e.EscrowID, err)
		}
	}

	fulfillments, err := s.hub.FetchFulfillments(ctx, s.opts.HubChainID)
	if err != nil {
		metrics.PollErrors.WithLabelValues(hubLabel, "fulfillments").Inc()
		s.logger.ErrorWithChain(s.opts.HubChainID, "Error fetching hub fulfillments: %v", err)
	}
	for _, f := range fulfillments {
		intent, ok := s.cache.Intent(f.IntentID)
		if !ok || intent.Direction != models.Inflow {
			continue
		}
		added, err := s.cache.AddFulfillment(f)
		if err != nil {
			s.logger.ErrorWithChain(s.opts.HubChainID, "Skipping hub fulfillment %s: %v", f.TxHash, err)
			continue
		}
		if added {
			s.logger.InfoWithChain(s.opts.HubChainID, "Tracking hub fulfillment %s for intent %s", f.TxHash, f.IntentID)
		}
	}

	for _, id := range s.cache.PruneExpired(cutoff) {
		s.logger.DebugWithChain(s.opts.HubChainID, "Dropped expired intent %s", id)
	}

	s.scheduleInflow(ctx)
}

// expiryCutoff is the expiry before which intents are no longer tracked
func (s *Service) expiryCutoff() uint64 {
	cutoff := s.now().Add(-s.opts.ExpiredRetention).Unix()
	if cutoff < 0 {
		return 0
	}
	return uint64(cutoff)
}

func (s *Service) chainPoller(ctx context.Context, src ChainSource) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollingInterval)
	defer ticker.Stop()

	s.PollChain(ctx, src.ChainID())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollChain(ctx, src.ChainID())
		}
	}
}

// PollChain reads one round of escrows, readiness and fulfillments from a chain
func (s *Service) PollChain(ctx context.Context, chainID uint64) {
	src, ok := s.sources[chainID]
	if !ok {
		return
	}
	breaker := s.breakers[chainID]
	if breaker.IsOpen() {
		s.logger.DebugWithChain(chainID, "Circuit breaker open, skipping poll")
		return
	}

	failed := false
	fail := func(feed string, err error) {
		failed = true
		metrics.PollErrors.WithLabelValues(strconv.FormatUint(chainID, 10), feed).Inc()
		s.logger.ErrorWithChain(chainID, "Error polling %s: %v", feed, err)
		breaker.RecordFailure()
	}

	escrows, err := src.Escrows(ctx)
	if err != nil {
		fail("escrows", err)
	}
	for _, e := range escrows {
		added, err := s.cache.AddEscrow(e)
		if err != nil {
			s.logger.ErrorWithChain(chainID, "Skipping escrow %s: %v", e.EscrowID, err)
			continue
		}
		if added {
			s.logger.InfoWithChain(chainID, "Tracking escrow %s for intent %s", e.EscrowID, e.IntentID)
		}
	}

	ready, err := src.ReadyIntentIDs(ctx)
	if err != nil {
		fail("requirements", err)
	}
	for _, id := range ready {
		if s.cache.MarkReady(id) {
			s.logger.DebugWithChain(chainID, "Intent %s ready on chain", id)
		}
	}

	fulfillments, err := src.Fulfillments(ctx)
	if err != nil {
		fail("fulfillments", err)
	}
	for i := range fulfillments {
		s.scheduleOutflow(ctx, src, &fulfillments[i])
	}

	if !failed {
		breaker.RecordSuccess()
	}
	s.scheduleInflow(ctx)
}

// scheduleInflow queues one job per hub fulfillment of an inflow intent
// whose connected-chain escrow is tracked. Intents without a hub
// fulfillment are not validated yet.
func (s *Service) scheduleInflow(ctx context.Context) {
	for _, intent := range s.cache.Intents() {
		if intent.Direction != models.Inflow {
			continue
		}
		e, ok := s.cache.EscrowForIntent(intent.IntentID)
		if !ok || e.ChainID == s.opts.HubChainID {
			continue
		}
		key, err := jobKey(models.Inflow, intent.IntentID)
		if err != nil {
			continue
		}
		for _, f := range s.cache.FulfillmentsForIntent(intent.IntentID) {
			if !s.claim(key + ":" + strings.ToLower(f.TxHash)) {
				continue
			}
			s.enqueue(ctx, models.ValidationJob{
				Direction:   models.Inflow,
				IntentID:    intent.IntentID,
				Escrow:      e,
				Fulfillment: &f,
				ChainID:     e.ChainID,
			})
		}
	}
}

func (s *Service) scheduleOutflow(ctx context.Context, src ChainSource, params *models.FulfillmentTransactionParams) {
	intent, ok := s.cache.Intent(params.IntentID)
	if !ok || intent.Direction != models.Outflow {
		return
	}
	key, err := jobKey(models.Outflow, params.TxHash)
	if err != nil || !s.claim(key) {
		return
	}
	s.enqueue(ctx, models.ValidationJob{
		Direction:   models.Outflow,
		IntentID:    params.IntentID,
		Fulfillment: params,
		ChainID:     src.ChainID(),
	})
}

func jobKey(direction models.Direction, id string) (string, error) {
	if direction == models.Outflow {
		return jobKeyOutflow(id), nil
	}
	key, err := normalize.IntentIDHex(id)
	if err != nil {
		return "", err
	}
	return string(direction) + ":" + key, nil
}

// claim marks key as handled and reports whether it was unhandled before
func (s *Service) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled[key] {
		return false
	}
	s.handled[key] = true
	return true
}

func (s *Service) enqueue(ctx context.Context, job models.ValidationJob) {
	select {
	case s.jobs <- job:
		metrics.JobQueueSize.Set(float64(len(s.jobs)))
	case <-ctx.Done():
	}
}

// retryHandler feeds due retries back to the workers
func (s *Service) retryHandler(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rj := range s.retry.Due() {
				s.logger.DebugWithChain(rj.Job.ChainID, "Retrying intent %s (attempt #%d, error type: %s)", rj.Job.IntentID, rj.RetryCount, rj.ErrorType)
				metrics.RetriesExecuted.WithLabelValues(strconv.FormatUint(rj.Job.ChainID, 10), rj.ErrorType).Inc()
				s.enqueue(ctx, rj.Job)
			}
		}
	}
}

// forwardRequirements relays an inflow intent's requirements to its
// connected chain when this process hosts that chain's escrow program
func (s *Service) forwardRequirements(ctx context.Context, intent models.Intent) {
	if intent.ConnectedChainID == nil || !s.relay.HasRoute(*intent.ConnectedChainID) {
		return
	}
	chainID := *intent.ConnectedChainID
	src, ok := s.sources[chainID]
	if !ok {
		return
	}

	msg, err := requirementsFor(intent, src.Kind())
	if err != nil {
		s.logger.ErrorWithChain(chainID, "Cannot relay requirements for intent %s: %v", intent.IntentID, err)
		return
	}
	payload := msg.Encode()
	err = s.relay.Deliver(ctx, relay.Envelope{
		SrcChainID: s.opts.HubChainID,
		SrcAddr:    s.opts.RelaySource,
		DstChainID: chainID,
		Payload:    payload[:],
	})
	if errors.Is(err, escrow.ErrRequirementsAlreadyExist) {
		s.cache.MarkReady(intent.IntentID)
		s.logger.DebugWithChain(chainID, "Requirements for intent %s already on chain", intent.IntentID)
		return
	}
	if err != nil {
		s.logger.ErrorWithChain(chainID, "Relaying requirements for intent %s failed: %v", intent.IntentID, err)
		return
	}
	s.cache.MarkReady(intent.IntentID)
	s.logger.InfoWithChain(chainID, "Relayed requirements for intent %s", intent.IntentID)
}

func requirementsFor(intent models.Intent, kind chains.Kind) (*gmp.IntentRequirements, error) {
	if intent.RequesterAddrConnectedChain == nil {
		return nil, errors.New("no requester address on the connected chain")
	}
	id, err := normalize.IntentID(intent.IntentID)
	if err != nil {
		return nil, err
	}
	requester, err := normalize.Address(*intent.RequesterAddrConnectedChain, kind)
	if err != nil {
		return nil, fmt.Errorf("requester address: %w", err)
	}
	token, err := normalize.Bytes(normalize.Metadata(intent.OfferedMetadata), 32)
	if err != nil {
		return nil, fmt.Errorf("offered metadata: %w", err)
	}

	msg := &gmp.IntentRequirements{
		IntentID:       id,
		RequesterAddr:  pad32(requester),
		AmountRequired: intent.OfferedAmount,
		TokenAddr:      pad32(token),
		Expiry:         intent.ExpiryTime,
	}
	if intent.ReservedSolverAddr != nil {
		if solver, err := normalize.Bytes(*intent.ReservedSolverAddr, 32); err == nil {
			msg.SolverAddr = pad32(solver)
		}
	}
	return msg, nil
}

// pad32 left-pads an address to the 32-byte GMP field width
func pad32(b []byte) [32]byte {
	var out [32]byte
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}
