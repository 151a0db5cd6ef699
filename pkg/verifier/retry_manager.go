package verifier

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"

	"github.com/speedrun-hq/gmp-verifier/pkg/approval"
	"github.com/speedrun-hq/gmp-verifier/pkg/blockchain"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
	"github.com/speedrun-hq/gmp-verifier/pkg/relay"
)

const maxRetryQueueSize = 1000

// RetryManager holds failed validation jobs until their backoff elapses
type RetryManager struct {
	mu         sync.Mutex
	queue      []models.RetryJob
	maxRetries int
	logger     logger.Logger
	now        func() time.Time
}

// NewRetryManager creates a new retry manager
func NewRetryManager(maxRetries int, logger logger.Logger) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// ShouldRetryError classifies errors to determine if a retry should be attempted
// Returns (shouldRetry, errorType)
func (rm *RetryManager) ShouldRetryError(err error) (bool, string) {
	if errors.Is(err, context.Canceled) {
		return false, "cancelled"
	}
	if errors.Is(err, ErrIntentNotTracked) {
		return false, "not_tracked"
	}
	if errors.Is(err, approval.ErrNoSigner) {
		return false, "no_signer"
	}
	// the escrow may not have been polled yet
	if errors.Is(err, approval.ErrNoEscrow) {
		return true, "escrow_pending"
	}
	if errors.Is(err, relay.ErrNoRoute) || errors.Is(err, relay.ErrUnsupportedMessage) {
		return false, "no_route"
	}

	var escrowErr escrow.Error
	if errors.As(err, &escrowErr) {
		switch escrowErr {
		case escrow.ErrAlreadyFulfilled, escrow.ErrEscrowAlreadyClaimed:
			return false, "already_processed"
		case escrow.ErrRequirementsNotFound:
			return true, "requirements_pending"
		}
		return false, "escrow_rejected"
	}

	if errors.Is(err, ethereum.NotFound) || errors.Is(err, blockchain.ErrPendingTransaction) {
		return true, "node_state_error"
	}

	var lengthErr *gmp.InvalidLengthError
	var typeErr *gmp.InvalidMessageTypeError
	var unknownErr gmp.UnknownMessageTypeError
	if errors.As(err, &lengthErr) || errors.As(err, &typeErr) || errors.As(err, &unknownErr) {
		return false, "malformed_message"
	}
	// a malformed address or id in an intent or escrow stays malformed
	if errors.Is(err, normalize.ErrInvalidHex) || errors.Is(err, normalize.ErrTooLong) {
		return false, "malformed_address"
	}

	errStr := err.Error()

	// Network/RPC errors - retry is appropriate
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "EOF") {
		return true, "network_error"
	}

	// RPC node state errors - retry with longer backoff
	if strings.Contains(errStr, "missing trie node") ||
		strings.Contains(errStr, "layer stale") ||
		strings.Contains(errStr, "state inconsistency") ||
		strings.Contains(errStr, "receipt not found") ||
		strings.Contains(errStr, "block not found") {
		return true, "node_state_error"
	}

	// Calldata that cannot carry a fulfillment never will
	if strings.Contains(errStr, "not an ERC20 transfer") ||
		strings.Contains(errStr, "insufficient calldata length") ||
		strings.Contains(errStr, "exceeds u64::MAX") {
		return false, "invalid_transaction"
	}

	// Unknown errors - retry with caution
	return true, "unknown_error"
}

// CalculateBackoff calculates the backoff duration for retry attempts
func (rm *RetryManager) CalculateBackoff(retryCount int) time.Duration {
	// Calculate exponential backoff (2^retry * 10 seconds)
	backoff := time.Duration(math.Pow(2, float64(retryCount))) * 10 * time.Second

	// Set a maximum backoff of 2 minutes
	maxBackoff := 2 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return backoff
}

// ScheduleRetry queues job for another attempt. It reports false when the
// job has used up its retries or the queue is full.
func (rm *RetryManager) ScheduleRetry(job models.ValidationJob, errorType string) bool {
	chainID := strconv.FormatUint(job.ChainID, 10)
	if job.Attempt >= rm.maxRetries {
		rm.logger.InfoWithChain(job.ChainID, "Max retries reached for %s intent %s, giving up (error: %s)", job.Direction, job.IntentID, errorType)
		metrics.MaxRetriesReached.WithLabelValues(chainID, errorType).Inc()
		return false
	}

	backoff := rm.CalculateBackoff(job.Attempt)
	retryJob := models.RetryJob{
		Job:         job,
		RetryCount:  job.Attempt + 1,
		NextAttempt: rm.now().Add(backoff),
		ErrorType:   errorType,
	}
	retryJob.Job.Attempt++

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.queue) >= maxRetryQueueSize {
		rm.logger.ErrorWithChain(job.ChainID, "Retry queue at capacity (%d jobs), dropping retry for intent %s", maxRetryQueueSize, job.IntentID)
		return false
	}
	rm.queue = append(rm.queue, retryJob)
	sort.Slice(rm.queue, func(i, j int) bool {
		return rm.queue[i].NextAttempt.Before(rm.queue[j].NextAttempt)
	})
	metrics.RetryQueueSize.Set(float64(len(rm.queue)))

	rm.logger.DebugWithChain(job.ChainID, "Scheduling retry #%d for intent %s in %v (error: %s)", retryJob.RetryCount, job.IntentID, backoff, errorType)
	return true
}

// Due removes and returns the jobs whose backoff has elapsed
func (rm *RetryManager) Due() []models.RetryJob {
	now := rm.now()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	n := 0
	for n < len(rm.queue) && !rm.queue[n].NextAttempt.After(now) {
		n++
	}
	due := make([]models.RetryJob, n)
	copy(due, rm.queue[:n])
	rm.queue = rm.queue[n:]
	metrics.RetryQueueSize.Set(float64(len(rm.queue)))
	return due
}

// Len returns the number of queued retries
func (rm *RetryManager) Len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.queue)
}
