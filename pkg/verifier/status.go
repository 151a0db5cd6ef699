package verifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/speedrun-hq/gmp-verifier/pkg/api"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

var _ api.Verifier = (*Service)(nil)

// Ready reports the first chain that cannot be polled
func (s *Service) Ready() error {
	ids := make([]uint64, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := s.sources[id].Ready(); err != nil {
			return err
		}
	}
	return nil
}

// Status returns per-chain circuit state and queue sizes
func (s *Service) Status(context.Context) map[string]interface{} {
	status := make(map[string]interface{})
	for chainID, src := range s.sources {
		state := s.breakers[chainID].GetState()
		circuitStatus := "closed"
		if state.Open {
			circuitStatus = "open"
		}

		chainStatus := map[string]interface{}{
			"kind":            src.Kind().String(),
			"circuit":         circuitStatus,
			"circuit_enabled": state.Enabled,
			"failure_count":   state.FailureCount,
			"failure_limit":   state.Threshold,
			"gmp_route":       s.relay.HasRoute(chainID),
		}
		if err := src.Ready(); err != nil {
			chainStatus["error"] = err.Error()
		}
		status[fmt.Sprintf("chain_%d", chainID)] = chainStatus
	}
	status["tracked_intents"] = len(s.cache.Intents())
	status["tracked_escrows"] = len(s.cache.Escrows())
	status["retry_queue"] = s.retry.Len()
	status["job_queue"] = len(s.jobs)
	return status
}

// ResetCircuit closes the circuit breaker of a chain
func (s *Service) ResetCircuit(chainID uint64) error {
	breaker, ok := s.breakers[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", api.ErrUnknownChain, chainID)
	}
	breaker.Reset()
	s.logger.NoticeWithChain(chainID, "Circuit breaker reset")
	return nil
}

// ValidateOutflowFulfillment looks up a fulfillment transaction on a
// connected chain, validates it against its outflow intent and signs an
// approval when it passes
func (s *Service) ValidateOutflowFulfillment(ctx context.Context, intentID string, chainID uint64, txHash string) (models.ValidationResult, *models.Approval, error) {
	src, ok := s.sources[chainID]
	if !ok {
		return models.ValidationResult{}, nil, fmt.Errorf("%w: %d", api.ErrUnknownChain, chainID)
	}

	params, err := src.Transaction(ctx, txHash)
	if err != nil {
		return models.ValidationResult{}, nil, fmt.Errorf("failed to read fulfillment %s on chain %d: %w", txHash, chainID, err)
	}

	res, approval, err := s.validateOutflow(ctx, intentID, params, src)
	if err == nil {
		// the poller must not validate the same transaction again
		s.claim(jobKeyOutflow(txHash))
	}
	return res, approval, err
}

func jobKeyOutflow(txHash string) string {
	return string(models.Outflow) + ":" + strings.ToLower(txHash)
}
