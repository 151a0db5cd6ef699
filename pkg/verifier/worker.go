package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
	"github.com/speedrun-hq/gmp-verifier/pkg/relay"
)

// worker processes validation jobs from the queue
func (s *Service) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	s.logger.Debug("Starting worker %d", id)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker %d shutting down", id)
			return
		case job := <-s.jobs:
			metrics.JobQueueSize.Set(float64(len(s.jobs)))
			s.logger.DebugWithChain(job.ChainID, "Worker %d processing %s intent %s", id, job.Direction, job.IntentID)

			if err := s.process(ctx, job); err != nil {
				s.handleFailure(job, err)
			}
		}
	}
}

func (s *Service) process(ctx context.Context, job models.ValidationJob) error {
	switch job.Direction {
	case models.Inflow:
		return s.processInflow(ctx, job)
	case models.Outflow:
		src, ok := s.sources[job.ChainID]
		if !ok {
			return fmt.Errorf("no source for chain %d", job.ChainID)
		}
		res, _, err := s.validateOutflow(ctx, job.IntentID, job.Fulfillment, src)
		if err == nil && !res.Valid {
			s.logger.InfoWithChain(job.ChainID, "Rejected fulfillment %s for intent %s: %s", job.Fulfillment.TxHash, job.IntentID, res.Message)
		}
		return err
	}
	return fmt.Errorf("unknown job direction %q", job.Direction)
}

// handleFailure classifies err and either reschedules the job or gives up
func (s *Service) handleFailure(job models.ValidationJob, err error) {
	shouldRetry, errorType := s.retry.ShouldRetryError(err)
	s.logger.ErrorWithChain(job.ChainID, "Error validating %s intent %s classified as: %s (retry: %v): %v",
		job.Direction, job.IntentID, errorType, shouldRetry, err)

	if errorType == "already_processed" {
		s.logger.InfoWithChain(job.ChainID, "Intent %s is already fulfilled, marking as done", job.IntentID)
		return
	}
	if shouldRetry {
		s.retry.ScheduleRetry(job, errorType)
	}
}

func (s *Service) processInflow(ctx context.Context, job models.ValidationJob) error {
	intent, ok := s.cache.Intent(job.IntentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotTracked, job.IntentID)
	}

	res, err := s.validator.ValidateInflow(ctx, intent, job.Escrow)
	if err != nil {
		return fmt.Errorf("inflow validation of intent %s failed: %w", job.IntentID, err)
	}
	if !res.Valid {
		s.logger.InfoWithChain(job.ChainID, "Rejected escrow %s for intent %s: %s", job.Escrow.EscrowID, job.IntentID, res.Message)
		return nil
	}

	res, err = s.validator.ValidateHubFulfillment(ctx, intent, job.Fulfillment, s.opts.HubKind)
	if err != nil {
		return fmt.Errorf("hub fulfillment validation of intent %s failed: %w", job.IntentID, err)
	}
	if !res.Valid {
		s.logger.InfoWithChain(s.opts.HubChainID, "Rejected hub fulfillment for intent %s: %s", job.IntentID, res.Message)
		return nil
	}

	approval, err := s.approver.Approve(ctx, job.IntentID, job.Fulfillment)
	if err != nil {
		return err
	}
	if err := s.deliverProof(ctx, job.Escrow, job.Fulfillment, approval); err != nil {
		return err
	}
	s.cache.Remove(job.IntentID)
	return nil
}

// deliverProof relays a FulfillmentProof releasing the escrow when its chain
// is hosted by this process
func (s *Service) deliverProof(ctx context.Context, e *models.Escrow, f *models.FulfillmentTransactionParams, approval *models.Approval) error {
	if !s.relay.HasRoute(e.ChainID) {
		return nil
	}
	if e.ReservedSolverAddr == nil {
		s.logger.InfoWithChain(e.ChainID, "Escrow %s has no reserved solver, leaving it for a signed claim", e.EscrowID)
		return nil
	}

	id, err := normalize.IntentID(approval.IntentID)
	if err != nil {
		return err
	}
	solver, err := normalize.Address(*e.ReservedSolverAddr, e.ChainKind)
	if err != nil {
		return fmt.Errorf("invalid reserved solver %s: %w", *e.ReservedSolverAddr, err)
	}

	proof := gmp.FulfillmentProof{
		IntentID:        id,
		SolverAddr:      pad32(solver),
		AmountFulfilled: approval.ApprovalValue,
		Timestamp:       f.Timestamp,
	}
	payload := proof.Encode()
	err = s.relay.Deliver(ctx, relay.Envelope{
		SrcChainID: s.opts.HubChainID,
		SrcAddr:    s.opts.RelaySource,
		DstChainID: e.ChainID,
		Payload:    payload[:],
	})
	if errors.Is(err, escrow.ErrAlreadyFulfilled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to deliver fulfillment proof for intent %s: %w", approval.IntentID, err)
	}
	s.logger.InfoWithChain(e.ChainID, "Delivered fulfillment proof for intent %s", approval.IntentID)
	return nil
}

// validateOutflow checks a fulfillment transaction against its intent and
// signs an approval when it passes
func (s *Service) validateOutflow(ctx context.Context, intentID string, params *models.FulfillmentTransactionParams, src ChainSource) (models.ValidationResult, *models.Approval, error) {
	intent, ok := s.cache.Intent(intentID)
	if !ok {
		return s.rejected("Intent %s is not tracked", intentID), nil, nil
	}
	if intent.Direction != models.Outflow {
		return s.rejected("Intent %s is not an outflow intent", intentID), nil, nil
	}

	res, err := s.validator.ValidateOutflow(ctx, intent, params, src.Kind())
	if err != nil {
		return res, nil, fmt.Errorf("outflow validation of intent %s failed: %w", intentID, err)
	}
	if !res.Valid {
		return res, nil, nil
	}

	approval, err := s.approver.Approve(ctx, intent.IntentID, params)
	if err != nil {
		return res, nil, err
	}
	s.cache.Remove(intent.IntentID)
	return res, approval, nil
}

func (s *Service) rejected(format string, args ...interface{}) models.ValidationResult {
	return models.ValidationResult{
		Valid:     false,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: uint64(s.now().Unix()),
	}
}
