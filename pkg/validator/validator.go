// Package validator decides whether an escrow or a fulfillment transaction
// satisfies a hub intent.
//
// Business-rule failures are returned as an invalid models.ValidationResult
// with a nil error. An error is only returned when the solver registry could
// not be queried, so callers can retry it instead of rejecting the intent.
package validator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// SolverResolver resolves a solver's hub address to its connected-chain address
type SolverResolver interface {
	Resolve(ctx context.Context, solverHubAddr string, kind chains.Kind) (string, bool, error)
}

// Validator checks escrows and fulfillments against intents
type Validator struct {
	resolver SolverResolver
	logger   logger.Logger
	now      func() time.Time
}

// New creates a validator
func New(resolver SolverResolver, logger logger.Logger) *Validator {
	return &Validator{
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

func (v *Validator) result(valid bool, format string, args ...interface{}) models.ValidationResult {
	return models.ValidationResult{
		Valid:     valid,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: uint64(v.now().Unix()),
	}
}

func (v *Validator) invalid(format string, args ...interface{}) models.ValidationResult {
	return v.result(false, format, args...)
}

func record(direction models.Direction, chainID *uint64, start time.Time, res models.ValidationResult, err error) {
	chain := "unknown"
	if chainID != nil {
		chain = strconv.FormatUint(*chainID, 10)
	}
	outcome := "invalid"
	switch {
	case err != nil:
		outcome = "error"
	case res.Valid:
		outcome = "valid"
	}
	metrics.Validations.WithLabelValues(string(direction), chain, outcome).Inc()
	metrics.ValidationTime.WithLabelValues(string(direction)).Observe(time.Since(start).Seconds())
}

func optional(s *string) string {
	if s == nil {
		return "<none>"
	}
	return *s
}
