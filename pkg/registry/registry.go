// Package registry resolves a solver's hub-chain address to the address it
// registered for a connected chain.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// SolverInfo is a solver's registry record
type SolverInfo struct {
	PublicKey             string
	ConnectedChainMvmAddr *string
	ConnectedChainEvmAddr *string
	ConnectedChainSvmAddr *string
	RegisteredAt          uint64
}

// AddressFor returns the registered address for a chain kind, or nil
func (s *SolverInfo) AddressFor(kind chains.Kind) *string {
	switch kind {
	case chains.Evm:
		return s.ConnectedChainEvmAddr
	case chains.MoveVm:
		return s.ConnectedChainMvmAddr
	case chains.SolanaVm:
		return s.ConnectedChainSvmAddr
	}
	return nil
}

// Registry reads solver records. A nil record with a nil error means the
// solver is not registered; any error is a query failure.
type Registry interface {
	SolverInfo(ctx context.Context, solverHubAddr string) (*SolverInfo, error)
}

// Resolver maps hub solver addresses to connected-chain addresses
type Resolver struct {
	registry Registry
	cache    *AddressCache
	logger   logger.Logger
}

// NewResolver creates a resolver caching found addresses for cacheTTL
func NewResolver(registry Registry, cacheTTL time.Duration, logger logger.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    NewAddressCache(cacheTTL),
		logger:   logger,
	}
}

// Resolve returns the connected-chain address of a solver for kind. The bool
// is false when the solver or its address for kind is not registered. Errors
// are only returned when the registry could not be queried.
func (r *Resolver) Resolve(ctx context.Context, solverHubAddr string, kind chains.Kind) (string, bool, error) {
	hubAddr, err := normalize.Hex(solverHubAddr, 32)
	if err != nil {
		return "", false, fmt.Errorf("invalid solver hub address %q: %w", solverHubAddr, err)
	}

	key := hubAddr + "/" + kind.String()
	if addr, ok := r.cache.Get(key); ok {
		metrics.RegistryLookups.WithLabelValues(kind.String(), "cache_hit").Inc()
		return addr, true, nil
	}

	start := time.Now()
	info, err := r.registry.SolverInfo(ctx, hubAddr)
	metrics.RegistryLookupTime.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RegistryLookups.WithLabelValues(kind.String(), "error").Inc()
		return "", false, fmt.Errorf("registry query failed for solver %s: %w", hubAddr, err)
	}
	if info == nil {
		r.logger.Debug("Solver %s is not registered", hubAddr)
		metrics.RegistryLookups.WithLabelValues(kind.String(), "not_registered").Inc()
		return "", false, nil
	}

	addr := info.AddressFor(kind)
	if addr == nil || *addr == "" {
		r.logger.Debug("Solver %s has no %s address registered", hubAddr, kind)
		metrics.RegistryLookups.WithLabelValues(kind.String(), "not_registered").Inc()
		return "", false, nil
	}

	metrics.RegistryLookups.WithLabelValues(kind.String(), "found").Inc()
	r.cache.Set(key, *addr)
	return *addr, true, nil
}
