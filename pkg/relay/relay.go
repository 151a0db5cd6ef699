// Package relay delivers GMP payloads to the endpoint registered for their
// destination chain.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
)

var (
	// ErrNoRoute is returned when no endpoint is registered for the destination chain
	ErrNoRoute = errors.New("no GMP route to chain")
	// ErrUnsupportedMessage is returned by an endpoint for a message type it does not accept
	ErrUnsupportedMessage = errors.New("message type not accepted by endpoint")
)

// Envelope is a GMP payload in transit
type Envelope struct {
	SrcChainID uint64
	// SrcAddr is the 32-byte sender on the source chain
	SrcAddr    [32]byte
	DstChainID uint64
	Payload    []byte
}

// Endpoint receives payloads on a destination chain
type Endpoint interface {
	Receive(ctx context.Context, msgType gmp.MessageType, srcAddr [32]byte, payload []byte) error
}

// EndpointFunc adapts a function to an Endpoint
type EndpointFunc func(ctx context.Context, msgType gmp.MessageType, srcAddr [32]byte, payload []byte) error

func (f EndpointFunc) Receive(ctx context.Context, msgType gmp.MessageType, srcAddr [32]byte, payload []byte) error {
	return f(ctx, msgType, srcAddr, payload)
}

// Relay routes envelopes by destination chain
type Relay struct {
	mu        sync.RWMutex
	endpoints map[uint64]Endpoint
	logger    logger.Logger
}

func New(logger logger.Logger) *Relay {
	return &Relay{
		endpoints: make(map[uint64]Endpoint),
		logger:    logger,
	}
}

// Register sets the endpoint for a chain, replacing any previous one
func (r *Relay) Register(chainID uint64, endpoint Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[chainID] = endpoint
}

// HasRoute reports whether payloads can be delivered to chainID
func (r *Relay) HasRoute(chainID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.endpoints[chainID]
	return ok
}

// Deliver checks the payload header and hands it to the destination endpoint
func (r *Relay) Deliver(ctx context.Context, env Envelope) error {
	msgType, err := gmp.PeekType(env.Payload)
	if err != nil {
		metrics.GmpMessages.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("malformed GMP payload from chain %d: %w", env.SrcChainID, err)
	}
	if len(env.Payload) != msgType.Size() {
		metrics.GmpMessages.WithLabelValues(msgType.String(), "malformed").Inc()
		return fmt.Errorf("malformed GMP payload from chain %d: %w", env.SrcChainID,
			&gmp.InvalidLengthError{Expected: msgType.Size(), Got: len(env.Payload)})
	}

	r.mu.RLock()
	endpoint, ok := r.endpoints[env.DstChainID]
	r.mu.RUnlock()
	if !ok {
		metrics.GmpMessages.WithLabelValues(msgType.String(), "no_route").Inc()
		return fmt.Errorf("%w %d", ErrNoRoute, env.DstChainID)
	}

	if err := endpoint.Receive(ctx, msgType, env.SrcAddr, env.Payload); err != nil {
		if isDuplicate(err) {
			metrics.GmpMessages.WithLabelValues(msgType.String(), "duplicate").Inc()
			r.logger.DebugWithChain(env.DstChainID, "GMP %s from chain %d already applied: %v", msgType, env.SrcChainID, err)
		} else {
			metrics.GmpMessages.WithLabelValues(msgType.String(), "rejected").Inc()
			r.logger.ErrorWithChain(env.DstChainID, "GMP %s from chain %d rejected: %v", msgType, env.SrcChainID, err)
		}
		return fmt.Errorf("delivering %s to chain %d: %w", msgType, env.DstChainID, err)
	}

	metrics.GmpMessages.WithLabelValues(msgType.String(), "delivered").Inc()
	r.logger.DebugWithChain(env.DstChainID, "Delivered GMP %s from chain %d", msgType, env.SrcChainID)
	return nil
}

// isDuplicate reports a message the destination program had already applied
func isDuplicate(err error) bool {
	return errors.Is(err, escrow.ErrRequirementsAlreadyExist) || errors.Is(err, escrow.ErrAlreadyFulfilled)
}
