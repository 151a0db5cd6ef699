package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
)

var (
	// ErrUntrustedSource is returned for a message from a sender the endpoint does not trust
	ErrUntrustedSource = errors.New("untrusted GMP source")
	// ErrUnknownIntent is returned for a confirmation of an intent that is not tracked
	ErrUnknownIntent = errors.New("confirmation for untracked intent")
)

// HubEndpoint takes escrow confirmations addressed to the hub and records
// them on the tracked intents
type HubEndpoint struct {
	cache   *tracker.EventCache
	trusted map[[32]byte]bool
	logger  logger.Logger
}

// NewHubEndpoint accepts confirmations sent by any of the trusted sources
func NewHubEndpoint(cache *tracker.EventCache, logger logger.Logger, trusted ...[32]byte) *HubEndpoint {
	h := &HubEndpoint{cache: cache, trusted: make(map[[32]byte]bool), logger: logger}
	for _, src := range trusted {
		h.trusted[src] = true
	}
	return h
}

func (h *HubEndpoint) Receive(_ context.Context, msgType gmp.MessageType, srcAddr [32]byte, payload []byte) error {
	if msgType != gmp.TypeEscrowConfirmation {
		return fmt.Errorf("%w: %s", ErrUnsupportedMessage, msgType)
	}
	if !h.trusted[srcAddr] {
		return fmt.Errorf("%w %s", ErrUntrustedSource, hexutil.Encode(srcAddr[:]))
	}
	confirmation, err := gmp.DecodeEscrowConfirmation(payload)
	if err != nil {
		return err
	}

	intentID := hexutil.Encode(confirmation.IntentID[:])
	if !h.cache.ConfirmEscrow(intentID) {
		return fmt.Errorf("%w %s", ErrUnknownIntent, intentID)
	}
	h.logger.Info("Escrow %s confirmed for intent %s (amount %d)",
		hexutil.Encode(confirmation.EscrowID[:]), intentID, confirmation.AmountEscrowed)
	return nil
}
