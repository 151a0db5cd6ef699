// Package tracker holds the intents and escrows observed by the chain pollers
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

// ErrRevocableIntent is returned when a revocable intent is offered to the cache
var ErrRevocableIntent = errors.New("revocable intents are not supported")

// EventCache is the shared collection of observed intents, escrows and hub
// fulfillments. The same event may be added any number of times.
type EventCache struct {
	mu           sync.RWMutex
	intents      map[string]*models.Intent
	escrows      map[string]*models.Escrow
	byIntent     map[string]string
	fulfillments map[string]map[string]models.FulfillmentTransactionParams
}

// NewEventCache creates an empty cache
func NewEventCache() *EventCache {
	return &EventCache{
		intents:      make(map[string]*models.Intent),
		escrows:      make(map[string]*models.Escrow),
		byIntent:     make(map[string]string),
		fulfillments: make(map[string]map[string]models.FulfillmentTransactionParams),
	}
}

func escrowKey(e *models.Escrow) string {
	return strconv.FormatUint(e.ChainID, 10) + ":" + strings.ToLower(e.EscrowID)
}

// AddIntent stores an intent under its normalized id. It reports whether the
// intent was new. Re-adding an intent refreshes its fields but never clears
// its readiness or escrow confirmation.
func (c *EventCache) AddIntent(intent models.Intent) (bool, error) {
	if intent.Revocable {
		metrics.RejectedIntents.WithLabelValues("revocable").Inc()
		return false, fmt.Errorf("intent %s: %w", intent.IntentID, ErrRevocableIntent)
	}
	key, err := normalize.IntentIDHex(intent.IntentID)
	if err != nil {
		metrics.RejectedIntents.WithLabelValues("invalid_id").Inc()
		return false, fmt.Errorf("invalid intent id %q: %w", intent.IntentID, err)
	}

	c.mu.Lock()
	existing, found := c.intents[key]
	if found {
		intent.ReadyOnConnectedChain = intent.ReadyOnConnectedChain || existing.ReadyOnConnectedChain
		intent.EscrowConfirmed = intent.EscrowConfirmed || existing.EscrowConfirmed
	}
	c.intents[key] = &intent
	size := len(c.intents)
	c.mu.Unlock()

	metrics.TrackedIntents.Set(float64(size))
	return !found, nil
}

// AddEscrow stores an escrow and links it to its intent. It reports whether
// the escrow was new. The first escrow seen for an intent stays linked.
func (c *EventCache) AddEscrow(escrow models.Escrow) (bool, error) {
	intentKey, err := normalize.IntentIDHex(escrow.IntentID)
	if err != nil {
		return false, fmt.Errorf("invalid escrow intent id %q: %w", escrow.IntentID, err)
	}
	key := escrowKey(&escrow)

	c.mu.Lock()
	_, found := c.escrows[key]
	if !found {
		c.escrows[key] = &escrow
		if _, linked := c.byIntent[intentKey]; !linked {
			c.byIntent[intentKey] = key
		}
	}
	size := len(c.escrows)
	c.mu.Unlock()

	metrics.TrackedEscrows.Set(float64(size))
	return !found, nil
}

// MarkReady flags the intent whose requirements reached the connected chain.
// Unknown or malformed ids are ignored. It reports whether an intent matched.
func (c *EventCache) MarkReady(rawID string) bool {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return false
	}

	c.mu.Lock()
	intent, ok := c.intents[key]
	changed := ok && !intent.ReadyOnConnectedChain
	if changed {
		intent.ReadyOnConnectedChain = true
	}
	c.mu.Unlock()

	if changed {
		metrics.ReadyIntents.Inc()
	}
	return ok
}

// ConfirmEscrow flags the intent whose connected-chain escrow sent a
// confirmation. It reports whether a tracked intent matched.
func (c *EventCache) ConfirmEscrow(rawID string) bool {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	intent, ok := c.intents[key]
	if ok {
		intent.EscrowConfirmed = true
	}
	return ok
}

// Intent returns a copy of a tracked intent
func (c *EventCache) Intent(rawID string) (*models.Intent, bool) {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	intent, ok := c.intents[key]
	if !ok {
		return nil, false
	}
	cp := *intent
	return &cp, true
}

// EscrowForIntent returns a copy of the escrow linked to an intent
func (c *EventCache) EscrowForIntent(rawID string) (*models.Escrow, bool) {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	escrowKey, ok := c.byIntent[key]
	if !ok {
		return nil, false
	}
	cp := *c.escrows[escrowKey]
	return &cp, true
}

// Intents returns a snapshot of all intents ordered by id
func (c *EventCache) Intents() []models.Intent {
	c.mu.RLock()
	out := make([]models.Intent, 0, len(c.intents))
	for _, intent := range c.intents {
		out = append(out, *intent)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IntentID < out[j].IntentID })
	return out
}

// Escrows returns a snapshot of all escrows ordered by chain and id
func (c *EventCache) Escrows() []models.Escrow {
	c.mu.RLock()
	out := make([]models.Escrow, 0, len(c.escrows))
	for _, escrow := range c.escrows {
		out = append(out, *escrow)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		return out[i].EscrowID < out[j].EscrowID
	})
	return out
}

// AddFulfillment stores a hub fulfillment transaction of a tracked intent.
// It reports whether the transaction was new; fulfillments of intents the
// cache does not hold are dropped.
func (c *EventCache) AddFulfillment(params models.FulfillmentTransactionParams) (bool, error) {
	key, err := normalize.IntentIDHex(params.IntentID)
	if err != nil {
		return false, fmt.Errorf("invalid fulfillment intent id %q: %w", params.IntentID, err)
	}
	tx := strings.ToLower(params.TxHash)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.intents[key]; !ok {
		return false, nil
	}
	txs, ok := c.fulfillments[key]
	if !ok {
		txs = make(map[string]models.FulfillmentTransactionParams)
		c.fulfillments[key] = txs
	}
	if _, found := txs[tx]; found {
		return false, nil
	}
	txs[tx] = params
	return true, nil
}

// FulfillmentsForIntent returns the hub fulfillments of an intent ordered by
// transaction hash
func (c *EventCache) FulfillmentsForIntent(rawID string) []models.FulfillmentTransactionParams {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return nil
	}

	c.mu.RLock()
	out := make([]models.FulfillmentTransactionParams, 0, len(c.fulfillments[key]))
	for _, f := range c.fulfillments[key] {
		out = append(out, f)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].TxHash) < strings.ToLower(out[j].TxHash) })
	return out
}

// Remove drops an intent with its linked escrow and hub fulfillments
func (c *EventCache) Remove(rawID string) {
	key, err := normalize.IntentIDHex(rawID)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.remove(key)
	intents, escrows := len(c.intents), len(c.escrows)
	c.mu.Unlock()

	metrics.TrackedIntents.Set(float64(intents))
	metrics.TrackedEscrows.Set(float64(escrows))
}

// PruneExpired drops every intent whose expiry is before cutoff and returns
// the ids it dropped
func (c *EventCache) PruneExpired(cutoff uint64) []string {
	c.mu.Lock()
	var pruned []string
	for key, intent := range c.intents {
		if intent.ExpiryTime < cutoff {
			pruned = append(pruned, intent.IntentID)
			c.remove(key)
		}
	}
	intents, escrows := len(c.intents), len(c.escrows)
	c.mu.Unlock()

	metrics.TrackedIntents.Set(float64(intents))
	metrics.TrackedEscrows.Set(float64(escrows))
	sort.Strings(pruned)
	return pruned
}

// remove must be called with mu held
func (c *EventCache) remove(key string) {
	delete(c.intents, key)
	delete(c.fulfillments, key)
	if escrowKey, ok := c.byIntent[key]; ok {
		delete(c.escrows, escrowKey)
		delete(c.byIntent, key)
	}
}
