package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/blockchain"
	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/hubclient"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/validator"
)

const (
	// DefaultLookbackBlocks is how far behind the head the first EVM scan starts
	DefaultLookbackBlocks = 5000
	maxBlockRange         = 2000
)

// ErrTransactionNotFound is returned when a source cannot find a fulfillment transaction
var ErrTransactionNotFound = errors.New("fulfillment transaction not found")

// ChainSource is the event feed of one connected chain
type ChainSource interface {
	ChainID() uint64
	Kind() chains.Kind
	// Escrows returns escrows observed since the previous call
	Escrows(ctx context.Context) ([]models.Escrow, error)
	// ReadyIntentIDs returns ids of intents whose requirements reached the chain
	ReadyIntentIDs(ctx context.Context) ([]string, error)
	// Fulfillments returns outflow fulfillment transactions observed on the chain
	Fulfillments(ctx context.Context) ([]models.FulfillmentTransactionParams, error)
	// Transaction looks up the fulfillment parameters of a single transaction
	Transaction(ctx context.Context, txHash string) (*models.FulfillmentTransactionParams, error)
	Ready() error
}

type blockCursor struct {
	next    uint64
	started bool
}

// window returns the next block range to scan, or false when caught up
func (c *blockCursor) window(latest, lookback uint64) (uint64, uint64, bool) {
	if !c.started {
		c.started = true
		if latest > lookback {
			c.next = latest - lookback
		}
	}
	if c.next > latest {
		return 0, 0, false
	}
	to := latest
	if to-c.next >= maxBlockRange {
		to = c.next + maxBlockRange - 1
	}
	return c.next, to, true
}

// EvmSource reads escrow contract logs from an EVM chain
type EvmSource struct {
	chain    *blockchain.ChainConfig
	lookback uint64

	mu            sync.Mutex
	escrowCursor  blockCursor
	requireCursor blockCursor
}

var _ ChainSource = (*EvmSource)(nil)

// NewEvmSource creates a source over a bound chain config
func NewEvmSource(chain *blockchain.ChainConfig, lookback uint64) *EvmSource {
	return &EvmSource{chain: chain, lookback: lookback}
}

func (s *EvmSource) ChainID() uint64   { return s.chain.ChainID }
func (s *EvmSource) Kind() chains.Kind { return chains.Evm }

func (s *EvmSource) Ready() error {
	if s.chain.Client == nil {
		return fmt.Errorf("chain %d client not connected", s.chain.ChainID)
	}
	return nil
}

func (s *EvmSource) Escrows(ctx context.Context) ([]models.Escrow, error) {
	var escrows []models.Escrow
	err := s.scan(ctx, &s.escrowCursor, func(from, to uint64) error {
		var err error
		escrows, err = s.chain.EscrowsCreated(ctx, from, to)
		return err
	})
	return escrows, err
}

func (s *EvmSource) ReadyIntentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.scan(ctx, &s.requireCursor, func(from, to uint64) error {
		var err error
		ids, err = s.chain.RequirementsReceived(ctx, from, to)
		return err
	})
	return ids, err
}

// Fulfillments returns nothing: EVM outflow fulfillments are submitted by
// transaction hash through the API
func (s *EvmSource) Fulfillments(context.Context) ([]models.FulfillmentTransactionParams, error) {
	return nil, nil
}

func (s *EvmSource) Transaction(ctx context.Context, txHash string) (*models.FulfillmentTransactionParams, error) {
	tx, err := s.chain.Transaction(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return validator.ExtractEvmFulfillmentParams(*tx)
}

// scan runs fn over the cursor's next window and advances it on success
func (s *EvmSource) scan(ctx context.Context, cursor *blockCursor, fn func(from, to uint64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.chain.GetLatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	from, to, ok := cursor.window(latest, s.lookback)
	if !ok {
		return nil
	}
	if err := fn(from, to); err != nil {
		return err
	}
	cursor.next = to + 1
	return nil
}

var _ HubFeed = (*hubclient.Client)(nil)

// IndexerSource reads a non-EVM chain through the indexer API
type IndexerSource struct {
	client  *hubclient.Client
	chainID uint64
	kind    chains.Kind
}

var _ ChainSource = (*IndexerSource)(nil)

func NewIndexerSource(client *hubclient.Client, chainID uint64, kind chains.Kind) *IndexerSource {
	return &IndexerSource{client: client, chainID: chainID, kind: kind}
}

func (s *IndexerSource) ChainID() uint64   { return s.chainID }
func (s *IndexerSource) Kind() chains.Kind { return s.kind }
func (s *IndexerSource) Ready() error      { return nil }

func (s *IndexerSource) Escrows(ctx context.Context) ([]models.Escrow, error) {
	escrows, err := s.client.FetchEscrows(ctx, s.chainID)
	if err != nil {
		return nil, err
	}
	for i := range escrows {
		escrows[i].ChainID = s.chainID
		escrows[i].ChainKind = s.kind
	}
	return escrows, nil
}

func (s *IndexerSource) ReadyIntentIDs(ctx context.Context) ([]string, error) {
	return s.client.FetchReadyIntentIDs(ctx, s.chainID)
}

func (s *IndexerSource) Fulfillments(ctx context.Context) ([]models.FulfillmentTransactionParams, error) {
	return s.client.FetchFulfillments(ctx, s.chainID)
}

func (s *IndexerSource) Transaction(ctx context.Context, txHash string) (*models.FulfillmentTransactionParams, error) {
	fulfillments, err := s.client.FetchFulfillments(ctx, s.chainID)
	if err != nil {
		return nil, err
	}
	for _, f := range fulfillments {
		if strings.EqualFold(f.TxHash, txHash) {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on chain %d", ErrTransactionNotFound, txHash, s.chainID)
}

// LocalSource reads escrows from an escrow program hosted by this process
type LocalSource struct {
	program *escrow.Program
	chainID uint64
	kind    chains.Kind
	now     func() time.Time
}

var _ ChainSource = (*LocalSource)(nil)

func NewLocalSource(program *escrow.Program, chainID uint64, kind chains.Kind) *LocalSource {
	return &LocalSource{program: program, chainID: chainID, kind: kind, now: time.Now}
}

func (s *LocalSource) ChainID() uint64   { return s.chainID }
func (s *LocalSource) Kind() chains.Kind { return s.kind }
func (s *LocalSource) Ready() error      { return nil }

func (s *LocalSource) Escrows(ctx context.Context) ([]models.Escrow, error) {
	held, err := s.program.Escrows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local escrows: %w", err)
	}

	escrows := make([]models.Escrow, 0, len(held))
	for _, e := range held {
		if e.IsClaimed {
			continue
		}
		solver := e.ReservedSolver.String()
		escrows = append(escrows, models.Escrow{
			EscrowID:           escrow.VaultAddress(e.IntentID).String(),
			IntentID:           e.IntentID.String(),
			ChainID:            s.chainID,
			ChainKind:          s.kind,
			RequesterAddr:      e.Requester.String(),
			OfferedMetadata:    e.Token.String(),
			OfferedAmount:      e.Amount,
			ReservedSolverAddr: &solver,
			ExpiryTime:         uint64(e.Expiry),
			Timestamp:          uint64(s.now().Unix()),
		})
	}
	return escrows, nil
}

// ReadyIntentIDs reports escrows whose requirements are stored on the program
func (s *LocalSource) ReadyIntentIDs(ctx context.Context) ([]string, error) {
	held, err := s.program.Escrows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local escrows: %w", err)
	}

	var ids []string
	for _, e := range held {
		_, err := s.program.Requirements(ctx, e.IntentID)
		if errors.Is(err, escrow.ErrRequirementsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, e.IntentID.String())
	}
	return ids, nil
}

func (s *LocalSource) Fulfillments(context.Context) ([]models.FulfillmentTransactionParams, error) {
	return nil, nil
}

func (s *LocalSource) Transaction(_ context.Context, txHash string) (*models.FulfillmentTransactionParams, error) {
	return nil, fmt.Errorf("%w: chain %d has no transaction history", ErrTransactionNotFound, s.chainID)
}
