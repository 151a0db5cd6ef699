// Package blockchain reads escrow events and fulfillment transactions from
// EVM connected chains.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/contracts"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// ErrPendingTransaction is returned for a transaction that is not mined yet
var ErrPendingTransaction = errors.New("transaction is pending")

// Backend is the subset of ethclient.Client used by ChainConfig
type Backend interface {
	bind.ContractFilterer
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
}

// ChainConfig holds the connection to one EVM connected chain
type ChainConfig struct {
	ChainID       uint64
	Name          string
	RPCURL        string
	EscrowAddress string
	Client        Backend
	Contract      *contracts.IntentEscrowFilterer

	now func() time.Time
}

// NewChainConfig creates a chain configuration
func NewChainConfig(chainID uint64, name, rpcURL, escrowAddress string) *ChainConfig {
	return &ChainConfig{
		ChainID:       chainID,
		Name:          name,
		RPCURL:        rpcURL,
		EscrowAddress: escrowAddress,
		now:           time.Now,
	}
}

// Connect dials the RPC endpoint and binds the escrow contract
func (c *ChainConfig) Connect() error {
	client, err := ethclient.Dial(c.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to client: %v", err)
	}
	return c.Bind(client)
}

// Bind attaches an already connected backend
func (c *ChainConfig) Bind(backend Backend) error {
	if !common.IsHexAddress(c.EscrowAddress) {
		return fmt.Errorf("invalid escrow address for chain %d: %q", c.ChainID, c.EscrowAddress)
	}
	contract, err := contracts.NewIntentEscrowFilterer(common.HexToAddress(c.EscrowAddress), backend)
	if err != nil {
		return fmt.Errorf("failed to initialize contract: %v", err)
	}
	c.Client = backend
	c.Contract = contract
	return nil
}

// GetLatestBlockNumber gets the latest block number from the chain
func (c *ChainConfig) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	if c.Client == nil {
		return 0, fmt.Errorf("client not connected")
	}

	return c.Client.BlockNumber(ctx)
}

// EscrowsCreated returns the escrows created in [fromBlock, toBlock]
func (c *ChainConfig) EscrowsCreated(ctx context.Context, fromBlock, toBlock uint64) ([]models.Escrow, error) {
	if c.Contract == nil {
		return nil, fmt.Errorf("client not connected")
	}

	it, err := c.Contract.FilterEscrowCreated(&bind.FilterOpts{Start: fromBlock, End: &toBlock, Context: ctx}, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to filter EscrowCreated events: %w", err)
	}
	defer it.Close()

	var escrows []models.Escrow
	for it.Next() {
		escrow, err := c.escrowFromEvent(it.Event)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, escrow)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to read EscrowCreated events: %w", err)
	}
	return escrows, nil
}

func (c *ChainConfig) escrowFromEvent(event *contracts.IntentEscrowEscrowCreated) (models.Escrow, error) {
	if !event.Amount.IsUint64() {
		return models.Escrow{}, fmt.Errorf("escrow %s amount %s exceeds u64::MAX", hexutil.Encode(event.EscrowId[:]), event.Amount)
	}

	escrow := models.Escrow{
		EscrowID:        hexutil.Encode(event.EscrowId[:]),
		IntentID:        hexutil.Encode(event.IntentId[:]),
		ChainID:         c.ChainID,
		ChainKind:       chains.Evm,
		RequesterAddr:   strings.ToLower(event.Requester.Hex()),
		OfferedMetadata: strings.ToLower(event.Token.Hex()),
		OfferedAmount:   event.Amount.Uint64(),
		ExpiryTime:      event.Expiry,
		Timestamp:       uint64(c.now().Unix()),
	}
	// the contract stores the reserved solver left-padded to 32 bytes
	if event.ReservedSolver != ([32]byte{}) {
		solver := strings.ToLower(common.BytesToAddress(event.ReservedSolver[12:]).Hex())
		escrow.ReservedSolverAddr = &solver
	}
	return escrow, nil
}

// RequirementsReceived returns the ids of intents whose requirements arrived
// on the chain in [fromBlock, toBlock]
func (c *ChainConfig) RequirementsReceived(ctx context.Context, fromBlock, toBlock uint64) ([]string, error) {
	if c.Contract == nil {
		return nil, fmt.Errorf("client not connected")
	}

	it, err := c.Contract.FilterIntentRequirementsReceived(&bind.FilterOpts{Start: fromBlock, End: &toBlock, Context: ctx}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to filter IntentRequirementsReceived events: %w", err)
	}
	defer it.Close()

	var ids []string
	for it.Next() {
		ids = append(ids, hexutil.Encode(it.Event.IntentId[:]))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to read IntentRequirementsReceived events: %w", err)
	}
	return ids, nil
}

// Transaction fetches a mined transaction and its receipt status
func (c *ChainConfig) Transaction(ctx context.Context, txHash string) (*models.EvmTransaction, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	hash := common.HexToHash(txHash)

	tx, pending, err := c.Client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
	}
	if pending {
		return nil, fmt.Errorf("%w: %s", ErrPendingTransaction, txHash)
	}

	receipt, err := c.Client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash, err)
	}

	header, err := c.Client.HeaderByHash(ctx, receipt.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get block of %s: %w", txHash, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of %s: %w", txHash, err)
	}

	var to string
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}
	return &models.EvmTransaction{
		Hash:      hash.Hex(),
		From:      strings.ToLower(from.Hex()),
		To:        to,
		Input:     hexutil.Encode(tx.Data()),
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
		Timestamp: header.Time,
	}, nil
}
