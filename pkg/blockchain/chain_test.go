package blockchain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/contracts"
)

const (
	testKey       = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	escrowAddress = "0x00000000000000000000000000000000000e5c40"
)

var (
	requester = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	solver    = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeBackend struct {
	logs     []types.Log
	tx       *types.Transaction
	pending  bool
	receipt  *types.Receipt
	header   *types.Header
	blockNum uint64
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	for _, l := range f.logs {
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && l.Topics[0] != q.Topics[0][0] {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return f.blockNum, nil }

func (f *fakeBackend) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	if f.tx == nil {
		return nil, false, ethereum.NotFound
	}
	return f.tx, f.pending, nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func (f *fakeBackend) HeaderByHash(context.Context, common.Hash) (*types.Header, error) {
	if f.header == nil {
		return nil, ethereum.NotFound
	}
	return f.header, nil
}

func escrowCreatedLog(t *testing.T, intentID, escrowID byte, amount *big.Int, reserved common.Address) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(contracts.IntentEscrowABI))
	require.NoError(t, err)
	event := parsed.Events["EscrowCreated"]

	var reservedSolver [32]byte
	copy(reservedSolver[12:], reserved.Bytes())
	data, err := event.Inputs.NonIndexed().Pack([32]byte(common.BytesToHash([]byte{escrowID})), amount, reservedSolver, uint64(1_700_000_120))
	require.NoError(t, err)

	return types.Log{
		Address: common.HexToAddress(escrowAddress),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash([]byte{intentID}),
			common.BytesToHash(requester.Bytes()),
			common.BytesToHash(token.Bytes()),
		},
		Data: data,
	}
}

func requirementsLog(t *testing.T, intentID byte) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(contracts.IntentEscrowABI))
	require.NoError(t, err)
	event := parsed.Events["IntentRequirementsReceived"]
	data, err := event.Inputs.NonIndexed().Pack(uint32(1))
	require.NoError(t, err)
	return types.Log{Topics: []common.Hash{event.ID, common.BytesToHash([]byte{intentID})}, Data: data}
}

func bound(t *testing.T, backend *fakeBackend) *ChainConfig {
	t.Helper()
	c := NewChainConfig(2, "base", "", escrowAddress)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	require.NoError(t, c.Bind(backend))
	return c
}

func TestEscrowsCreated(t *testing.T) {
	backend := &fakeBackend{logs: []types.Log{
		escrowCreatedLog(t, 0xaa, 0xe1, big.NewInt(1000), solver),
		escrowCreatedLog(t, 0xbb, 0xe2, big.NewInt(5), common.Address{}),
		requirementsLog(t, 0xaa),
	}}
	c := bound(t, backend)

	escrows, err := c.EscrowsCreated(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, escrows, 2)

	first := escrows[0]
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000aa", first.IntentID)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000e1", first.EscrowID)
	assert.Equal(t, uint64(2), first.ChainID)
	assert.Equal(t, chains.Evm, first.ChainKind)
	assert.Equal(t, uint64(1000), first.OfferedAmount)
	assert.Equal(t, strings.ToLower(token.Hex()), first.OfferedMetadata)
	assert.Equal(t, strings.ToLower(requester.Hex()), first.RequesterAddr)
	assert.Equal(t, uint64(1_700_000_120), first.ExpiryTime)
	require.NotNil(t, first.ReservedSolverAddr)
	assert.Equal(t, strings.ToLower(solver.Hex()), *first.ReservedSolverAddr)

	assert.Nil(t, escrows[1].ReservedSolverAddr)
}

func TestEscrowsCreatedRejectsWideAmount(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 70)
	c := bound(t, &fakeBackend{logs: []types.Log{escrowCreatedLog(t, 0xaa, 0xe1, wide, solver)}})

	_, err := c.EscrowsCreated(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u64::MAX")
}

func TestRequirementsReceived(t *testing.T) {
	c := bound(t, &fakeBackend{logs: []types.Log{
		requirementsLog(t, 0xaa),
		escrowCreatedLog(t, 0xbb, 0xe2, big.NewInt(5), solver),
	}})

	ids, err := c.RequirementsReceived(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x00000000000000000000000000000000000000000000000000000000000000aa"}, ids)
}

func TestTransaction(t *testing.T) {
	key, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(2)
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		To:        &token,
		Gas:       100_000,
		GasFeeCap: big.NewInt(1),
		GasTipCap: big.NewInt(1),
		Data:      []byte{0xa9, 0x05, 0x9c, 0xbb},
	}), types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)

	backend := &fakeBackend{
		tx:      tx,
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockHash: common.HexToHash("0xb1")},
		header:  &types.Header{Time: 1_700_000_050},
	}
	c := bound(t, backend)

	got, err := c.Transaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), got.From)
	assert.Equal(t, strings.ToLower(token.Hex()), got.To)
	assert.Equal(t, "0xa9059cbb", got.Input)
	assert.True(t, got.Success)
	assert.Equal(t, uint64(1_700_000_050), got.Timestamp)

	backend.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}
	got, err = c.Transaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.False(t, got.Success)

	backend.header = nil
	_, err = c.Transaction(context.Background(), tx.Hash().Hex())
	assert.True(t, errors.Is(err, ethereum.NotFound))

	backend.pending = true
	_, err = c.Transaction(context.Background(), tx.Hash().Hex())
	assert.True(t, errors.Is(err, ErrPendingTransaction))
}

func TestBindRejectsInvalidAddress(t *testing.T) {
	c := NewChainConfig(2, "base", "", "not-an-address")
	assert.Error(t, c.Bind(&fakeBackend{}))

	_, err := NewChainConfig(2, "base", "", escrowAddress).EscrowsCreated(context.Background(), 0, 1)
	assert.Error(t, err)
}
