package contracts

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferSelector(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(TransferSelector))
}

func TestTransferRoundTrip(t *testing.T) {
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")
	trailing := common.LeftPadBytes([]byte{0x42}, 32)

	data, err := EncodeTransfer(to, big.NewInt(1000), trailing)
	require.NoError(t, err)
	assert.Len(t, data, 100)

	call, err := DecodeTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, to, call.To)
	assert.Equal(t, int64(1000), call.Amount.Int64())
	assert.Equal(t, trailing, call.Trailing)
}

func TestDecodeTransferErrors(t *testing.T) {
	_, err := DecodeTransfer([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERC20 transfer")

	_, err = DecodeTransfer(append([]byte{}, TransferSelector...))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient")
}

func TestNewIntentEscrowFilterer(t *testing.T) {
	f, err := NewIntentEscrowFilterer(common.Address{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, f)
}
