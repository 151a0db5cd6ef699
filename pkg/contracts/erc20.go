package contracts

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20TransferABI is the ABI of the ERC20 transfer method
const ERC20TransferABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// TransferSelector is the 4-byte selector of transfer(address,uint256)
var TransferSelector = mustSelector()

// transferArgsLength is the ABI-encoded size of (address, uint256)
const transferArgsLength = 64

var erc20ABI = mustParse(ERC20TransferABI)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustSelector() []byte {
	return mustParse(ERC20TransferABI).Methods["transfer"].ID
}

// TransferCall is a decoded ERC20 transfer with any bytes appended after the
// ABI-encoded arguments
type TransferCall struct {
	To       common.Address
	Amount   *big.Int
	Trailing []byte
}

// DecodeTransfer decodes ERC20 transfer calldata
func DecodeTransfer(calldata []byte) (*TransferCall, error) {
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], TransferSelector) {
		selector := calldata
		if len(selector) > 4 {
			selector = selector[:4]
		}
		return nil, fmt.Errorf("calldata is not an ERC20 transfer: selector 0x%s, expected 0x%s",
			hex.EncodeToString(selector), hex.EncodeToString(TransferSelector))
	}
	if len(calldata) < 4+transferArgsLength {
		return nil, fmt.Errorf("insufficient calldata length for ERC20 transfer: %d bytes", len(calldata))
	}

	values, err := erc20ABI.Methods["transfer"].Inputs.Unpack(calldata[4 : 4+transferArgsLength])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ERC20 transfer arguments: %w", err)
	}
	to, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected transfer recipient type %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected transfer amount type %T", values[1])
	}
	return &TransferCall{To: to, Amount: amount, Trailing: calldata[4+transferArgsLength:]}, nil
}

// EncodeTransfer builds ERC20 transfer calldata with trailing bytes appended
func EncodeTransfer(to common.Address, amount *big.Int, trailing []byte) ([]byte, error) {
	packed, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, err
	}
	return append(packed, trailing...), nil
}
