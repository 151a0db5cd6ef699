package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IntentEscrowABI is the ABI of the IntentEscrow contract events read by the verifier
const IntentEscrowABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "bytes32", "name": "intentId", "type": "bytes32"},
			{"indexed": false, "internalType": "bytes32", "name": "escrowId", "type": "bytes32"},
			{"indexed": true, "internalType": "address", "name": "requester", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": true, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "bytes32", "name": "reservedSolver", "type": "bytes32"},
			{"indexed": false, "internalType": "uint64", "name": "expiry", "type": "uint64"}
		],
		"name": "EscrowCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "bytes32", "name": "intentId", "type": "bytes32"},
			{"indexed": false, "internalType": "uint32", "name": "srcChainId", "type": "uint32"}
		],
		"name": "IntentRequirementsReceived",
		"type": "event"
	}
]`

// IntentEscrowFilterer is a log filtering Go binding around the IntentEscrow contract.
type IntentEscrowFilterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewIntentEscrowFilterer creates a new log filterer instance of IntentEscrow, bound to a specific deployed contract.
func NewIntentEscrowFilterer(address common.Address, filterer bind.ContractFilterer) (*IntentEscrowFilterer, error) {
	parsed, err := abi.JSON(strings.NewReader(IntentEscrowABI))
	if err != nil {
		return nil, err
	}
	return &IntentEscrowFilterer{contract: bind.NewBoundContract(address, parsed, nil, nil, filterer)}, nil
}

// IntentEscrowEscrowCreated represents a EscrowCreated event raised by the IntentEscrow contract.
type IntentEscrowEscrowCreated struct {
	IntentId       [32]byte
	EscrowId       [32]byte
	Requester      common.Address
	Amount         *big.Int
	Token          common.Address
	ReservedSolver [32]byte
	Expiry         uint64
	Raw            types.Log // Blockchain specific contextual infos
}

// IntentEscrowIntentRequirementsReceived represents a IntentRequirementsReceived event raised by the IntentEscrow contract.
type IntentEscrowIntentRequirementsReceived struct {
	IntentId   [32]byte
	SrcChainId uint32
	Raw        types.Log // Blockchain specific contextual infos
}

// logIterator walks filtered logs and unpacks each into a fresh event value.
type logIterator struct {
	contract *bind.BoundContract
	event    string

	logs chan types.Log        // Log channel receiving the found contract events
	sub  ethereum.Subscription // Subscription for errors, completion and termination
	done bool                  // Whether the subscription completed delivering logs
	fail error                 // Occurred error to stop iteration
}

func (it *logIterator) next(out interface{}) (types.Log, bool) {
	// If the iterator failed, stop iterating
	if it.fail != nil {
		return types.Log{}, false
	}
	// If the iterator completed, deliver directly whatever's available
	if it.done {
		select {
		case log := <-it.logs:
			if err := it.contract.UnpackLog(out, it.event, log); err != nil {
				it.fail = err
				return types.Log{}, false
			}
			return log, true
		default:
			return types.Log{}, false
		}
	}
	// Iterator still in progress, wait for either a data or an error event
	select {
	case log := <-it.logs:
		if err := it.contract.UnpackLog(out, it.event, log); err != nil {
			it.fail = err
			return types.Log{}, false
		}
		return log, true
	case err := <-it.sub.Err():
		it.done = true
		it.fail = err
		return it.next(out)
	}
}

// Error returns any retrieval or parsing error occurred during filtering.
func (it *logIterator) Error() error {
	return it.fail
}

// Close terminates the iteration process, releasing any pending underlying
// resources.
func (it *logIterator) Close() error {
	it.sub.Unsubscribe()
	return nil
}

// IntentEscrowEscrowCreatedIterator is returned from FilterEscrowCreated.
type IntentEscrowEscrowCreatedIterator struct {
	Event *IntentEscrowEscrowCreated
	logIterator
}

// Next advances the iterator to the subsequent event.
func (it *IntentEscrowEscrowCreatedIterator) Next() bool {
	event := new(IntentEscrowEscrowCreated)
	log, ok := it.next(event)
	if !ok {
		return false
	}
	event.Raw = log
	it.Event = event
	return true
}

// IntentEscrowIntentRequirementsReceivedIterator is returned from FilterIntentRequirementsReceived.
type IntentEscrowIntentRequirementsReceivedIterator struct {
	Event *IntentEscrowIntentRequirementsReceived
	logIterator
}

// Next advances the iterator to the subsequent event.
func (it *IntentEscrowIntentRequirementsReceivedIterator) Next() bool {
	event := new(IntentEscrowIntentRequirementsReceived)
	log, ok := it.next(event)
	if !ok {
		return false
	}
	event.Raw = log
	it.Event = event
	return true
}

// FilterEscrowCreated is a free log retrieval operation binding the contract event.
//
// Solidity: event EscrowCreated(bytes32 indexed intentId, bytes32 escrowId, address indexed requester, uint256 amount, address indexed token, bytes32 reservedSolver, uint64 expiry)
func (_IntentEscrow *IntentEscrowFilterer) FilterEscrowCreated(opts *bind.FilterOpts, intentId [][32]byte, requester []common.Address, token []common.Address) (*IntentEscrowEscrowCreatedIterator, error) {
	var intentIdRule []interface{}
	for _, intentIdItem := range intentId {
		intentIdRule = append(intentIdRule, intentIdItem)
	}
	var requesterRule []interface{}
	for _, requesterItem := range requester {
		requesterRule = append(requesterRule, requesterItem)
	}
	var tokenRule []interface{}
	for _, tokenItem := range token {
		tokenRule = append(tokenRule, tokenItem)
	}

	logs, sub, err := _IntentEscrow.contract.FilterLogs(opts, "EscrowCreated", intentIdRule, requesterRule, tokenRule)
	if err != nil {
		return nil, err
	}
	return &IntentEscrowEscrowCreatedIterator{logIterator: logIterator{contract: _IntentEscrow.contract, event: "EscrowCreated", logs: logs, sub: sub}}, nil
}

// FilterIntentRequirementsReceived is a free log retrieval operation binding the contract event.
//
// Solidity: event IntentRequirementsReceived(bytes32 indexed intentId, uint32 srcChainId)
func (_IntentEscrow *IntentEscrowFilterer) FilterIntentRequirementsReceived(opts *bind.FilterOpts, intentId [][32]byte) (*IntentEscrowIntentRequirementsReceivedIterator, error) {
	var intentIdRule []interface{}
	for _, intentIdItem := range intentId {
		intentIdRule = append(intentIdRule, intentIdItem)
	}

	logs, sub, err := _IntentEscrow.contract.FilterLogs(opts, "IntentRequirementsReceived", intentIdRule)
	if err != nil {
		return nil, err
	}
	return &IntentEscrowIntentRequirementsReceivedIterator{logIterator: logIterator{contract: _IntentEscrow.contract, event: "IntentRequirementsReceived", logs: logs, sub: sub}}, nil
}

// ParseEscrowCreated is a log parse operation binding the contract event.
func (_IntentEscrow *IntentEscrowFilterer) ParseEscrowCreated(log types.Log) (*IntentEscrowEscrowCreated, error) {
	event := new(IntentEscrowEscrowCreated)
	if err := _IntentEscrow.contract.UnpackLog(event, "EscrowCreated", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
