// Package gmp encodes and decodes the fixed-width messages exchanged between
// the hub chain and connected chains.
//
// Every message starts with a one byte type discriminator. Integers are
// big-endian and every address is 32 bytes; narrower chain addresses must be
// left-padded with zeros before encoding.
package gmp

import (
	"encoding/binary"
	"fmt"
)

// MessageType is the leading discriminator byte of a message
type MessageType byte

const (
	// TypeIntentRequirements is sent hub to connected chain when an intent is created
	TypeIntentRequirements MessageType = 0x01
	// TypeEscrowConfirmation is sent connected chain to hub when an escrow is created
	TypeEscrowConfirmation MessageType = 0x02
	// TypeFulfillmentProof is sent to the escrow host once a fulfillment is verified
	TypeFulfillmentProof MessageType = 0x03
)

// Encoded sizes in bytes, including the type byte
const (
	IntentRequirementsSize = 145
	EscrowConfirmationSize = 137
	FulfillmentProofSize   = 81
)

func (t MessageType) String() string {
	switch t {
	case TypeIntentRequirements:
		return "IntentRequirements"
	case TypeEscrowConfirmation:
		return "EscrowConfirmation"
	case TypeFulfillmentProof:
		return "FulfillmentProof"
	}
	return fmt.Sprintf("MessageType(0x%02x)", byte(t))
}

// Size returns the encoded size of the message type, or 0 if unknown
func (t MessageType) Size() int {
	switch t {
	case TypeIntentRequirements:
		return IntentRequirementsSize
	case TypeEscrowConfirmation:
		return EscrowConfirmationSize
	case TypeFulfillmentProof:
		return FulfillmentProofSize
	}
	return 0
}

// Message is any decoded GMP message
type Message interface {
	Type() MessageType
	GetIntentID() [32]byte
}

// IntentRequirements tells the connected chain what an escrow for an intent must hold
type IntentRequirements struct {
	IntentID       [32]byte
	RequesterAddr  [32]byte
	AmountRequired uint64
	TokenAddr      [32]byte
	SolverAddr     [32]byte
	Expiry         uint64
}

// EscrowConfirmation tells the hub that collateral is locked
type EscrowConfirmation struct {
	IntentID       [32]byte
	EscrowID       [32]byte
	AmountEscrowed uint64
	TokenAddr      [32]byte
	CreatorAddr    [32]byte
}

// FulfillmentProof attests that a solver delivered the desired payment
type FulfillmentProof struct {
	IntentID        [32]byte
	SolverAddr      [32]byte
	AmountFulfilled uint64
	Timestamp       uint64
}

func (m *IntentRequirements) Type() MessageType     { return TypeIntentRequirements }
func (m *IntentRequirements) GetIntentID() [32]byte { return m.IntentID }
func (m *EscrowConfirmation) Type() MessageType     { return TypeEscrowConfirmation }
func (m *EscrowConfirmation) GetIntentID() [32]byte { return m.IntentID }
func (m *FulfillmentProof) Type() MessageType       { return TypeFulfillmentProof }
func (m *FulfillmentProof) GetIntentID() [32]byte   { return m.IntentID }

// Encode serializes the message
func (m *IntentRequirements) Encode() [IntentRequirementsSize]byte {
	var buf [IntentRequirementsSize]byte
	buf[0] = byte(TypeIntentRequirements)
	copy(buf[1:33], m.IntentID[:])
	copy(buf[33:65], m.RequesterAddr[:])
	binary.BigEndian.PutUint64(buf[65:73], m.AmountRequired)
	copy(buf[73:105], m.TokenAddr[:])
	copy(buf[105:137], m.SolverAddr[:])
	binary.BigEndian.PutUint64(buf[137:145], m.Expiry)
	return buf
}

// Encode serializes the message
func (m *EscrowConfirmation) Encode() [EscrowConfirmationSize]byte {
	var buf [EscrowConfirmationSize]byte
	buf[0] = byte(TypeEscrowConfirmation)
	copy(buf[1:33], m.IntentID[:])
	copy(buf[33:65], m.EscrowID[:])
	binary.BigEndian.PutUint64(buf[65:73], m.AmountEscrowed)
	copy(buf[73:105], m.TokenAddr[:])
	copy(buf[105:137], m.CreatorAddr[:])
	return buf
}

// Encode serializes the message
func (m *FulfillmentProof) Encode() [FulfillmentProofSize]byte {
	var buf [FulfillmentProofSize]byte
	buf[0] = byte(TypeFulfillmentProof)
	copy(buf[1:33], m.IntentID[:])
	copy(buf[33:65], m.SolverAddr[:])
	binary.BigEndian.PutUint64(buf[65:73], m.AmountFulfilled)
	binary.BigEndian.PutUint64(buf[73:81], m.Timestamp)
	return buf
}

// checkHeader validates length before the discriminator so that a truncated
// message of the right type is still reported as a length error
func checkHeader(data []byte, want MessageType) error {
	if len(data) != want.Size() {
		return &InvalidLengthError{Expected: want.Size(), Got: len(data)}
	}
	if got := MessageType(data[0]); got != want {
		return &InvalidMessageTypeError{Expected: want, Got: got}
	}
	return nil
}

// DecodeIntentRequirements parses an IntentRequirements message
func DecodeIntentRequirements(data []byte) (*IntentRequirements, error) {
	if err := checkHeader(data, TypeIntentRequirements); err != nil {
		return nil, err
	}
	m := &IntentRequirements{
		AmountRequired: binary.BigEndian.Uint64(data[65:73]),
		Expiry:         binary.BigEndian.Uint64(data[137:145]),
	}
	copy(m.IntentID[:], data[1:33])
	copy(m.RequesterAddr[:], data[33:65])
	copy(m.TokenAddr[:], data[73:105])
	copy(m.SolverAddr[:], data[105:137])
	return m, nil
}

// DecodeEscrowConfirmation parses an EscrowConfirmation message
func DecodeEscrowConfirmation(data []byte) (*EscrowConfirmation, error) {
	if err := checkHeader(data, TypeEscrowConfirmation); err != nil {
		return nil, err
	}
	m := &EscrowConfirmation{
		AmountEscrowed: binary.BigEndian.Uint64(data[65:73]),
	}
	copy(m.IntentID[:], data[1:33])
	copy(m.EscrowID[:], data[33:65])
	copy(m.TokenAddr[:], data[73:105])
	copy(m.CreatorAddr[:], data[105:137])
	return m, nil
}

// DecodeFulfillmentProof parses a FulfillmentProof message
func DecodeFulfillmentProof(data []byte) (*FulfillmentProof, error) {
	if err := checkHeader(data, TypeFulfillmentProof); err != nil {
		return nil, err
	}
	m := &FulfillmentProof{
		AmountFulfilled: binary.BigEndian.Uint64(data[65:73]),
		Timestamp:       binary.BigEndian.Uint64(data[73:81]),
	}
	copy(m.IntentID[:], data[1:33])
	copy(m.SolverAddr[:], data[33:65])
	return m, nil
}

// PeekType reads the discriminator without decoding the message
func PeekType(data []byte) (MessageType, error) {
	if len(data) == 0 {
		return 0, &InvalidLengthError{Expected: 1, Got: 0}
	}
	t := MessageType(data[0])
	if t.Size() == 0 {
		return 0, UnknownMessageTypeError(data[0])
	}
	return t, nil
}

// Decode parses any known message type
func Decode(data []byte) (Message, error) {
	t, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeIntentRequirements:
		return DecodeIntentRequirements(data)
	case TypeEscrowConfirmation:
		return DecodeEscrowConfirmation(data)
	default:
		return DecodeFulfillmentProof(data)
	}
}
