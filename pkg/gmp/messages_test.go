package gmp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(b byte) [32]byte {
	var a [32]byte
	for i := range a {
		a[i] = b
	}
	return a
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []uint64{0, 1, 1000, math.MaxUint64} {
		req := &IntentRequirements{
			IntentID:       filled(0x11),
			RequesterAddr:  filled(0x22),
			AmountRequired: amount,
			TokenAddr:      filled(0x33),
			SolverAddr:     filled(0x44),
			Expiry:         amount,
		}
		buf := req.Encode()
		decodedReq, err := DecodeIntentRequirements(buf[:])
		require.NoError(t, err)
		assert.Equal(t, req, decodedReq)

		conf := &EscrowConfirmation{
			IntentID:       filled(0x11),
			EscrowID:       filled(0x55),
			AmountEscrowed: amount,
			TokenAddr:      filled(0x33),
			CreatorAddr:    filled(0x22),
		}
		cbuf := conf.Encode()
		decodedConf, err := DecodeEscrowConfirmation(cbuf[:])
		require.NoError(t, err)
		assert.Equal(t, conf, decodedConf)

		proof := &FulfillmentProof{
			IntentID:        filled(0x11),
			SolverAddr:      filled(0x44),
			AmountFulfilled: amount,
			Timestamp:       amount,
		}
		pbuf := proof.Encode()
		decodedProof, err := DecodeFulfillmentProof(pbuf[:])
		require.NoError(t, err)
		assert.Equal(t, proof, decodedProof)
	}
}

func TestEncodeLayout(t *testing.T) {
	req := &IntentRequirements{AmountRequired: 0x0102030405060708, Expiry: 1}
	buf := req.Encode()

	assert.Equal(t, byte(0x01), buf[0])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[65:73])
	assert.Equal(t, byte(1), buf[144])

	proof := &FulfillmentProof{Timestamp: 0xff}
	pbuf := proof.Encode()
	assert.Equal(t, byte(0x03), pbuf[0])
	assert.Equal(t, byte(0xff), pbuf[80])
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := DecodeIntentRequirements(make([]byte, 144))

	var lengthErr *InvalidLengthError
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, 145, lengthErr.Expected)
	assert.Equal(t, 144, lengthErr.Got)
	assert.Equal(t, "invalid message length: expected 145 bytes, got 144", err.Error())
}

func TestDecodeRejectsWrongType(t *testing.T) {
	buf := make([]byte, IntentRequirementsSize)
	buf[0] = byte(TypeEscrowConfirmation)

	_, err := DecodeIntentRequirements(buf)

	var typeErr *InvalidMessageTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, TypeIntentRequirements, typeErr.Expected)
	assert.Equal(t, TypeEscrowConfirmation, typeErr.Got)
	assert.Equal(t, "invalid message type: expected 0x01, got 0x02", err.Error())
}

func TestNoTypeDecodesAsAnother(t *testing.T) {
	req := (&IntentRequirements{}).Encode()
	conf := (&EscrowConfirmation{}).Encode()
	proof := (&FulfillmentProof{}).Encode()

	_, err := DecodeEscrowConfirmation(req[:])
	assert.Error(t, err)
	_, err = DecodeFulfillmentProof(conf[:])
	assert.Error(t, err)
	_, err = DecodeIntentRequirements(proof[:])
	assert.Error(t, err)
}

func TestPeekType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected MessageType
		errCheck func(t *testing.T, err error)
	}{
		{name: "requirements", data: []byte{0x01}, expected: TypeIntentRequirements},
		{name: "confirmation", data: []byte{0x02, 0xff}, expected: TypeEscrowConfirmation},
		{name: "proof", data: []byte{0x03}, expected: TypeFulfillmentProof},
		{
			name: "empty",
			data: nil,
			errCheck: func(t *testing.T, err error) {
				var lengthErr *InvalidLengthError
				require.ErrorAs(t, err, &lengthErr)
				assert.Equal(t, 1, lengthErr.Expected)
				assert.Equal(t, 0, lengthErr.Got)
			},
		},
		{
			name: "unknown",
			data: []byte{0x09},
			errCheck: func(t *testing.T, err error) {
				var unknown UnknownMessageTypeError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, UnknownMessageTypeError(0x09), unknown)
				assert.Equal(t, "unknown message type: 0x09", err.Error())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekType(tt.data)
			if tt.errCheck != nil {
				tt.errCheck(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeDispatches(t *testing.T) {
	proof := &FulfillmentProof{IntentID: filled(0xaa), AmountFulfilled: 7}
	buf := proof.Encode()

	msg, err := Decode(buf[:])
	require.NoError(t, err)
	assert.Equal(t, TypeFulfillmentProof, msg.Type())
	assert.Equal(t, filled(0xaa), msg.GetIntentID())
	assert.Equal(t, proof, msg)

	_, err = Decode(buf[:80])
	assert.Error(t, err)
}
