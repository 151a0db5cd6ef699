package gmp

import "fmt"

// InvalidLengthError is returned when a buffer is not the fixed size of the message type
type InvalidLengthError struct {
	Expected int
	Got      int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid message length: expected %d bytes, got %d", e.Expected, e.Got)
}

// InvalidMessageTypeError is returned when decoding a buffer as the wrong message type
type InvalidMessageTypeError struct {
	Expected MessageType
	Got      MessageType
}

func (e *InvalidMessageTypeError) Error() string {
	return fmt.Sprintf("invalid message type: expected 0x%02x, got 0x%02x", byte(e.Expected), byte(e.Got))
}

// UnknownMessageTypeError is returned for an unrecognized discriminator
type UnknownMessageTypeError byte

func (e UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type: 0x%02x", byte(e))
}
