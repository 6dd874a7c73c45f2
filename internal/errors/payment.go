package errors

import (
	"errors"
	"fmt"
)

var ErrNoPaymentProcessorAvailable = errors.New("no processor is available")
var ErrNoPaymentsInQueue = errors.New("no payments in queue")
var ErrUnknownProcessor = errors.New("unknown payment processor")
var ErrPaymentExhausted = errors.New("payment exhausted its dispatch attempts")
var ErrInvalidPayment = errors.New("invalid payment")
var ErrRateLimited = errors.New("rate limited")

// TransportError is a network, timeout or non-2xx failure talking to a
// processor or to the shared store.
type TransportError struct {
	Op         string
	Target     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.Target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SerializationError marks a payload that can never be decoded, such as a
// malformed queue entry or a corrupted circuit record.
type SerializationError struct {
	What    string
	Payload []byte
	Err     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.What, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
