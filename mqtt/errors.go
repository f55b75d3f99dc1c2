package mqtt

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("not connected to broker")
	ErrAlreadyConnected = errors.New("already connected to broker")
)

// ConnectionError is returned when the broker could not be reached or
// refused the handshake.
type ConnectionError struct {
	Broker string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Broker, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// TransportError is returned when a connected client fails to hand a
// publish to the network.
type TransportError struct {
	Topic string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cannot publish to %s: %v", e.Topic, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
