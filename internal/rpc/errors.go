package rpc

import "fmt"

// TransportError reports a failure to complete the HTTP exchange: dial, TLS,
// timeout, or a non-200 status. Safe to retry on a later tick.
type TransportError struct {
	Status int // non-zero when an HTTP status was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rpc transport: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("rpc transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a well-formed response the remote rejected (an error
// object) or one that violates the protocol (mismatched correlation id).
// The request may have been processed; callers must not blindly retry.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc protocol: %s", e.Message)
}

// SerializationError reports a response body that is not well-formed for the
// expected shape. Always a defect on one side or the other.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("rpc decode: %v", e.Err) }

func (e *SerializationError) Unwrap() error { return e.Err }
