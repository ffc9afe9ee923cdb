package session

import "errors"

// ErrAlreadyConnected is returned by Connect while a connection handle
// exists or a connect is in flight.
var ErrAlreadyConnected = errors.New("a hub connection already exists")

// ValidationError reports missing or unusable local input. Nothing is sent
// to the hub.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConnectionError reports a failed start or an unsolicited close.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "Hub connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvocationError reports a hub method call that was rejected or could
// not complete.
type InvocationError struct {
	Method string
	Err    error
}

func (e *InvocationError) Error() string {
	return e.Method + " error: " + e.Err.Error()
}

func (e *InvocationError) Unwrap() error { return e.Err }
