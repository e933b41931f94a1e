package optima

import (
	"errors"
)

// Reason records why a request/response cycle failed. It exists for logging;
// callers that surface failures to users treat every reason the same.
type Reason string

const (
	ReasonConnect  Reason = "connect"  // dial, TLS, reset, body read
	ReasonStatus   Reason = "status"   // non-2xx response
	ReasonDecode   Reason = "decode"   // body is not JSON
	ReasonCanceled Reason = "canceled" // caller context done
)

// TransportError is any failure to obtain a parsed response from the
// prediction service.
type TransportError struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport failure.
func NewTransportError(reason Reason, statusCode int, err error) *TransportError {
	return &TransportError{Reason: reason, StatusCode: statusCode, Err: err}
}

// AsTransport returns the TransportError in err's chain, if any.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
