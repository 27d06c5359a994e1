package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrTransportUnavailable = errors.New("bridge: host transport not available")
	ErrListenerRemoved      = errors.New("bridge: listener removed before the event fired")
)

// HostError is a failure reported by the host itself. Payload holds the
// raw response the host sent, if any.
type HostError struct {
	Op      string
	Message string
	Payload json.RawMessage
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge: %s failed", e.Op)
	}
	return fmt.Sprintf("bridge: %s failed: %s", e.Op, e.Message)
}

// HTTPStatusError is returned by HTTPRequest for responses outside 2xx.
type HTTPStatusError struct {
	StatusCode int
	Response   HTTPResponse
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("bridge: http request returned status %d", e.StatusCode)
}

// TransportError wraps a failure of the transport call itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bridge: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newHostError(op string, raw json.RawMessage, fallback string) *HostError {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
		Message      string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	msg := body.ErrorMessage
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = fallback
	}
	return &HostError{Op: op, Message: msg, Payload: raw}
}
