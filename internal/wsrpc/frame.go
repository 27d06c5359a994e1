// Package wsrpc carries host calls and host events over a WebSocket as
// JSON frames.
package wsrpc

import (
	"encoding/json"
	"fmt"
)

type FrameType string

const (
	FrameCall   FrameType = "call"
	FrameResult FrameType = "result"
	FrameEvent  FrameType = "event"
)

// Frame is the single message shape on the wire. Which fields are set
// depends on Type:
//
//	call:   id, handler, args
//	result: id, result or error
//	event:  event, detail
type Frame struct {
	Type    FrameType         `json:"type"`
	ID      string            `json:"id,omitempty"`
	Handler string            `json:"handler,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
	Event   string            `json:"event,omitempty"`
	Detail  json.RawMessage   `json:"detail,omitempty"`
}

func NewCall(id, handler string, args ...any) (Frame, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return Frame{}, fmt.Errorf("wsrpc: encode %s arg %d: %w", handler, i, err)
		}
		raw = append(raw, b)
	}
	return Frame{Type: FrameCall, ID: id, Handler: handler, Args: raw}, nil
}

// NewResult encodes v as the result of call id. A nil v is sent as null.
func NewResult(id string, v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("wsrpc: encode result: %w", err)
	}
	return Frame{Type: FrameResult, ID: id, Result: b}, nil
}

func NewError(id string, err error) Frame {
	return Frame{Type: FrameResult, ID: id, Error: err.Error()}
}

func NewEvent(event string, detail any) (Frame, error) {
	if raw, ok := detail.(json.RawMessage); ok {
		return Frame{Type: FrameEvent, Event: event, Detail: raw}, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return Frame{}, fmt.Errorf("wsrpc: encode %s detail: %w", event, err)
	}
	return Frame{Type: FrameEvent, Event: event, Detail: b}, nil
}

func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("wsrpc: decode frame: %w", err)
	}
	switch f.Type {
	case FrameCall:
		if f.ID == "" || f.Handler == "" {
			return Frame{}, fmt.Errorf("wsrpc: call frame without id or handler")
		}
	case FrameResult:
		if f.ID == "" {
			return Frame{}, fmt.Errorf("wsrpc: result frame without id")
		}
	case FrameEvent:
		if f.Event == "" {
			return Frame{}, fmt.Errorf("wsrpc: event frame without name")
		}
	default:
		return Frame{}, fmt.Errorf("wsrpc: unknown frame type %q", f.Type)
	}
	return f, nil
}
