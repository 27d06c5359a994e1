package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// NativeBridge is implemented by the native side (Swift/Kotlin).
// gomobile exposes this as an interface that native code can satisfy.
//
// Rules for gomobile compatibility:
//   - methods may only use primitive types, strings, []byte, or other
//     gomobile-bound types as parameters and return values
//   - no variadic parameters
//   - errors are returned as a second return value
type NativeBridge interface {
	// CallHandler invokes a named host handler. argsJSON is a JSON array of
	// positional arguments; the returned string is the JSON result.
	CallHandler(handler string, argsJSON string) (string, error)
}

var _ Transport = (*NativeTransport)(nil)

// NativeTransport adapts a NativeBridge to Transport. Native code delivers
// host events through DispatchEvent.
type NativeTransport struct {
	*Bus
	native NativeBridge
}

func NewNativeTransport(native NativeBridge) *NativeTransport {
	return &NativeTransport{Bus: NewBus(), native: native}
}

func (t *NativeTransport) CallHandler(
	ctx context.Context,
	handler string,
	args ...any,
) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", handler, err)
	}

	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("native %s panicked: %v", handler, r)}
			}
		}()
		raw, err := t.native.CallHandler(handler, string(argsJSON))
		done <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.raw == "" {
			return json.RawMessage("null"), nil
		}
		if !json.Valid([]byte(r.raw)) {
			return nil, fmt.Errorf("native %s returned invalid json", handler)
		}
		return json.RawMessage(r.raw), nil
	}
}

// DispatchEvent raises a host event. detailJSON may be empty.
func (t *NativeTransport) DispatchEvent(event string, detailJSON string) int {
	return t.Dispatch(event, json.RawMessage(detailJSON))
}
