package bridge

import (
	"context"
	"fmt"
)

// Callbacks receives the outcome of an asynchronous operation. Exactly one
// of them runs, once.
type Callbacks[T any] struct {
	OnSuccess func(T)
	OnFail    func(error)
}

// Run calls op and turns a panic inside it into an error.
func Run[T any](ctx context.Context, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("bridge: operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// Go runs op on its own goroutine and reports the outcome through cb.
func Go[T any](ctx context.Context, op func(context.Context) (T, error), cb Callbacks[T]) {
	go func() {
		v, err := Run(ctx, op)
		if err != nil {
			if cb.OnFail != nil {
				cb.OnFail(err)
			}
			return
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(v)
		}
	}()
}

// GoDialog shows d and routes the answer to onConfirm or onDismiss.
func GoDialog(ctx context.Context, h Host, d Dialog, onConfirm, onDismiss func()) {
	Go(ctx, func(ctx context.Context) (bool, error) {
		return h.ShowDialog(ctx, d), nil
	}, Callbacks[bool]{
		OnSuccess: func(confirmed bool) {
			if confirmed {
				if onConfirm != nil {
					onConfirm()
				}
				return
			}
			if onDismiss != nil {
				onDismiss()
			}
		},
		OnFail: func(error) {
			if onDismiss != nil {
				onDismiss()
			}
		},
	})
}
