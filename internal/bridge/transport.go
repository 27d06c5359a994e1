package bridge

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// EventFunc receives the detail of a host event.
type EventFunc func(detail json.RawMessage)

// Events is the host-to-page direction of a transport.
type Events interface {
	// AddEventListener subscribes fn to event and returns a function that
	// removes the subscription. The remove function is idempotent.
	AddEventListener(event string, fn EventFunc) (remove func())
}

// Transport is the low-level channel to a native host: a named call with
// positional arguments that resolves to a single JSON response, plus the
// events the host raises.
type Transport interface {
	Events
	CallHandler(ctx context.Context, handler string, args ...any) (json.RawMessage, error)
}

// Bus dispatches events to every listener registered for them.
type Bus struct {
	nextID    atomic.Uint64
	listeners *xsync.Map[string, *xsync.Map[uint64, EventFunc]]
}

func NewBus() *Bus {
	return &Bus{
		listeners: xsync.NewMap[string, *xsync.Map[uint64, EventFunc]](),
	}
}

func (b *Bus) AddEventListener(event string, fn EventFunc) func() {
	if fn == nil {
		return func() {}
	}

	id := b.nextID.Add(1)
	set, _ := b.listeners.LoadOrStore(event, xsync.NewMap[uint64, EventFunc]())
	set.Store(id, fn)

	return func() {
		if set, ok := b.listeners.Load(event); ok {
			set.Delete(id)
		}
	}
}

// Dispatch delivers detail to every listener of event on the calling
// goroutine and returns how many listeners ran.
func (b *Bus) Dispatch(event string, detail json.RawMessage) int {
	set, ok := b.listeners.Load(event)
	if !ok {
		return 0
	}

	if len(detail) == 0 {
		detail = json.RawMessage("null")
	}

	n := 0
	set.Range(func(_ uint64, fn EventFunc) bool {
		fn(detail)
		n++
		return true
	})
	return n
}

// Count returns the number of listeners currently registered for event.
func (b *Bus) Count(event string) int {
	set, ok := b.listeners.Load(event)
	if !ok {
		return 0
	}
	return set.Size()
}
