package bridge

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Lifecycle holds the page handlers for host lifecycle events. Nil handlers
// are skipped.
type Lifecycle struct {
	OnReady  func()
	OnResume func()
	OnPaused func()
	OnStop   func()
}

// MiniApp is one lifecycle listener group. Every MiniApp owns its own
// registrations, so building several never makes a handler fire twice.
type MiniApp struct {
	handlers Lifecycle
	logger   *slog.Logger

	mu      sync.Mutex
	closed  bool
	removes []func()
	closers []func()
}

var lifecycleEvents = []string{EventReady, EventResumed, EventPaused, EventStopped}

// NewMiniApp subscribes l to the lifecycle events raised by events. A nil
// events source yields a group that only fires through Trigger.
func NewMiniApp(events Events, l Lifecycle, logger *slog.Logger) *MiniApp {
	if logger == nil {
		logger = slog.Default()
	}
	a := &MiniApp{handlers: l, logger: logger}

	if events != nil {
		for _, name := range lifecycleEvents {
			event := name
			a.removes = append(a.removes, events.AddEventListener(event, func(json.RawMessage) {
				a.Trigger(event)
			}))
		}
	}

	logger.Debug("mini app lifecycle registered", "listeners", len(a.removes))
	return a
}

// Trigger runs the handler bound to a lifecycle event. It is a no-op once
// the group is closed or for events that are not lifecycle events.
func (a *MiniApp) Trigger(event string) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}

	var fn func()
	switch event {
	case EventReady:
		fn = a.handlers.OnReady
	case EventResumed:
		fn = a.handlers.OnResume
	case EventPaused:
		fn = a.handlers.OnPaused
	case EventStopped:
		fn = a.handlers.OnStop
	default:
		return
	}

	a.logger.Debug("mini app lifecycle event", "event", event)
	if fn != nil {
		fn()
	}
}

// TriggerReady fires the ready handler by hand, for hosts whose ready event
// was raised before the page subscribed.
func (a *MiniApp) TriggerReady() {
	a.Trigger(EventReady)
}

// OnClose registers fn to run when the group is closed.
func (a *MiniApp) OnClose(fn func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		fn()
		return
	}
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// Close removes every listener of the group. It is safe to call repeatedly.
func (a *MiniApp) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	removes, closers := a.removes, a.closers
	a.removes, a.closers = nil, nil
	a.mu.Unlock()

	for _, remove := range removes {
		remove()
	}
	for _, fn := range closers {
		fn()
	}
}
