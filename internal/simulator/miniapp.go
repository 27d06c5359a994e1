package simulator

import (
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

// NewMiniApp builds a lifecycle group on the simulator's bus. The group's
// ready handler fires after ReadyDelay; other groups are not affected.
func (s *Simulator) NewMiniApp(l bridge.Lifecycle) *bridge.MiniApp {
	app := bridge.NewMiniApp(s, l, s.logger)

	ready := s.schedule(s.opts.ReadyDelay, func() {
		s.logger.Debug("simulated ready")
		app.TriggerReady()
	})
	app.OnClose(func() { s.cancel(ready) })

	if d := s.opts.AutoResumeAfter; d > 0 {
		s.logger.Warn("simulated mini app will auto resume", "after", d)
		resume := s.schedule(d, func() {
			app.Trigger(bridge.EventResumed)
		})
		app.OnClose(func() { s.cancel(resume) })
	}

	return app
}

func (s *Simulator) schedule(d time.Duration, fn func()) *time.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, pending := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()
		if pending {
			fn()
		}
	})
	s.timers[t] = struct{}{}
	return t
}

func (s *Simulator) cancel(t *time.Timer) {
	if t == nil {
		return
	}
	t.Stop()
	s.mu.Lock()
	delete(s.timers, t)
	s.mu.Unlock()
}
