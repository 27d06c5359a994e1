package protect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

// App tracks the mini app lifecycle for the whole session.
type App struct {
	svc   *Service
	title string

	mini     *bridge.MiniApp
	ready    atomic.Bool
	fallback *time.Timer

	mu       sync.Mutex
	titleSet bool
}

// Watch subscribes to the host lifecycle. Once the host is ready the back
// button closes the mini app and the app bar gets title, or the app name
// when title is empty.
func (s *Service) Watch(title string) *App {
	a := &App{svc: s, title: title}
	a.mini = s.env.NewMiniApp(bridge.Lifecycle{
		OnReady: a.onReady,
		OnResume: func() {
			s.logger.Info("mini app resumed")
		},
		OnPaused: func() {
			s.logger.Info("mini app paused")
		},
		OnStop: func() {
			s.logger.Info("mini app stopped")
		},
	})

	if d := s.opts.ReadyFallback; d > 0 {
		a.fallback = time.AfterFunc(d, func() {
			if !a.ready.Load() {
				s.logger.Warn("ready event not seen, marking mini app ready", "after", d)
				a.mini.TriggerReady()
			}
		})
	}
	return a
}

func (a *App) onReady() {
	if !a.ready.CompareAndSwap(false, true) {
		return
	}
	a.svc.logger.Info("mini app ready")

	ctx := context.Background()
	host := a.svc.host()
	host.OnBackPressed(ctx, func() {
		a.svc.logger.Info("back button pressed, closing mini app")
		a.svc.host().CloseMiniApp(ctx)
	})
	a.SetTitle(a.title, false)
}

func (a *App) Ready() bool {
	return a.ready.Load()
}

// SetTitle sets the app bar title. It does nothing before the host is ready
// and, unless force is set, after a title was already set.
func (a *App) SetTitle(title string, force bool) bool {
	if !a.Ready() {
		a.svc.logger.Warn("host not ready, app bar title not set")
		return false
	}

	a.mu.Lock()
	if a.titleSet && !force {
		a.mu.Unlock()
		return false
	}
	a.titleSet = true
	a.mu.Unlock()

	if title == "" {
		title = a.svc.opts.AppName
	}
	a.svc.host().AppBarTitle(context.Background(), title)
	return true
}

func (a *App) Close() {
	if a.fallback != nil {
		a.fallback.Stop()
	}
	a.mini.Close()
}
