// Package sdk picks the host a mini app talks to: the native host when a
// transport is present, the simulator otherwise.
package sdk

import (
	"log/slog"
	"sync"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/simulator"
)

type Mode string

const (
	ModeNative    Mode = "native"
	ModeSimulated Mode = "simulated"
)

// TransportFunc resolves the native transport, returning nil when there is
// none.
type TransportFunc func() bridge.Transport

// RegisteredTransport looks up the transport registered from native code.
func RegisteredTransport() bridge.Transport {
	t, err := bridge.Safe()
	if err != nil {
		return nil
	}
	return t
}

type Options struct {
	// Transport is consulted on every lookup. Defaults to
	// RegisteredTransport.
	Transport TransportFunc

	Simulator simulator.Options
	Logger    *slog.Logger
}

// Switch resolves the environment on every call, so a transport registered
// after startup is picked up by the next lookup.
type Switch struct {
	resolve TransportFunc
	logger  *slog.Logger

	simOpts simulator.Options
	simOnce sync.Once
	sim     *simulator.Simulator

	mu    sync.Mutex
	hosts map[bridge.Transport]*bridge.RealHost
}

func New(opts Options) *Switch {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolve := opts.Transport
	if resolve == nil {
		resolve = RegisteredTransport
	}
	if opts.Simulator.Logger == nil {
		opts.Simulator.Logger = logger
	}
	return &Switch{
		resolve: resolve,
		logger:  logger,
		simOpts: opts.Simulator,
		hosts:   make(map[bridge.Transport]*bridge.RealHost),
	}
}

// WithTransport returns a switch pinned to t, or to the simulator when t is
// nil.
func WithTransport(t bridge.Transport, opts Options) *Switch {
	opts.Transport = func() bridge.Transport { return t }
	return New(opts)
}

func (s *Switch) Mode() Mode {
	if s.resolve() != nil {
		return ModeNative
	}
	return ModeSimulated
}

// Simulator returns the simulator shared by every simulated lookup.
func (s *Switch) Simulator() *simulator.Simulator {
	s.simOnce.Do(func() {
		s.sim = simulator.New(s.simOpts)
	})
	return s.sim
}

// Host returns the host for the current environment.
func (s *Switch) Host() bridge.Host {
	t := s.resolve()
	if t == nil {
		s.logger.Debug("using simulated host")
		return s.Simulator()
	}
	return s.realHost(t)
}

// Events returns the event source of the current environment.
func (s *Switch) Events() bridge.Events {
	if t := s.resolve(); t != nil {
		return t
	}
	return s.Simulator()
}

// NewMiniApp builds a lifecycle group for the current environment. The
// simulated group gets its ready event on a timer.
func (s *Switch) NewMiniApp(l bridge.Lifecycle) *bridge.MiniApp {
	t := s.resolve()
	if t == nil {
		return s.Simulator().NewMiniApp(l)
	}
	return bridge.NewMiniApp(t, l, s.logger)
}

// realHost keeps one RealHost per transport so single-slot listeners stay
// single across lookups.
func (s *Switch) realHost(t bridge.Transport) *bridge.RealHost {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts[t]
	if !ok {
		h = bridge.NewRealHost(t, s.logger)
		s.hosts[t] = h
	}
	return h
}

// Close releases the simulator, if one was started.
func (s *Switch) Close() {
	s.mu.Lock()
	for _, h := range s.hosts {
		h.Slots().Clear()
	}
	s.hosts = make(map[bridge.Transport]*bridge.RealHost)
	s.mu.Unlock()

	if s.sim != nil {
		s.sim.Close()
	}
}
