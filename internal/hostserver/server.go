// Package hostserver exposes a bridge.Host to pages over a WebSocket so a
// mini app running in any browser can reach a simulated or remote host.
package hostserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/dispatch"
	"github.com/arko-chat/protect/internal/metrics"
	"github.com/arko-chat/protect/internal/middleware"
	"github.com/arko-chat/protect/internal/session"
	"github.com/arko-chat/protect/internal/ws"
	"github.com/arko-chat/protect/internal/wsrpc"
)

const defaultReplaySize = 1024

// forwardedEvents are raised by the backing host for every page at once.
// Tap and date events go only to the page that registered for them.
var forwardedEvents = []string{
	bridge.EventResumed,
	bridge.EventPaused,
	bridge.EventStopped,
}

type Options struct {
	Addr string

	Host bridge.Host
	// Events, when set, is the source of lifecycle events forwarded to
	// every connected page.
	Events bridge.Events

	Tokens     *session.Tokens
	// ReplaySize bounds how many answered call ids each connection remembers.
	ReplaySize int

	// App, when set, serves the mini app itself from every path the host
	// does not claim, and the status page moves to /status.
	App http.Handler

	Title      string
	Mode       string
	Logger     *slog.Logger
}

type Server struct {
	opts       Options
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	tokens     *session.Tokens
	hub        *ws.Hub
	conns      *xsync.Map[*ws.BaseClient, struct{}]
	replaySize int

	removes []func()

	mu   sync.Mutex
	addr net.Addr
}

func New(opts Options) (*Server, error) {
	if opts.Host == nil {
		return nil, errors.New("hostserver: no host")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hostserver")

	size := opts.ReplaySize
	if size <= 0 {
		size = defaultReplaySize
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = session.NewTokens(nil, 24*time.Hour)
	}
	if opts.Title == "" {
		opts.Title = "beep Protect host"
	}

	s := &Server{
		opts:       opts,
		logger:     logger,
		dispatcher: dispatch.New(opts.Host, logger),
		tokens:     tokens,
		hub:        ws.NewHub(logger),
		conns:      xsync.NewMap[*ws.BaseClient, struct{}](),
		replaySize: size,
	}

	if opts.Events != nil {
		for _, name := range forwardedEvents {
			event := name
			s.removes = append(s.removes, opts.Events.AddEventListener(event, func(detail json.RawMessage) {
				s.broadcast(event, detail)
			}))
		}
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)

	r.Get("/status", s.handleStatus)
	if s.opts.App != nil {
		r.NotFound(s.opts.App.ServeHTTP)
	} else {
		r.Get("/", s.handleStatus)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(s.tokens, s.logger))
		r.Get("/ws", s.handleWS)
	})

	return r
}

// Addr returns the address the server listens on, once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ConnectURL returns the WebSocket URL, token included, a page dials to
// reach this host.
func (s *Server) ConnectURL(host string) (string, error) {
	tok, err := s.tokens.Issue("page")
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/ws",
		RawQuery: url.Values{"token": {tok}}.Encode(),
	}
	return u.String(), nil
}

// Connections returns the number of connected pages.
func (s *Server) Connections() int {
	return s.hub.Count()
}

// Run listens on Options.Addr and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("hostserver: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("host server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.closeConnections()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close stops forwarding host events and disconnects every page.
func (s *Server) Close() {
	for _, remove := range s.removes {
		remove()
	}
	s.removes = nil
	s.closeConnections()
}

func (s *Server) closeConnections() {
	s.conns.Range(func(c *ws.BaseClient, _ struct{}) bool {
		c.Close()
		return true
	})
}

func (s *Server) broadcast(event string, detail json.RawMessage) {
	f, err := wsrpc.NewEvent(event, detail)
	if err != nil {
		s.logger.Error("encode event", "event", event, "err", err)
		return
	}
	raw, err := f.Encode()
	if err != nil {
		return
	}
	if n := s.hub.Broadcast(raw); n > 0 {
		metrics.IncHostEvent(event)
	}
}
