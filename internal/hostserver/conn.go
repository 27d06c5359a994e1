package hostserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/metrics"
	"github.com/arko-chat/protect/internal/ws"
	"github.com/arko-chat/protect/internal/wsrpc"
)

// calls remembers the answers given on one connection. Ids are chosen by
// the page, so they are only unique within it.
type calls struct {
	replay *lru.Cache[string, []byte]
	flight singleflight.Group
}

func newCalls(size int) (*calls, error) {
	replay, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &calls{replay: replay}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	answered, err := newCalls(s.replaySize)
	if err != nil {
		s.logger.Error("replay cache", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "err", err)
		return
	}

	client := ws.NewBaseClient(conn)
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s.conns.Store(client, struct{}{})
	s.hub.Register(client)
	metrics.IncWSConnections()
	defer func() {
		s.hub.Unregister(client)
		s.conns.Delete(client)
		metrics.DecWSConnections()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.WritePump()
	}()

	s.emit(client, bridge.EventReady, nil)

	err = client.ReadPump(func(raw []byte) {
		f, err := wsrpc.Decode(raw)
		if err != nil {
			s.logger.Warn("dropping frame", "err", err)
			return
		}
		if f.Type != wsrpc.FrameCall {
			s.logger.Warn("unexpected frame from page", "type", f.Type)
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveCall(ctx, client, answered, f)
		}()
	})
	s.logger.Debug("page disconnected", "err", err)

	cancel()
	wg.Wait()
}

// serveCall answers one call frame. A call id the connection sent before is
// answered from its replay cache; concurrent duplicates share one execution.
func (s *Server) serveCall(ctx context.Context, client *ws.BaseClient, answered *calls, f wsrpc.Frame) {
	if cached, ok := answered.replay.Get(f.ID); ok {
		metrics.IncDuplicateCall()
		s.logger.Debug("replaying call", "id", f.ID, "handler", f.Handler)
		client.Enqueue(cached)
		return
	}

	v, _, _ := answered.flight.Do(f.ID, func() (any, error) {
		emit := func(event string, detail any) {
			s.emit(client, event, detail)
		}

		var out wsrpc.Frame
		result, err := s.dispatcher.Call(ctx, f.Handler, f.Args, emit)
		if err == nil {
			out, err = wsrpc.NewResult(f.ID, result)
		}
		if err != nil {
			s.logger.Warn("call failed", "handler", f.Handler, "err", err)
			out = wsrpc.NewError(f.ID, err)
		}

		raw, err := out.Encode()
		if err != nil {
			return nil, err
		}
		answered.replay.Add(f.ID, raw)
		return raw, nil
	})

	if raw, ok := v.([]byte); ok {
		client.Enqueue(raw)
	}
}

func (s *Server) emit(client *ws.BaseClient, event string, detail any) {
	f, err := wsrpc.NewEvent(event, detail)
	if err != nil {
		s.logger.Error("encode event", "event", event, "err", err)
		return
	}
	raw, err := f.Encode()
	if err != nil {
		return
	}
	if client.Enqueue(raw) {
		metrics.IncHostEvent(event)
	}
}
