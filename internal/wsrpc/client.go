package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/ws"
)

var ErrClosed = errors.New("wsrpc: connection closed")

var _ bridge.Transport = (*Client)(nil)

// Client is a bridge.Transport talking to a host over a WebSocket.
type Client struct {
	*bridge.Bus

	conn    *ws.BaseClient
	logger  *slog.Logger
	pending *xsync.Map[string, chan Frame]
	events  chan Frame

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error
}

// Dial connects to the host at url and starts the client's pumps.
func Dial(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsrpc: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("wsrpc: dial %s: %w", url, err)
	}
	return NewClient(conn, logger), nil
}

// NewClient wraps an established connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		Bus:     bridge.NewBus(),
		conn:    ws.NewBaseClient(conn),
		logger:  logger.With("component", "wsrpc"),
		pending: xsync.NewMap[string, chan Frame](),
		events:  make(chan Frame, 64),
		closed:  make(chan struct{}),
	}

	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.conn.WritePump()
	}()
	go func() {
		defer c.wg.Done()
		err := c.conn.ReadPump(c.handle)
		c.shutdown(err)
	}()
	go func() {
		defer c.wg.Done()
		c.eventLoop()
	}()
	return c
}

func (c *Client) handle(raw []byte) {
	f, err := Decode(raw)
	if err != nil {
		c.logger.Warn("dropping frame", "err", err)
		return
	}

	switch f.Type {
	case FrameResult:
		ch, ok := c.pending.LoadAndDelete(f.ID)
		if !ok {
			c.logger.Debug("result for unknown call", "id", f.ID)
			return
		}
		ch <- f
	case FrameEvent:
		select {
		case c.events <- f:
		case <-c.closed:
		}
	default:
		c.logger.Warn("unexpected frame from host", "type", f.Type)
	}
}

// eventLoop delivers events off the read pump so listeners may call back
// into the host.
func (c *Client) eventLoop() {
	for {
		select {
		case f := <-c.events:
			n := c.Dispatch(f.Event, f.Detail)
			c.logger.Debug("host event", "event", f.Event, "listeners", n)
		case <-c.closed:
			return
		}
	}
}

func (c *Client) CallHandler(ctx context.Context, handler string, args ...any) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, c.Err()
	default:
	}

	id := uuid.NewString()
	call, err := NewCall(id, handler, args...)
	if err != nil {
		return nil, err
	}
	raw, err := call.Encode()
	if err != nil {
		return nil, err
	}

	ch := make(chan Frame, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	if !c.conn.Enqueue(raw) {
		return nil, fmt.Errorf("wsrpc: %s not sent: %w", handler, ErrClosed)
	}

	select {
	case f := <-ch:
		if f.Error != "" {
			return nil, errors.New(f.Error)
		}
		if len(f.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return f.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.Err()
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Err returns ErrClosed, wrapping the read error that ended the
// connection if there was one.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
			c.err = fmt.Errorf("%w: %v", ErrClosed, cause)
		}
		c.mu.Unlock()

		close(c.closed)
		c.conn.Close()
		c.logger.Debug("connection closed", "cause", cause)
	})
}

// Close ends the connection and waits for the pumps to exit. Pending calls
// fail with ErrClosed.
func (c *Client) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}
