package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 1 << 20
)

// BaseClient owns one WebSocket connection: a write pump fed by Send and a
// read pump handing every text frame to a callback.
type BaseClient struct {
	Conn *websocket.Conn
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewBaseClient(conn *websocket.Conn) *BaseClient {
	return &BaseClient{
		Conn: conn,
		Send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (c *BaseClient) GetSend() chan []byte {
	return c.Send
}

func (c *BaseClient) Done() <-chan struct{} {
	return c.done
}

// Enqueue queues msg for the write pump. It reports false when the client
// is closed or its buffer is full.
func (c *BaseClient) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close stops the write pump, which sends a close frame and tears the
// connection down. The read pump then returns with an error.
func (c *BaseClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *BaseClient) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReadPump reads text frames until the connection fails and returns that
// error. Closing the client ends it.
func (c *BaseClient) ReadPump(onMessage func(raw []byte)) error {
	defer func() {
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return err
		}
		onMessage(raw)
	}
}
