package ws

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type bufClient struct {
	got  [][]byte
	full bool
	done chan struct{}
}

func (c *bufClient) Enqueue(msg []byte) bool {
	if c.full {
		return false
	}
	c.got = append(c.got, msg)
	return true
}

func (c *bufClient) Done() <-chan struct{} { return c.done }

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := &bufClient{done: make(chan struct{})}
	b := &bufClient{done: make(chan struct{}), full: true}
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.Count())

	assert.Equal(t, 1, h.Broadcast([]byte("hi")))
	assert.Equal(t, [][]byte{[]byte("hi")}, a.got)
	assert.Equal(t, 0, h.Broadcast(nil))

	h.Unregister(a)
	h.Unregister(a)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 0, h.Broadcast([]byte("again")))
}

func TestBaseClient_EnqueueAfterClose(t *testing.T) {
	c := NewBaseClient(nil)
	assert.True(t, c.Enqueue([]byte("x")))

	c.Close()
	c.Close()
	assert.False(t, c.Enqueue([]byte("y")))

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}
