package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

type Entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// TTL caches one value per key. A stale entry is still returned while a
// single background fetch refreshes it; concurrent misses share one fetch.
// A fetch that started before Invalidate never repopulates the key.
type TTL[T any] struct {
	entries *xsync.Map[string, Entry[T]]
	sfg     singleflight.Group
	ttl     time.Duration
	now     func() time.Time
	wg      sync.WaitGroup

	mu  sync.Mutex
	gen uint64
}

func NewTTL[T any](ttl time.Duration) *TTL[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[T]{
		entries: xsync.NewMap[string, Entry[T]](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *TTL[T]) Get(key string, fn func() (T, error)) (T, error) {
	gen := c.generation()

	entry, ok := c.entries.Load(key)
	if ok {
		if c.now().Sub(entry.fetchedAt) > c.ttl {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				_, _, _ = c.sfg.Do(flightKey("refresh", key, gen), func() (any, error) {
					res, err := fn()
					if err == nil {
						c.store(key, gen, Entry[T]{value: res, fetchedAt: c.now()})
					}
					return nil, err
				})
			}()
		}
		return entry.value, nil
	}

	v, err, _ := c.sfg.Do(flightKey("miss", key, gen), func() (any, error) {
		if e, ok := c.entries.Load(key); ok {
			return e, nil
		}
		res, err := fn()
		if err != nil {
			return nil, err
		}
		e := Entry[T]{value: res, fetchedAt: c.now()}
		c.store(key, gen, e)
		return e, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(Entry[T]).value, nil
}

// Invalidate drops key so the next Get fetches again.
func (c *TTL[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries.Delete(key)
}

func (c *TTL[T]) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// store keeps e unless the cache was invalidated since gen was read.
func (c *TTL[T]) store(key string, gen uint64, e Entry[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries.Store(key, e)
}

func flightKey(kind, key string, gen uint64) string {
	return kind + ":" + strconv.FormatUint(gen, 10) + ":" + key
}

func (c *TTL[T]) Len() int {
	return c.entries.Size()
}

// Wait blocks until background refreshes have finished.
func (c *TTL[T]) Wait() {
	c.wg.Wait()
}
