package bridge

import (
	"fmt"
	"sync"
)

var (
	mu     sync.RWMutex
	global *NativeTransport
)

// Register is called once from native (Swift/Kotlin) before Start().
func Register(b NativeBridge) *NativeTransport {
	t := NewNativeTransport(b)

	mu.Lock()
	global = t
	mu.Unlock()

	return t
}

// Unregister forgets the registered bridge; later lookups fall back to the
// simulator.
func Unregister() {
	mu.Lock()
	global = nil
	mu.Unlock()
}

// Get returns the registered transport. Panics if Register was never called.
func Get() *NativeTransport {
	t, err := Safe()
	if err != nil {
		panic("bridge: no NativeBridge registered, call bridge.Register() before bridge.Start()")
	}
	return t
}

// Safe returns the transport and an error instead of panicking.
func Safe() (*NativeTransport, error) {
	mu.RLock()
	defer mu.RUnlock()

	if global == nil {
		return nil, fmt.Errorf("bridge: no NativeBridge registered")
	}
	return global, nil
}
