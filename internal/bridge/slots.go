package bridge

import "sync"

// Slots keeps at most one listener per event name on top of an Events
// source. Registering a listener for a name removes the previous one first,
// so repeated setup never leaves stale handlers behind.
type Slots struct {
	events Events

	mu    sync.Mutex
	gen   uint64
	slots map[string]*slot
}

type slot struct {
	gen    uint64
	remove func()
	evict  func()
}

func NewSlots(events Events) *Slots {
	return &Slots{
		events: events,
		slots:  make(map[string]*slot),
	}
}

// Set registers fn as the only listener for event.
func (s *Slots) Set(event string, fn EventFunc) {
	s.Replace(event, fn, nil)
}

// Replace registers fn as the only listener for event and returns the
// generation of the new slot. If a previous listener was evicted, its
// onEvict hook runs after the new listener is in place.
func (s *Slots) Replace(event string, fn EventFunc, onEvict func()) uint64 {
	s.mu.Lock()
	prev := s.slots[event]
	if prev != nil {
		prev.remove()
	}

	s.gen++
	cur := &slot{
		gen:    s.gen,
		remove: s.events.AddEventListener(event, fn),
		evict:  onEvict,
	}
	s.slots[event] = cur
	s.mu.Unlock()

	if prev != nil && prev.evict != nil {
		prev.evict()
	}
	return cur.gen
}

// Release removes the listener for event if it is still the one registered
// under gen. Used by one-shot listeners once they have fired.
func (s *Slots) Release(event string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.slots[event]
	if !ok || cur.gen != gen {
		return
	}
	cur.remove()
	delete(s.slots, event)
}

// Active reports whether a listener is registered for event.
func (s *Slots) Active(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[event]
	return ok
}

// Clear removes every listener and runs pending eviction hooks.
func (s *Slots) Clear() {
	s.mu.Lock()
	old := s.slots
	s.slots = make(map[string]*slot)
	s.mu.Unlock()

	for _, sl := range old {
		sl.remove()
		if sl.evict != nil {
			sl.evict()
		}
	}
}
