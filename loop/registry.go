package loop

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Registry is an ordered set of systems. Insertion order is both update order
// and render order. Systems are compared by identity.
//
// The entry slice is replaced on every change, so the loop can iterate a
// snapshot while other goroutines add or remove systems.
type Registry struct {
	mu      sync.Mutex
	ctx     Context
	entries []*registryEntry
	closed  bool
	nextID  int
}

type registryEntry struct {
	id      int
	system  System
	stats   *systemStatsInternal
	removed atomic.Bool
}

// label identifies the entry in logs, e.g. "traceSystem#2". Ids count
// additions to the registry from 1 and are never reused.
func (e *registryEntry) label() string {
	return fmt.Sprintf("%s#%d", e.stats.name, e.id)
}

// NewRegistry creates a registry that injects ctx into every Attacher added to it.
func NewRegistry(ctx Context) *Registry {
	return &Registry{ctx: ctx}
}

// Add appends system and injects the registry context into it. Nil and
// already registered systems are ignored and reported as false. If injection
// fails the system is not registered. A closed registry returns ErrClosed.
//
// Attach runs while the registry is locked and must not call back into it.
func (r *Registry) Add(system System) (bool, error) {
	if isNilSystem(system) {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrClosed
	}
	if r.indexOf(system) >= 0 {
		return false, nil
	}

	if attacher, ok := system.(Attacher); ok {
		if err := attacher.Attach(r.ctx); err != nil {
			return false, err
		}
	}

	r.nextID++
	entries := make([]*registryEntry, len(r.entries), len(r.entries)+1)
	copy(entries, r.entries)
	r.entries = append(entries, &registryEntry{
		id:     r.nextID,
		system: system,
		stats:  newSystemStats(system),
	})
	return true, nil
}

// Remove unregisters system. It reports whether the system was present.
// Remove does not clean the system up; the Loop does.
func (r *Registry) Remove(system System) bool {
	return r.remove(system) != nil
}

func (r *Registry) remove(system System) *registryEntry {
	if isNilSystem(system) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(system)
	if idx < 0 {
		return nil
	}
	e := r.entries[idx]
	e.removed.Store(true)
	r.entries = slices.Delete(slices.Clone(r.entries), idx, idx+1)
	return e
}

// close empties the registry and rejects further additions.
func (r *Registry) close() []*registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.entries
	for _, e := range entries {
		e.removed.Store(true)
	}
	r.entries = nil
	r.closed = true
	return entries
}

// Contains reports whether system is registered.
func (r *Registry) Contains(system System) bool {
	if isNilSystem(system) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(system) >= 0
}

// Systems returns the registered systems in insertion order.
func (r *Registry) Systems() []System {
	entries := r.snapshot()
	systems := make([]System, len(entries))
	for i, e := range entries {
		systems[i] = e.system
	}
	return systems
}

// Len returns the number of registered systems.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats returns execution statistics for every registered system.
func (r *Registry) Stats() []SystemStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]SystemStats, len(r.entries))
	for i, e := range r.entries {
		stats[i] = SystemStats{
			ID:     e.id,
			Name:   e.stats.name,
			Update: e.stats.update.export(),
			Render: e.stats.render.export(),
		}
	}
	return stats
}

func (r *Registry) snapshot() []*registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

func (r *Registry) record(e *registryEntry, phase Phase, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch phase {
	case PhaseUpdate:
		e.stats.update.record(duration)
	case PhaseRender:
		e.stats.render.record(duration)
	}
}

func (r *Registry) indexOf(system System) int {
	for i, e := range r.entries {
		if sameSystem(e.system, system) {
			return i
		}
	}
	return -1
}

// sameSystem compares two systems by identity without panicking on
// non-comparable dynamic types.
func sameSystem(a, b System) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func isNilSystem(system System) bool {
	if system == nil {
		return true
	}
	v := reflect.ValueOf(system)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
