package loop

import (
	"slices"
	"sync"

	"github.com/kamstrup/intmap"
)

// Key is a platform key code. Platform adapters decide the code space.
type Key int32

// Button is a platform pointer button id.
type Button int32

// InputState tracks keyboard and pointer state between frames.
//
// Platform adapters write to it from their own goroutine while systems read it
// from the loop goroutine, so every method takes the internal lock. A press edge
// recorded by KeyDown becomes visible to JustPressed at the next BeginFrame and
// stays visible for exactly that frame unless it is consumed.
type InputState struct {
	mu sync.Mutex

	held     *intmap.Set[Key]
	pending  *intmap.Set[Key]
	edges    *intmap.Set[Key]
	consumed *intmap.Set[Key]
	buttons  *intmap.Set[Button]

	cursorX, cursorY int
	hasCursor        bool
	dragX, dragY     int
}

// NewInputState creates an empty input state.
func NewInputState() *InputState {
	return &InputState{
		held:     intmap.NewSet[Key](32),
		pending:  intmap.NewSet[Key](8),
		edges:    intmap.NewSet[Key](8),
		consumed: intmap.NewSet[Key](8),
		buttons:  intmap.NewSet[Button](8),
	}
}

// KeyDown marks k as held. Repeated calls while k is held do not produce a new edge.
func (in *InputState) KeyDown(k Key) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.held.Add(k) {
		in.pending.Add(k)
	}
}

// KeyUp releases k and forgets any edge or consumption recorded for it.
func (in *InputState) KeyUp(k Key) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.held.Del(k)
	in.pending.Del(k)
	in.edges.Del(k)
	in.consumed.Del(k)
}

// IsHeld reports whether k is currently down.
func (in *InputState) IsHeld(k Key) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.held.Has(k)
}

// JustPressed reports whether k went down before this frame began and its edge
// has not been consumed yet.
func (in *InputState) JustPressed(k Key) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.held.Has(k) && in.edges.Has(k) && !in.consumed.Has(k)
}

// Consume acknowledges the press edge of k so later systems, and later frames,
// do not see it again. Keys that are not held are ignored and reported as false.
func (in *InputState) Consume(k Key) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.held.Has(k) {
		return false
	}
	in.consumed.Add(k)
	return true
}

// BeginFrame starts a new input frame. Only the Loop calls this, once per
// update phase and before any system updates.
func (in *InputState) BeginFrame() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.edges, in.pending = in.pending, in.edges
	in.pending.Clear()
	in.consumed.Clear()
	in.dragX, in.dragY = 0, 0
}

// ButtonDown marks b as held.
func (in *InputState) ButtonDown(b Button) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buttons.Add(b)
}

// ButtonUp releases b.
func (in *InputState) ButtonUp(b Button) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buttons.Del(b)
}

// IsButtonHeld reports whether b is currently down.
func (in *InputState) IsButtonHeld(b Button) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buttons.Has(b)
}

// PointerMove records a new absolute pointer position and accumulates the
// movement since the previous position into the drag delta. The first move
// only seeds the cursor.
func (in *InputState) PointerMove(x, y int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	prevX, prevY := in.cursorX, in.cursorY
	in.cursorX, in.cursorY = x, y
	if !in.hasCursor {
		in.hasCursor = true
		return
	}
	in.dragX += x - prevX
	in.dragY += y - prevY
}

// Cursor returns the latest pointer position.
func (in *InputState) Cursor() (x, y int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.cursorX, in.cursorY
}

// DragDelta returns the pointer movement accumulated since the last BeginFrame.
func (in *InputState) DragDelta() (dx, dy int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.dragX, in.dragY
}

// HeldKeys returns the held keys in ascending order.
func (in *InputState) HeldKeys() []Key {
	in.mu.Lock()
	defer in.mu.Unlock()

	keys := make([]Key, 0, in.held.Len())
	for k := range in.held.All() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Reset drops all keys, buttons and pointer state, e.g. when a window loses focus.
func (in *InputState) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.held.Clear()
	in.pending.Clear()
	in.edges.Clear()
	in.consumed.Clear()
	in.buttons.Clear()
	in.cursorX, in.cursorY = 0, 0
	in.hasCursor = false
	in.dragX, in.dragY = 0, 0
}
