// Package term runs a loop inside a terminal through tcell.
//
// Terminals report key presses but never key releases, so a key delivered by
// one pump stays held until a pump two update phases later that saw no new
// press of it. That keeps JustPressed visible for one whole frame and lets
// auto-repeat hold a key down.
package term

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/plus3/frameloop/loop"
)

// specialBase offsets tcell's non-rune keys past the Unicode range so they can
// share the loop.Key space with runes.
const specialBase = 0x110000

// ErrDisposed is returned when drawing to a surface after Dispose.
var ErrDisposed = errors.New("term: surface disposed")

// eventBuffer is the number of tcell events queued between pumps.
const eventBuffer = 128

// RuneKey returns the loop key for a printable character.
func RuneKey(r rune) loop.Key {
	return loop.Key(r)
}

// SpecialKey returns the loop key for a tcell key such as tcell.KeyEscape.
func SpecialKey(k tcell.Key) loop.Key {
	return loop.Key(specialBase + int32(k))
}

// KeyOf maps a tcell key event to a loop key.
func KeyOf(ev *tcell.EventKey) loop.Key {
	if ev.Key() == tcell.KeyRune {
		return RuneKey(ev.Rune())
	}
	return SpecialKey(ev.Key())
}

// pointerButtons are the mouse bits reported as loop buttons; wheel bits are not.
const pointerButtons = tcell.Button1 | tcell.Button2 | tcell.Button3 | tcell.Button4 |
	tcell.Button5 | tcell.Button6 | tcell.Button7 | tcell.Button8

// ButtonOf returns the loop button for a single tcell button bit, numbered
// from 1 for tcell.Button1.
func ButtonOf(bit tcell.ButtonMask) loop.Button {
	for i := 0; i < 8; i++ {
		if bit == tcell.Button1<<i {
			return loop.Button(i + 1)
		}
	}
	return 0
}

// Terminal is a loop.Window and loop.EventPump backed by a tcell screen.
type Terminal struct {
	screen  tcell.Screen
	surface *Surface

	mu      sync.Mutex
	input   *loop.InputState
	events  chan tcell.Event
	quit    chan struct{}
	pumps   int
	pressed map[loop.Key]int
	buttons tcell.ButtonMask

	resized atomic.Bool
}

// Open initializes the controlling terminal with mouse reporting enabled.
func Open() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	return New(screen), nil
}

// New wraps an initialized screen. The terminal takes ownership of it and
// finalizes it when the surface is disposed.
func New(screen tcell.Screen) *Terminal {
	t := &Terminal{
		screen:  screen,
		pressed: make(map[loop.Key]int),
	}
	t.surface = &Surface{term: t}
	return t
}

// Screen returns the underlying tcell screen.
func (t *Terminal) Screen() tcell.Screen {
	return t.screen
}

func (t *Terminal) Surface() (loop.Surface, error) {
	return t.surface, nil
}

// Attach starts forwarding tcell events. They are applied to in by PumpEvents.
func (t *Terminal) Attach(in *loop.InputState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quit != nil {
		return
	}
	t.input = in
	t.events = make(chan tcell.Event, eventBuffer)
	t.quit = make(chan struct{})
	go t.screen.ChannelEvents(t.events, t.quit)
}

// Detach stops event forwarding and drops any queued events.
func (t *Terminal) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quit == nil {
		return
	}
	close(t.quit)
	t.quit = nil
	t.events = nil
	t.input = nil
}

// PumpEvents applies every queued event to the attached InputState without
// blocking.
func (t *Terminal) PumpEvents() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.input == nil {
		return
	}
	t.pumps++
	t.releaseStale()

	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.apply(ev)
		default:
			return
		}
	}
}

// releaseStale lets go of keys whose last press is two pumps old.
func (t *Terminal) releaseStale() {
	for k, pump := range t.pressed {
		if t.pumps-pump >= 2 {
			t.input.KeyUp(k)
			delete(t.pressed, k)
		}
	}
}

func (t *Terminal) apply(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		k := KeyOf(ev)
		t.input.KeyDown(k)
		t.pressed[k] = t.pumps

	case *tcell.EventMouse:
		x, y := ev.Position()
		t.input.PointerMove(x, y)

		mask := ev.Buttons() & pointerButtons
		changed := mask ^ t.buttons
		for i := 0; i < 8; i++ {
			bit := tcell.Button1 << i
			if changed&bit == 0 {
				continue
			}
			if mask&bit != 0 {
				t.input.ButtonDown(ButtonOf(bit))
			} else {
				t.input.ButtonUp(ButtonOf(bit))
			}
		}
		t.buttons = mask

	case *tcell.EventResize:
		t.resized.Store(true)

	case *tcell.EventFocus:
		if !ev.Focused {
			t.input.Reset()
			clear(t.pressed)
			t.buttons = 0
		}
	}
}

// Surface presents frames to the terminal. tcell keeps its own back buffer and
// Show only writes changed cells, so a frame is never lost; a resize instead
// forces a full resync and a redraw of the frame.
type Surface struct {
	term     *Terminal
	disposed atomic.Bool
}

func (s *Surface) Acquire() (loop.Canvas, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	return &Canvas{screen: s.term.screen}, nil
}

func (s *Surface) ContentsRestored() bool {
	if !s.term.resized.Swap(false) {
		return false
	}
	s.term.screen.Sync()
	return true
}

func (s *Surface) Show() error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	s.term.screen.Show()
	return nil
}

func (s *Surface) ContentsLost() bool { return false }

func (s *Surface) Size() (width, height int) {
	return s.term.screen.Size()
}

// Dispose restores the terminal. It is safe to call more than once.
func (s *Surface) Dispose() error {
	if s.disposed.CompareAndSwap(false, true) {
		s.term.screen.Fini()
	}
	return nil
}

// Canvas draws cells into the screen's back buffer for one frame.
type Canvas struct {
	screen   tcell.Screen
	released bool
}

func (c *Canvas) Size() (width, height int) {
	return c.screen.Size()
}

func (c *Canvas) Clear() {
	if c.released {
		return
	}
	c.screen.Clear()
}

func (c *Canvas) Release() {
	c.released = true
}

// SetContent sets one cell. Drawing after Release is ignored.
func (c *Canvas) SetContent(x, y int, r rune, style tcell.Style) {
	if c.released {
		return
	}
	c.screen.SetContent(x, y, r, nil, style)
}

// SetString writes s from (x, y) rightwards, clipped to the screen width.
func (c *Canvas) SetString(x, y int, s string, style tcell.Style) {
	if c.released {
		return
	}
	w, _ := c.screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		c.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// Fill sets every cell to r.
func (c *Canvas) Fill(r rune, style tcell.Style) {
	if c.released {
		return
	}
	c.screen.Fill(r, style)
}
