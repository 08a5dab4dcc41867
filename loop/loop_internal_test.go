package loop

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCanvas struct {
	surface *fakeSurface
}

func (c *fakeCanvas) Size() (int, int) { return c.surface.Size() }
func (c *fakeCanvas) Clear()           { c.surface.events = append(c.surface.events, "clear") }
func (c *fakeCanvas) Release()         { c.surface.released++ }

// fakeSurface answers ContentsRestored and ContentsLost from queues; an empty
// queue answers false, unless the matching always flag is set.
type fakeSurface struct {
	restored       []bool
	lost           []bool
	alwaysRestored bool
	acquireErr     error

	events []string

	acquired, released, shown, disposed int
}

func (s *fakeSurface) Acquire() (Canvas, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired++
	return &fakeCanvas{surface: s}, nil
}

func (s *fakeSurface) ContentsRestored() bool {
	if s.alwaysRestored {
		return true
	}
	return pop(&s.restored)
}

func (s *fakeSurface) Show() error {
	s.shown++
	s.events = append(s.events, "show")
	return nil
}

func (s *fakeSurface) ContentsLost() bool { return pop(&s.lost) }
func (s *fakeSurface) Size() (int, int)   { return 320, 240 }
func (s *fakeSurface) Dispose() error {
	s.disposed++
	return nil
}

func pop(queue *[]bool) bool {
	if len(*queue) == 0 {
		return false
	}
	v := (*queue)[0]
	*queue = (*queue)[1:]
	return v
}

type pumpWindow struct {
	surface *fakeSurface
	pumped  int
	onPump  func(in *InputState)
	input   *InputState
}

func (w *pumpWindow) Surface() (Surface, error) { return w.surface, nil }
func (w *pumpWindow) Attach(in *InputState)     { w.input = in }
func (w *pumpWindow) Detach()                   { w.input = nil }
func (w *pumpWindow) PumpEvents() {
	w.pumped++
	if w.onPump != nil {
		w.onPump(w.input)
	}
}

type traceSystem struct {
	BaseSystem
	name         string
	trace        *[]string
	updateErr    error
	updatePanic  bool
	renderPanic  bool
	cleanupErr   error
	cleanupPanic bool
	onUpdate     func(dt float64)
	deltas       []float64
	cleanupCount int
}

func (s *traceSystem) Update(dt float64) error {
	*s.trace = append(*s.trace, "update "+s.name)
	s.deltas = append(s.deltas, dt)
	if s.onUpdate != nil {
		s.onUpdate(dt)
	}
	if s.updatePanic {
		panic("update exploded")
	}
	return s.updateErr
}

func (s *traceSystem) Render(c Canvas) error {
	*s.trace = append(*s.trace, "render "+s.name)
	if s.renderPanic {
		panic("render exploded")
	}
	return nil
}

func (s *traceSystem) Cleanup() error {
	s.cleanupCount++
	*s.trace = append(*s.trace, "cleanup "+s.name)
	if s.cleanupPanic {
		panic("cleanup exploded")
	}
	return s.cleanupErr
}

func newTestLoop(t *testing.T, opts Options) (*Loop, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts.Logger = log.New(&buf, "", 0)
	return New(opts), &buf
}

func TestRunFrameStallGuard(t *testing.T) {
	t.Run("update skipped above threshold, render still runs", func(t *testing.T) {
		l, logs := newTestLoop(t, Options{})
		surface := &fakeSurface{}
		l.surface = surface

		var trace []string
		sys := &traceSystem{name: "a", trace: &trace}
		require.NoError(t, l.Add(sys))

		l.runFrame(0.25)

		assert.Equal(t, []string{"render a"}, trace)
		assert.Equal(t, 1, surface.shown)
		assert.Equal(t, int64(1), l.Stats().SkippedUpdates)
		assert.Contains(t, logs.String(), "skipping update")
		assert.InDelta(t, 0.25, l.Delta(), 1e-9)
	})

	t.Run("delta equal to threshold still updates", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		var trace []string
		sys := &traceSystem{name: "a", trace: &trace}
		require.NoError(t, l.Add(sys))

		l.runFrame(0.1)

		assert.Equal(t, []string{"update a"}, trace)
		assert.Equal(t, int64(0), l.Stats().SkippedUpdates)
	})

	t.Run("delta is passed through unclamped", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{StallThreshold: time.Second})
		var trace []string
		sys := &traceSystem{name: "a", trace: &trace}
		require.NoError(t, l.Add(sys))

		l.runFrame(0.5)

		assert.Equal(t, []float64{0.5}, sys.deltas)
	})
}

func TestUpdateIsolation(t *testing.T) {
	l, logs := newTestLoop(t, Options{})
	var trace []string
	a := &traceSystem{name: "a", trace: &trace, updateErr: errors.New("bad input")}
	b := &traceSystem{name: "b", trace: &trace, updatePanic: true}
	c := &traceSystem{name: "c", trace: &trace}
	for _, s := range []System{a, b, c} {
		require.NoError(t, l.Add(s))
	}

	l.runFrame(0.016)

	assert.Equal(t, []string{"update a", "update b", "update c"}, trace)
	assert.Equal(t, int64(2), l.Stats().UpdateErrors)
	assert.Contains(t, logs.String(), "Update: system traceSystem#1: bad input")
	assert.Contains(t, logs.String(), "Update: system traceSystem#2: panic: update exploded")
}

func TestTeardownCleanupIsolation(t *testing.T) {
	surface := &fakeSurface{}
	l, logs := newTestLoop(t, Options{Window: &pumpWindow{surface: surface}})

	var trace []string
	a := &traceSystem{name: "a", trace: &trace, cleanupErr: errors.New("flush failed")}
	b := &traceSystem{name: "b", trace: &trace, cleanupPanic: true}
	c := &traceSystem{name: "c", trace: &trace}
	for _, s := range []System{a, b, c} {
		require.NoError(t, l.Add(s))
	}

	require.NoError(t, l.Start())
	l.Stop()

	var cleanups []string
	for _, event := range trace {
		if strings.HasPrefix(event, "cleanup ") {
			cleanups = append(cleanups, event)
		}
	}
	assert.Equal(t, []string{"cleanup a", "cleanup b", "cleanup c"}, cleanups)
	assert.Equal(t, 1, surface.disposed, "failing cleanups do not prevent disposal")
	assert.Equal(t, int64(2), l.Stats().CleanupErrors)
	assert.Contains(t, logs.String(), "Cleanup: system traceSystem#1: flush failed")
	assert.Contains(t, logs.String(), "Cleanup: system traceSystem#2: panic: cleanup exploded")
}

func TestRemoveBeforeStartCleansUpOnce(t *testing.T) {
	l, _ := newTestLoop(t, Options{})

	var trace []string
	a := &traceSystem{name: "a", trace: &trace}
	b := &traceSystem{name: "b", trace: &trace}
	require.NoError(t, l.Add(a))
	require.NoError(t, l.Add(b))

	require.True(t, l.Remove(a))
	assert.Equal(t, 1, a.cleanupCount, "cleanup runs before Remove returns")
	assert.False(t, l.Remove(a))

	l.Stop()
	assert.Equal(t, 1, a.cleanupCount, "teardown does not clean up a removed system")
	assert.Equal(t, 1, b.cleanupCount)
	assert.Equal(t, []string{"cleanup a", "cleanup b"}, trace)
}

func TestRenderPhase(t *testing.T) {
	t.Run("clears, renders in order and releases after a panic", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		surface := &fakeSurface{}
		l.surface = surface

		var trace []string
		a := &traceSystem{name: "a", trace: &trace}
		b := &traceSystem{name: "b", trace: &trace, renderPanic: true}
		c := &traceSystem{name: "c", trace: &trace}
		for _, s := range []System{a, b, c} {
			require.NoError(t, l.Add(s))
		}

		l.render(l.registry.snapshot())

		assert.Equal(t, []string{"render a", "render b", "render c"}, trace)
		assert.Equal(t, []string{"clear", "show"}, surface.events)
		assert.Equal(t, 1, surface.acquired)
		assert.Equal(t, 1, surface.released)
		assert.Equal(t, int64(1), l.Stats().RenderErrors)
	})

	t.Run("redraws while contents restored", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		surface := &fakeSurface{restored: []bool{true, true, false}}
		l.surface = surface

		l.render(nil)

		assert.Equal(t, 3, surface.acquired)
		assert.Equal(t, 3, surface.released)
		assert.Equal(t, 1, surface.shown)
		assert.Equal(t, int64(2), l.Stats().RestoredRetries)
	})

	t.Run("repeats acquire, draw and show while contents lost", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		surface := &fakeSurface{
			restored: []bool{false, true, false},
			lost:     []bool{true, false},
		}
		l.surface = surface

		l.render(nil)

		assert.Equal(t, []string{"clear", "show", "clear", "clear", "show"}, surface.events)
		assert.Equal(t, 3, surface.released)
		assert.Equal(t, int64(1), l.Stats().LostRetries)
		assert.Equal(t, int64(1), l.Stats().RestoredRetries)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		l, logs := newTestLoop(t, Options{MaxPresentRetries: 2})
		surface := &fakeSurface{alwaysRestored: true}
		l.surface = surface

		l.render(nil)

		assert.Equal(t, 3, surface.acquired)
		assert.Equal(t, 1, surface.shown)
		assert.Contains(t, logs.String(), "presenting anyway")
	})

	t.Run("acquire failure drops the frame", func(t *testing.T) {
		l, logs := newTestLoop(t, Options{})
		surface := &fakeSurface{acquireErr: errors.New("device gone")}
		l.surface = surface

		l.render(nil)

		assert.Equal(t, 0, surface.shown)
		assert.Contains(t, logs.String(), "acquire canvas: device gone")
	})

	t.Run("headless loops skip rendering", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		var trace []string
		require.NoError(t, l.Add(&traceSystem{name: "a", trace: &trace}))

		l.runFrame(0.016)

		assert.Equal(t, []string{"update a"}, trace)
	})
}

func TestUpdatePhaseInput(t *testing.T) {
	t.Run("frame begins before systems update", func(t *testing.T) {
		l, _ := newTestLoop(t, Options{})
		var trace []string
		var seen []bool
		sys := &traceSystem{name: "a", trace: &trace}
		sys.onUpdate = func(float64) {
			seen = append(seen, sys.Input().JustPressed(Key('A')))
			dx, dy := sys.Input().DragDelta()
			trace = append(trace, fmt.Sprintf("drag %d,%d", dx, dy))
		}
		require.NoError(t, l.Add(sys))

		l.Input().PointerMove(0, 0)
		l.Input().PointerMove(5, 5)
		l.Input().KeyDown(Key('A'))
		l.runFrame(0.016)
		l.runFrame(0.016)

		assert.Equal(t, []bool{true, false}, seen)
		assert.Contains(t, trace, "drag 0,0")
		assert.NotContains(t, trace, "drag 5,5")
	})

	t.Run("events are pumped once per update phase", func(t *testing.T) {
		window := &pumpWindow{surface: &fakeSurface{}}
		l, _ := newTestLoop(t, Options{Window: window})
		l.window.Attach(l.input)
		l.surface = window.surface

		l.runFrame(0.016)
		l.runFrame(0.5)
		l.runFrame(0.016)

		assert.Equal(t, 2, window.pumped)
	})

	t.Run("pumped presses become edges on the next frame", func(t *testing.T) {
		window := &pumpWindow{surface: &fakeSurface{}}
		window.onPump = func(in *InputState) {
			if window.pumped == 1 {
				in.KeyDown(Key('Q'))
			}
		}
		l, _ := newTestLoop(t, Options{Window: window})
		l.window.Attach(l.input)

		var seen []bool
		var trace []string
		sys := &traceSystem{name: "a", trace: &trace}
		sys.onUpdate = func(float64) {
			seen = append(seen, sys.Input().JustPressed(Key('Q')))
		}
		require.NoError(t, l.Add(sys))

		l.runFrame(0.016)
		l.runFrame(0.016)
		l.runFrame(0.016)

		assert.Equal(t, []bool{false, true, false}, seen)
	})
}

func TestRemoveWhileCycleActive(t *testing.T) {
	l, _ := newTestLoop(t, Options{})
	l.cycleActive = true

	var trace []string
	a := &traceSystem{name: "a", trace: &trace}
	b := &traceSystem{name: "b", trace: &trace}
	require.NoError(t, l.Add(a))
	require.NoError(t, l.Add(b))

	require.True(t, l.Remove(a))
	assert.Equal(t, 0, a.cleanupCount, "cleanup waits for the loop goroutine")

	l.runFrame(0.016)

	assert.Equal(t, []string{"cleanup a", "update b"}, trace)
	assert.Equal(t, 1, a.cleanupCount)
	assert.False(t, l.Remove(a))
}

func TestRemovedDuringFrameIsSkipped(t *testing.T) {
	l, _ := newTestLoop(t, Options{})
	l.cycleActive = true

	var trace []string
	b := &traceSystem{name: "b", trace: &trace}
	a := &traceSystem{name: "a", trace: &trace}
	a.onUpdate = func(float64) { l.Remove(b) }
	require.NoError(t, l.Add(a))
	require.NoError(t, l.Add(b))

	l.runFrame(0.016)
	l.runFrame(0.016)

	assert.Equal(t, []string{"update a", "cleanup b", "update a"}, trace)
}

func TestPace(t *testing.T) {
	t.Run("sleeps the remainder of the frame", func(t *testing.T) {
		clock := newFakeClock()
		l, _ := newTestLoop(t, Options{TargetFPS: 50, Clock: clock})

		start := clock.Now()
		clock.Advance(4 * time.Millisecond)
		l.pace(start)

		assert.Equal(t, []time.Duration{16 * time.Millisecond}, clock.sleeps)
		assert.Equal(t, 4*time.Millisecond, l.Stats().LastFrame)
	})

	t.Run("overrun does not sleep", func(t *testing.T) {
		clock := newFakeClock()
		l, _ := newTestLoop(t, Options{TargetFPS: 50, Clock: clock})

		start := clock.Now()
		clock.Advance(30 * time.Millisecond)
		l.pace(start)

		assert.Empty(t, clock.sleeps)
		assert.Equal(t, int64(1), l.Stats().Overruns)
	})
}

func TestRunDoesNotCatchUp(t *testing.T) {
	clock := newFakeClock()
	l, _ := newTestLoop(t, Options{TargetFPS: 50, Clock: clock})

	var trace []string
	sys := &traceSystem{name: "a", trace: &trace}
	sys.onUpdate = func(float64) {
		switch len(sys.deltas) {
		case 3:
			clock.Advance(45 * time.Millisecond)
		case 6:
			sys.Loop().RequestStop()
		default:
			clock.Advance(2 * time.Millisecond)
		}
	}
	require.NoError(t, l.Add(sys))
	require.NoError(t, l.Start())
	<-l.Done()

	frame := 20 * time.Millisecond
	want := []float64{0, frame.Seconds(), frame.Seconds(), 0.045, frame.Seconds(), frame.Seconds()}
	require.Len(t, sys.deltas, len(want))
	for i := range want {
		assert.InDelta(t, want[i], sys.deltas[i], 1e-9, "delta %d", i)
	}
	assert.Equal(t, int64(1), l.Stats().Overruns)
	assert.Equal(t, 1, sys.cleanupCount)
}
