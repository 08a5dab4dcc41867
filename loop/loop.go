package loop

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultTargetFPS         = 60
	DefaultStallThreshold    = 100 * time.Millisecond
	DefaultMaxPresentRetries = 8
)

// Options configures a Loop. Zero values select the defaults.
type Options struct {
	// TargetFPS is the cycle rate the loop paces itself to.
	TargetFPS int
	// StallThreshold is the largest delta still fed to Update. Longer cycles
	// skip the update phase entirely; the delta is never clamped.
	StallThreshold time.Duration
	// Window supplies the surface and input. Nil runs headless.
	Window Window
	// Systems are registered by Start, after the surface is acquired.
	Systems []System
	// MaxPresentRetries bounds each retry loop of the present protocol.
	MaxPresentRetries int
	Logger            *log.Logger
	Clock             Clock
}

// Loop runs update and render phases on its own goroutine at a fixed target
// rate. The pacing is best effort: a slow cycle is followed by a normal one,
// never by extra updates to catch up.
type Loop struct {
	targetFrame    time.Duration
	stallThreshold float64
	maxRetries     int
	logger         *log.Logger
	clock          Clock
	window         Window
	builtins       []System

	input    *InputState
	registry *Registry
	surface  Surface
	attached bool

	started  atomic.Bool
	running  atomic.Bool
	closed   atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	delta atomic.Uint64

	// Cleanups of systems removed while the loop goroutine is alive run on
	// that goroutine.
	cleanupMu     sync.Mutex
	cycleActive   bool
	pendingRemove []*registryEntry

	statsMu sync.Mutex
	stats   Stats
}

// New creates a stopped loop. Systems may be added before Start; they receive
// the loop and its InputState immediately.
func New(opts Options) *Loop {
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = DefaultTargetFPS
	}
	if opts.StallThreshold <= 0 {
		opts.StallThreshold = DefaultStallThreshold
	}
	if opts.MaxPresentRetries <= 0 {
		opts.MaxPresentRetries = DefaultMaxPresentRetries
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "frameloop: ", log.LstdFlags)
	}
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}

	l := &Loop{
		targetFrame:    time.Second / time.Duration(opts.TargetFPS),
		stallThreshold: opts.StallThreshold.Seconds(),
		maxRetries:     opts.MaxPresentRetries,
		logger:         opts.Logger,
		clock:          opts.Clock,
		window:         opts.Window,
		builtins:       opts.Systems,
		input:          NewInputState(),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	l.registry = NewRegistry(Context{Loop: l, Input: l.input})
	return l
}

// Start attaches the window, acquires the surface, registers the built-in
// systems and launches the loop goroutine. It returns without waiting for the
// first cycle. A loop can be started once.
func (l *Loop) Start() error {
	if !l.started.CompareAndSwap(false, true) {
		if l.closed.Load() {
			return ErrClosed
		}
		return ErrAlreadyStarted
	}

	if l.window != nil {
		l.window.Attach(l.input)
		l.attached = true
		surface, err := l.window.Surface()
		if err != nil {
			l.abort()
			return fmt.Errorf("loop: acquire surface: %w", err)
		}
		l.surface = surface
	}

	for _, system := range l.builtins {
		if _, err := l.registry.Add(system); err != nil {
			l.abort()
			return fmt.Errorf("loop: register %s: %w", systemName(system), err)
		}
	}

	l.cleanupMu.Lock()
	l.cycleActive = true
	l.cleanupMu.Unlock()

	l.running.Store(true)
	go l.run()
	return nil
}

// Stop ends the loop and waits until every system is cleaned up and the
// surface is disposed. It waits on the loop goroutine, so systems must not call
// it from Update, Render or Cleanup; they use RequestStop.
func (l *Loop) Stop() {
	if l.started.CompareAndSwap(false, true) {
		// Never started: clean up systems added so far and close the loop.
		l.abort()
		return
	}
	l.RequestStop()
	<-l.done
}

// RequestStop asks the loop to stop after the current cycle and returns
// immediately.
func (l *Loop) RequestStop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// Done is closed once teardown has finished.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Delta returns the most recent cycle delta in seconds.
func (l *Loop) Delta() float64 {
	return math.Float64frombits(l.delta.Load())
}

// Input returns the loop's input state.
func (l *Loop) Input() *InputState {
	return l.input
}

// Add registers system, injecting the loop context if it is an Attacher.
// Adding a registered or nil system does nothing.
func (l *Loop) Add(system System) error {
	_, err := l.registry.Add(system)
	return err
}

// MustAdd is like Add but panics if the system cannot be attached.
func (l *Loop) MustAdd(system System) {
	if err := l.Add(system); err != nil {
		panic("loop: add " + systemName(system) + ": " + err.Error())
	}
}

// Remove unregisters system and cleans it up. While the loop is running the
// cleanup runs on the loop goroutine before the next cycle's update;
// otherwise it runs before Remove returns.
func (l *Loop) Remove(system System) bool {
	e := l.registry.remove(system)
	if e == nil {
		return false
	}

	l.cleanupMu.Lock()
	if l.cycleActive {
		l.pendingRemove = append(l.pendingRemove, e)
		l.cleanupMu.Unlock()
		return true
	}
	l.cleanupMu.Unlock()

	l.cleanup(e)
	return true
}

// Systems returns the registered systems in update order.
func (l *Loop) Systems() []System {
	return l.registry.Systems()
}

// Stats returns a snapshot of loop and per-system statistics.
func (l *Loop) Stats() Stats {
	l.statsMu.Lock()
	stats := l.stats
	l.statsMu.Unlock()

	stats.Systems = l.registry.Stats()
	stats.SystemCount = len(stats.Systems)
	return stats
}

func (l *Loop) run() {
	defer l.teardown()

	previous := l.clock.Now()
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		start := l.clock.Now()
		delta := start.Sub(previous).Seconds()
		previous = start

		l.runFrame(delta)
		l.pace(start)
	}
}

// runFrame executes one cycle without pacing.
func (l *Loop) runFrame(delta float64) {
	l.delta.Store(math.Float64bits(delta))
	l.drainRemoved()

	entries := l.registry.snapshot()
	if delta > l.stallThreshold {
		l.logger.Printf("stall of %.3fs, skipping update", delta)
		l.count(func(s *Stats) { s.SkippedUpdates++ })
	} else {
		l.update(delta, entries)
	}

	l.render(entries)
	l.count(func(s *Stats) {
		s.Frames++
		s.LastDelta = delta
	})
}

func (l *Loop) update(delta float64, entries []*registryEntry) {
	l.input.BeginFrame()
	if pump, ok := l.window.(EventPump); ok {
		pump.PumpEvents()
	}

	for _, e := range entries {
		if e.removed.Load() {
			continue
		}
		start := time.Now()
		err := l.call(e, PhaseUpdate, func() error { return e.system.Update(delta) })
		l.registry.record(e, PhaseUpdate, time.Since(start))
		if err != nil {
			l.count(func(s *Stats) { s.UpdateErrors++ })
		}
	}
	l.count(func(s *Stats) { s.Updates++ })
}

// render draws one frame, redrawing while the surface reports its contents
// restored and repeating the whole present while it reports them lost.
func (l *Loop) render(entries []*registryEntry) {
	if l.surface == nil {
		return
	}

	for lost := 0; ; lost++ {
		for restored := 0; ; restored++ {
			if err := l.drawFrame(entries); err != nil {
				l.logger.Printf("render: %v", err)
				return
			}
			if !l.surface.ContentsRestored() {
				break
			}
			if restored >= l.maxRetries {
				l.logger.Printf("render: contents restored %d times, presenting anyway", restored+1)
				break
			}
			l.count(func(s *Stats) { s.RestoredRetries++ })
		}

		if err := l.surface.Show(); err != nil {
			l.logger.Printf("render: show: %v", err)
			return
		}
		if !l.surface.ContentsLost() {
			return
		}
		if lost >= l.maxRetries {
			l.logger.Printf("render: contents lost %d times, dropping frame", lost+1)
			return
		}
		l.count(func(s *Stats) { s.LostRetries++ })
	}
}

func (l *Loop) drawFrame(entries []*registryEntry) error {
	canvas, err := l.surface.Acquire()
	if err != nil {
		return fmt.Errorf("acquire canvas: %w", err)
	}
	defer canvas.Release()

	canvas.Clear()
	for _, e := range entries {
		if e.removed.Load() {
			continue
		}
		start := time.Now()
		err := l.call(e, PhaseRender, func() error { return e.system.Render(canvas) })
		l.registry.record(e, PhaseRender, time.Since(start))
		if err != nil {
			l.count(func(s *Stats) { s.RenderErrors++ })
		}
	}
	return nil
}

// pace sleeps for whatever is left of the target frame. Overruns are counted
// and otherwise ignored.
func (l *Loop) pace(start time.Time) {
	elapsed := l.clock.Now().Sub(start)
	l.count(func(s *Stats) { s.LastFrame = elapsed })

	remaining := l.targetFrame - elapsed
	if remaining <= 0 {
		l.count(func(s *Stats) { s.Overruns++ })
		return
	}

	select {
	case <-l.clock.After(remaining):
	case <-l.stopCh:
	}
}

func (l *Loop) teardown() {
	l.cleanupMu.Lock()
	l.cycleActive = false
	pending := l.pendingRemove
	l.pendingRemove = nil
	l.cleanupMu.Unlock()

	for _, e := range pending {
		l.cleanup(e)
	}
	for _, e := range l.registry.close() {
		l.cleanup(e)
	}

	l.release()
	close(l.done)
}

// abort undoes a partial Start.
func (l *Loop) abort() {
	l.RequestStop()
	for _, e := range l.registry.close() {
		l.cleanup(e)
	}
	l.release()
	close(l.done)
}

func (l *Loop) release() {
	if l.surface != nil {
		if err := l.surface.Dispose(); err != nil {
			l.logger.Printf("dispose surface: %v", err)
		}
	}
	if l.attached {
		l.window.Detach()
	}
	l.running.Store(false)
	l.closed.Store(true)
}

func (l *Loop) drainRemoved() {
	l.cleanupMu.Lock()
	pending := l.pendingRemove
	l.pendingRemove = nil
	l.cleanupMu.Unlock()

	for _, e := range pending {
		l.cleanup(e)
	}
}

func (l *Loop) cleanup(e *registryEntry) {
	if err := l.call(e, PhaseCleanup, e.system.Cleanup); err != nil {
		l.count(func(s *Stats) { s.CleanupErrors++ })
	}
}

// call runs one system method, turning a panic into an error. Failures are
// logged and returned; they never propagate further.
func (l *Loop) call(e *registryEntry, phase Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
		if err != nil {
			err = &SystemError{Phase: phase, System: e.label(), Err: err}
			l.logger.Print(err)
		}
	}()
	return fn()
}

func (l *Loop) count(f func(s *Stats)) {
	l.statsMu.Lock()
	f(&l.stats)
	l.statsMu.Unlock()
}
