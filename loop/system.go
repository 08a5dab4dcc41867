package loop

import "sync/atomic"

// System is a unit of per-frame behavior. Update runs on every non-stalled
// cycle, Render on every cycle with a surface, and Cleanup exactly once when the
// system is removed or the loop stops.
//
// Embed BaseSystem to get no-op defaults and the injected Context.
//
// System methods run on the loop goroutine. To end the loop from one of them
// call Loop.RequestStop; Loop.Stop waits for that goroutine to exit and would
// never return.
type System interface {
	Update(dt float64) error
	Render(c Canvas) error
	Cleanup() error
}

// Context carries the references injected into a System when it is added.
type Context struct {
	Loop  *Loop
	Input *InputState
}

// Attacher is implemented by systems that want a Context. Attach is called
// synchronously by Add, before Add returns, and must fail with
// ErrAlreadyAttached if called again.
type Attacher interface {
	Attach(ctx Context) error
}

// BaseSystem provides no-op System methods and one-time context injection.
type BaseSystem struct {
	attached atomic.Bool
	ctx      Context
}

// Attach stores ctx. It succeeds once per BaseSystem.
func (b *BaseSystem) Attach(ctx Context) error {
	if !b.attached.CompareAndSwap(false, true) {
		return ErrAlreadyAttached
	}
	b.ctx = ctx
	return nil
}

func (b *BaseSystem) Update(dt float64) error { return nil }

func (b *BaseSystem) Render(c Canvas) error { return nil }

func (b *BaseSystem) Cleanup() error { return nil }

// Attached reports whether a Context has been injected.
func (b *BaseSystem) Attached() bool {
	return b.attached.Load()
}

// Loop returns the loop this system was added to, or nil before Attach.
// From Update, Render or Cleanup use its RequestStop, not Stop.
func (b *BaseSystem) Loop() *Loop {
	return b.ctx.Loop
}

// Input returns the loop's input state, or nil before Attach.
func (b *BaseSystem) Input() *InputState {
	return b.ctx.Input
}

// Delta returns the loop's most recent frame delta in seconds.
func (b *BaseSystem) Delta() float64 {
	if b.ctx.Loop == nil {
		return 0
	}
	return b.ctx.Loop.Delta()
}
