package loop

// Canvas is the drawing handle for one frame. Systems may only draw to it
// during their Render call; concrete platforms expose their own methods and
// systems type-assert to the canvas they know how to draw on.
type Canvas interface {
	Size() (width, height int)
	Clear()
	Release()
}

// Surface is a double-buffered drawable owned by a platform.
//
// After drawing, the loop asks ContentsRestored: true means the back buffer was
// reallocated while drawing and the frame must be drawn again before Show.
// After Show, ContentsLost true means the presented buffer was discarded and the
// whole acquire, draw, show sequence must be repeated.
type Surface interface {
	Acquire() (Canvas, error)
	ContentsRestored() bool
	Show() error
	ContentsLost() bool
	Size() (width, height int)
	Dispose() error
}

// Window is the platform collaborator that owns the native surface and
// delivers input events to an InputState.
type Window interface {
	// Surface returns the render surface, or nil when the window cannot draw.
	Surface() (Surface, error)
	// Attach starts delivering input events to in.
	Attach(in *InputState)
	// Detach stops input delivery.
	Detach()
}

// EventPump is implemented by windows that queue native events and need the
// loop to drain them into the InputState at the start of each update phase.
type EventPump interface {
	PumpEvents()
}
