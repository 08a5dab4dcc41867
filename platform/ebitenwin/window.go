// Package ebitenwin presents a loop's frames in an ebiten window.
//
// Ebiten owns the main thread through RunGame while the loop renders on its
// own goroutine, so the surface keeps two offscreen images: the loop draws
// into the back image and Show swaps it to the front, which ebiten's Draw
// copies to the screen.
package ebitenwin

import (
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/plus3/frameloop/loop"
)

// KeyOf returns the loop key for an ebiten key.
func KeyOf(k ebiten.Key) loop.Key {
	return loop.Key(k)
}

// ButtonOf returns the loop button for an ebiten mouse button, numbered from 1
// for the left button.
func ButtonOf(b ebiten.MouseButton) loop.Button {
	return loop.Button(b) + 1
}

// Overlay is drawn above the loop's frames on ebiten's own goroutine, e.g. an
// ImGui backend.
type Overlay interface {
	// Update runs once per ebiten tick before input is forwarded.
	Update()
	Draw(screen *ebiten.Image)
	Layout(width, height int)
	// CapturesInput reports whether the overlay is using the mouse or the
	// keyboard, in which case the window does not forward them to the loop.
	CapturesInput() (mouse, keyboard bool)
}

// Options configures a Window.
type Options struct {
	Title string
	// Width and Height are the initial window size. The surface follows the
	// window's size unless FixedSize is set.
	Width, Height int
	FixedSize     bool
	Overlay       Overlay
}

// Window is a loop.Window and an ebiten.Game.
type Window struct {
	opts    Options
	surface *Surface

	mu      sync.Mutex
	input   *loop.InputState
	width   int
	height  int
	sizeGen uint64
	focused bool
	cursorX int
	cursorY int
	keys    []ebiten.Key

	closed atomic.Bool
}

// New creates a window. Call Run from the main goroutine to open it.
func New(opts Options) *Window {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	w := &Window{
		opts:    opts,
		width:   opts.Width,
		height:  opts.Height,
		focused: true,
		cursorX: -1,
		cursorY: -1,
	}
	w.surface = &Surface{win: w}
	return w
}

// Run opens the window and blocks until it is closed or the surface is
// disposed. It must be called from the main goroutine.
func (w *Window) Run() error {
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowSize(w.opts.Width, w.opts.Height)
	if !w.opts.FixedSize {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	return ebiten.RunGame(w)
}

// Close makes Run return at the next ebiten tick.
func (w *Window) Close() {
	w.closed.Store(true)
}

func (w *Window) Surface() (loop.Surface, error) {
	return w.surface, nil
}

func (w *Window) Attach(in *loop.InputState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = in
}

func (w *Window) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = nil
}

// Update implements ebiten.Game. It forwards input edges to the attached
// InputState.
func (w *Window) Update() error {
	if w.closed.Load() {
		return ebiten.Termination
	}

	captureMouse, captureKeyboard := false, false
	if w.opts.Overlay != nil {
		w.opts.Overlay.Update()
		captureMouse, captureKeyboard = w.opts.Overlay.CapturesInput()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.input == nil {
		return nil
	}

	focused := ebiten.IsFocused()
	if !focused {
		if w.focused {
			w.input.Reset()
			w.cursorX, w.cursorY = -1, -1
		}
		w.focused = false
		return nil
	}
	w.focused = true

	if !captureKeyboard {
		w.forwardKeys()
	}
	if !captureMouse {
		w.forwardMouse()
	}
	return nil
}

func (w *Window) forwardKeys() {
	w.keys = inpututil.AppendJustPressedKeys(w.keys[:0])
	for _, k := range w.keys {
		w.input.KeyDown(KeyOf(k))
	}
	w.keys = inpututil.AppendJustReleasedKeys(w.keys[:0])
	for _, k := range w.keys {
		w.input.KeyUp(KeyOf(k))
	}
}

func (w *Window) forwardMouse() {
	for b := ebiten.MouseButton0; b <= ebiten.MouseButtonMax; b++ {
		switch {
		case inpututil.IsMouseButtonJustPressed(b):
			w.input.ButtonDown(ButtonOf(b))
		case inpututil.IsMouseButtonJustReleased(b):
			w.input.ButtonUp(ButtonOf(b))
		}
	}

	x, y := ebiten.CursorPosition()
	if x != w.cursorX || y != w.cursorY {
		w.cursorX, w.cursorY = x, y
		w.input.PointerMove(x, y)
	}
}

// Draw implements ebiten.Game.
func (w *Window) Draw(screen *ebiten.Image) {
	w.surface.present(screen)
	if w.opts.Overlay != nil {
		w.opts.Overlay.Draw(screen)
	}
}

// Layout implements ebiten.Game. A size change invalidates any frame the
// loop is drawing.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	width, height := w.resize(outsideWidth, outsideHeight)
	if w.opts.Overlay != nil {
		w.opts.Overlay.Layout(width, height)
	}
	return width, height
}

func (w *Window) resize(outsideWidth, outsideHeight int) (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opts.FixedSize || outsideWidth <= 0 || outsideHeight <= 0 {
		return w.width, w.height
	}
	if outsideWidth != w.width || outsideHeight != w.height {
		w.width, w.height = outsideWidth, outsideHeight
		w.sizeGen++
	}
	return w.width, w.height
}

// size returns the logical screen size and its generation, which changes on
// every resize.
func (w *Window) size() (width, height int, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height, w.sizeGen
}
