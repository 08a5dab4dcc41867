package ebitenwin

import (
	"errors"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/plus3/frameloop/loop"
)

// ErrDisposed is returned when drawing to a surface after Dispose.
var ErrDisposed = errors.New("ebitenwin: surface disposed")

// Surface double-buffers the loop's frames for a Window.
//
// A back image allocated before a resize is stale: if the window resizes
// while the loop draws, ContentsRestored reports it and the next Acquire
// allocates a new image at the new size. If it resizes between that check
// and Show, the frame is not swapped and ContentsLost reports it.
type Surface struct {
	win *Window

	mu       sync.Mutex
	front    *ebiten.Image
	back     *ebiten.Image
	backGen  uint64
	lost     bool
	disposed bool
}

func (s *Surface) Acquire() (loop.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ErrDisposed
	}

	width, height, gen := s.win.size()
	if s.back == nil || gen != s.backGen || s.back.Bounds().Dx() != width || s.back.Bounds().Dy() != height {
		if s.back != nil {
			s.back.Deallocate()
		}
		s.back = ebiten.NewImage(width, height)
		s.backGen = gen
	}
	return &Canvas{image: s.back}, nil
}

func (s *Surface) ContentsRestored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale()
}

// Show makes the back image the presented frame unless it went stale.
func (s *Surface) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.stale() {
		s.lost = true
		return nil
	}
	s.lost = false
	s.front, s.back = s.back, s.front
	return nil
}

func (s *Surface) ContentsLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

func (s *Surface) Size() (width, height int) {
	width, height, _ = s.win.size()
	return width, height
}

// Dispose frees both images and closes the window.
func (s *Surface) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil
	}
	s.disposed = true
	for _, img := range []*ebiten.Image{s.front, s.back} {
		if img != nil {
			img.Deallocate()
		}
	}
	s.front, s.back = nil, nil
	s.win.Close()
	return nil
}

func (s *Surface) stale() bool {
	_, _, gen := s.win.size()
	return s.back != nil && gen != s.backGen
}

// present copies the front image to the ebiten screen.
func (s *Surface) present(screen *ebiten.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.front != nil {
		screen.DrawImage(s.front, nil)
	}
}

// Canvas is an ebiten image the loop's systems draw one frame into.
type Canvas struct {
	image    *ebiten.Image
	released bool
}

// Image returns the image to draw on, or nil after Release.
func (c *Canvas) Image() *ebiten.Image {
	if c.released {
		return nil
	}
	return c.image
}

func (c *Canvas) Size() (width, height int) {
	b := c.image.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Canvas) Clear() {
	if c.released {
		return
	}
	c.image.Clear()
}

func (c *Canvas) Release() {
	c.released = true
}

// Print draws debug text with its top left corner at (x, y).
func (c *Canvas) Print(x, y int, text string) {
	if c.released {
		return
	}
	ebitenutil.DebugPrintAt(c.image, text, x, y)
}
