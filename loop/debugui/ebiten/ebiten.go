// Package ebiten provides Dear ImGui backend integration for the Ebiten game engine.
package ebiten

import (
	"sync"

	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/plus3/frameloop/loop/debugui"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// It satisfies ebitenwin.Overlay, so passing it as a window's overlay draws
// every added panel above the loop's frames.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend

	mu     sync.Mutex
	panels []debugui.Panel
}

// NewImguiBackend creates the ImGui context for a window of the given size.
func NewImguiBackend(title string, width, height int) *ImguiBackend {
	backend := ebitenbackend.NewEbitenBackend()
	backend.CreateWindow(title, width, height)
	imgui.CurrentIO().SetIniFilename("") // Disable imgui.ini

	return &ImguiBackend{EbitenBackend: backend}
}

// Add registers a panel to draw on every frame.
func (b *ImguiBackend) Add(panel debugui.Panel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panels = append(b.panels, panel)
}

// Update builds one ImGui frame from the registered panels.
func (b *ImguiBackend) Update() {
	b.mu.Lock()
	panels := b.panels
	b.mu.Unlock()

	b.BeginFrame()
	for _, panel := range panels {
		panel.Draw()
	}
	b.EndFrame()
}

// Draw draws the ImGui overlay on top of screen.
func (b *ImguiBackend) Draw(screen *ebiten.Image) {
	b.EbitenBackend.Draw(screen)
}

func (b *ImguiBackend) Layout(width, height int) {
	b.EbitenBackend.Layout(width, height)
}

// CapturesInput reports whether ImGui is consuming mouse or keyboard input.
func (b *ImguiBackend) CapturesInput() (mouse, keyboard bool) {
	io := imgui.CurrentIO()
	return io.WantCaptureMouse(), io.WantCaptureKeyboard()
}
