package ebiten_test

import (
	"log"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/frameloop/loop"
	"github.com/plus3/frameloop/loop/debugui"
	debugui_ebiten "github.com/plus3/frameloop/loop/debugui/ebiten"
	"github.com/plus3/frameloop/platform/ebitenwin"
)

func Example() {
	// Create the ImGui backend and use it as the window's overlay
	imguiBackend := debugui_ebiten.NewImguiBackend("Loop ImGui Example", 1280, 720)
	window := ebitenwin.New(ebitenwin.Options{
		Title:   "Loop ImGui Example",
		Width:   1280,
		Height:  720,
		Overlay: imguiBackend,
	})

	// The stats panel is fed by the loop and drawn by ImGui
	stats := debugui.NewStatsPanel(120)
	imguiBackend.Add(stats)
	imguiBackend.Add(debugui.PanelFunc(func() {
		imgui.Begin("Debug Window")
		imgui.Text("Hello from the loop!")
		imgui.End()
	}))

	l := loop.New(loop.Options{
		Window:  window,
		Systems: []loop.System{stats},
	})
	if err := l.Start(); err != nil {
		log.Fatal(err)
	}
	defer l.Stop()

	// Run the window on the main goroutine
	if err := window.Run(); err != nil {
		log.Fatal(err)
	}
}
