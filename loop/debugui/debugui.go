// Package debugui provides Dear ImGui panels for inspecting a running loop.
//
// ImGui is not safe to drive from the loop goroutine, so panels are split in
// two: a loop.System side that snapshots state on every update, and a Draw
// side that an ImGui backend calls between its own BeginFrame and EndFrame.
package debugui

// Panel is drawn once per ImGui frame.
type Panel interface {
	Draw()
}

// PanelFunc adapts a plain render function to a Panel.
type PanelFunc func()

func (f PanelFunc) Draw() { f() }
