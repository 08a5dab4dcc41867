package debugui

import (
	"fmt"
	"sync"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/frameloop/loop"
)

// StatsPanel shows loop counters, a frame time graph and per-system timings.
// Add it to the loop to feed it and to an ImGui backend to draw it.
type StatsPanel struct {
	loop.BaseSystem

	mu            sync.Mutex
	stats         loop.Stats
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

func NewStatsPanel(historyFrames int) *StatsPanel {
	if historyFrames <= 0 {
		historyFrames = 120
	}
	return &StatsPanel{
		historyFrames: historyFrames,
		frameHistory:  make([]float32, historyFrames),
	}
}

// Update records the loop's statistics and the frame delta.
func (p *StatsPanel) Update(dt float64) error {
	stats := p.Loop().Stats()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = stats
	p.frameHistory[p.frameIndex] = float32(dt * 1000.0)
	p.frameIndex = (p.frameIndex + 1) % p.historyFrames
	return nil
}

// Snapshot returns the last recorded statistics.
func (p *StatsPanel) Snapshot() loop.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// AverageFrameTime returns the mean of the recorded frame times in
// milliseconds. Slots not yet filled count as zero.
func (p *StatsPanel) AverageFrameTime() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.averageFrameTime()
}

func (p *StatsPanel) averageFrameTime() float32 {
	var total float32
	for _, ft := range p.frameHistory {
		total += ft
	}
	return total / float32(p.historyFrames)
}

// Draw renders the panel. Call it from the ImGui frame.
func (p *StatsPanel) Draw() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !imgui.BeginV("Loop Stats", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	stats := p.stats
	imgui.Text(fmt.Sprintf("Frames: %d", stats.Frames))
	imgui.Text(fmt.Sprintf("Updates: %d (skipped %d)", stats.Updates, stats.SkippedUpdates))
	imgui.Text(fmt.Sprintf("Overruns: %d", stats.Overruns))
	imgui.Text(fmt.Sprintf("Present retries: %d restored, %d lost", stats.RestoredRetries, stats.LostRetries))
	imgui.Text(fmt.Sprintf("Errors: %d update, %d render, %d cleanup", stats.UpdateErrors, stats.RenderErrors, stats.CleanupErrors))
	imgui.Text(fmt.Sprintf("Last frame: %s", stats.LastFrame.Round(time.Microsecond)))

	avg := p.averageFrameTime()
	if avg > 0 {
		imgui.Text(fmt.Sprintf("Avg Frame Time: %.2f ms (%.0f FPS)", avg, 1000.0/avg))
	}

	imgui.Separator()
	imgui.Text("Frame Time Graph (ms)")
	imgui.PlotLinesFloatPtr("##frametime", &p.frameHistory[0], int32(len(p.frameHistory)))

	if imgui.TreeNodeStr(fmt.Sprintf("Systems (%d)", stats.SystemCount)) {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("SystemStatsTable", 5, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("System")
			imgui.TableSetupColumn("Updates")
			imgui.TableSetupColumn("Avg Update")
			imgui.TableSetupColumn("Max Update")
			imgui.TableSetupColumn("Avg Render")
			imgui.TableHeadersRow()

			for _, system := range stats.Systems {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(system.Name)
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%d", system.Update.ExecutionCount))
				imgui.TableNextColumn()
				imgui.Text(system.Update.AvgDuration.String())
				imgui.TableNextColumn()
				imgui.Text(system.Update.MaxDuration.String())
				imgui.TableNextColumn()
				imgui.Text(system.Render.AvgDuration.String())
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}
