package main

import (
	"cmp"
	"fmt"
	"io"
	"runtime"
	"slices"
	"text/template"
	"time"

	"github.com/plus3/frameloop/loop"
)

type Report struct {
	// Configuration
	Duration  time.Duration
	TargetFPS int
	Systems   int
	Work      time.Duration

	// Results
	TotalTime      time.Duration
	Loop           loop.Stats
	Interval       Distribution
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

// Distribution describes measured cycle intervals.
type Distribution struct {
	Count  int
	Mean   time.Duration
	Min    time.Duration
	Median time.Duration
	P99    time.Duration
	Max    time.Duration
}

// summarize sorts a copy of samples and reads the order statistics from it.
func summarize(samples []time.Duration) Distribution {
	if len(samples) == 0 {
		return Distribution{}
	}
	sorted := slices.Sorted(slices.Values(samples))

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	last := len(sorted) - 1
	return Distribution{
		Count:  len(sorted),
		Mean:   sum / time.Duration(len(sorted)),
		Min:    sorted[0],
		Median: sorted[last/2],
		P99:    sorted[last*99/100],
		Max:    sorted[last],
	}
}

// MemoryRow is one line of the memory table.
type MemoryRow struct {
	Metric     string
	Start, End string
	Change     string
}

func (r *Report) MemoryRows() []MemoryRow {
	start, end := &r.MemStatsStart, &r.MemStatsEnd
	rows := []MemoryRow{
		byteRow("Live heap", start.HeapAlloc, end.HeapAlloc),
		byteRow("Allocated", start.TotalAlloc, end.TotalAlloc),
		{
			Metric: "Collections",
			Start:  fmt.Sprint(start.NumGC),
			End:    fmt.Sprint(end.NumGC),
			Change: fmt.Sprintf("%+d", int64(end.NumGC)-int64(start.NumGC)),
		},
	}
	if r.GCPauseMetrics {
		rows = append(rows, MemoryRow{
			Metric: "Stop-the-world pause",
			Start:  time.Duration(start.PauseTotalNs).String(),
			End:    time.Duration(end.PauseTotalNs).String(),
			Change: time.Duration(end.PauseTotalNs - start.PauseTotalNs).String(),
		})
	}
	return rows
}

func byteRow(metric string, start, end uint64) MemoryRow {
	return MemoryRow{
		Metric: metric,
		Start:  fmt.Sprintf("%d B", start),
		End:    fmt.Sprintf("%d B", end),
		Change: fmt.Sprintf("%+d B", int64(end)-int64(start)),
	}
}

// TargetInterval is the cycle interval the loop paces towards.
func (r *Report) TargetInterval() time.Duration {
	if r.TargetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(r.TargetFPS)
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Loop Benchmark Report

## Configuration
- **Run Duration:** {{.Duration}}
- **Target FPS:** {{.TargetFPS}} ({{.TargetInterval}} per cycle)
- **Systems:** {{.Systems}}
- **Work per System:** {{.Work}}

## Pacing Results
- **Cycles:** {{.Loop.Frames}}
- **Updates:** {{.Loop.Updates}}
- **Skipped Updates (stalls):** {{.Loop.SkippedUpdates}}
- **Overruns:** {{.Loop.Overruns}}
- **Update Errors:** {{.Loop.UpdateErrors}}
- **Total Time:** {{.TotalTime}}
- **Drift:** {{drift .Interval.Mean .TargetInterval}}

| Interval | Value |
|----------|-------|
| samples | {{.Interval.Count}} |
| mean | {{.Interval.Mean}} |
| min | {{.Interval.Min}} |
| median | {{.Interval.Median}} |
| p99 | {{.Interval.P99}} |
| max | {{.Interval.Max}} |

## Slowest Systems
{{range slowest .Loop.Systems 5}}- {{.Name}}#{{.ID}}: avg {{.Update.AvgDuration}}, max {{.Update.MaxDuration}} over {{.Update.ExecutionCount}} updates
{{end}}
## Memory
| Metric | Start | End | Change |
|--------|-------|-----|--------|
{{range .MemoryRows}}| {{.Metric}} | {{.Start}} | {{.End}} | {{.Change}} |
{{end}}`

	fm := template.FuncMap{
		"drift": func(actual, target time.Duration) string {
			if target == 0 {
				return "N/A"
			}
			return fmt.Sprintf("%+.1f%%", float64(actual-target)/float64(target)*100)
		},
		"slowest": slowestSystems,
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}

// slowestSystems returns up to n systems ordered by average update time.
func slowestSystems(systems []loop.SystemStats, n int) []loop.SystemStats {
	sorted := slices.Clone(systems)
	slices.SortStableFunc(sorted, func(a, b loop.SystemStats) int {
		return cmp.Compare(b.Update.AvgDuration, a.Update.AvgDuration)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
