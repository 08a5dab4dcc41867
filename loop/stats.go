package loop

import (
	"reflect"
	"time"
)

// Stats provides statistics about loop execution.
type Stats struct {
	Frames          int64
	Updates         int64
	SkippedUpdates  int64
	Overruns        int64
	RestoredRetries int64
	LostRetries     int64
	UpdateErrors    int64
	RenderErrors    int64
	CleanupErrors   int64
	LastDelta       float64
	LastFrame       time.Duration
	SystemCount     int
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	// ID tells apart systems of the same type; it matches the "#N" suffix
	// used in log lines.
	ID     int
	Name   string
	Update PhaseStats
	Render PhaseStats
}

// PhaseStats summarises the durations of one phase of a single system.
type PhaseStats struct {
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type phaseStatsInternal struct {
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

type systemStatsInternal struct {
	name   string
	update phaseStatsInternal
	render phaseStatsInternal
}

func newSystemStats(system System) *systemStatsInternal {
	return &systemStatsInternal{
		name:   systemName(system),
		update: phaseStatsInternal{minDuration: time.Duration(1<<63 - 1)},
		render: phaseStatsInternal{minDuration: time.Duration(1<<63 - 1)},
	}
}

func (p *phaseStatsInternal) record(duration time.Duration) {
	p.executionCount++
	p.lastDuration = duration
	p.totalDuration += duration

	if duration < p.minDuration {
		p.minDuration = duration
	}
	if duration > p.maxDuration {
		p.maxDuration = duration
	}
}

func (p *phaseStatsInternal) export() PhaseStats {
	stats := PhaseStats{
		ExecutionCount: p.executionCount,
		MaxDuration:    p.maxDuration,
		LastDuration:   p.lastDuration,
		TotalDuration:  p.totalDuration,
	}
	if p.executionCount > 0 {
		stats.MinDuration = p.minDuration
		stats.AvgDuration = p.totalDuration / time.Duration(p.executionCount)
	}
	return stats
}

// systemName returns the type name of a system, without package or pointer.
func systemName(system System) string {
	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	if name := systemType.Name(); name != "" {
		return name
	}
	return systemType.String()
}
