package main

import (
	"time"

	"github.com/plus3/frameloop/loop"
)

// probeSystem records the interval between cycle starts.
type probeSystem struct {
	loop.BaseSystem
	intervals []time.Duration
}

func (p *probeSystem) Update(dt float64) error {
	if dt > 0 {
		p.intervals = append(p.intervals, time.Duration(dt*float64(time.Second)))
	}
	return nil
}

// busySystem spins for a fixed time on every update.
type busySystem struct {
	loop.BaseSystem
	work time.Duration
}

func (b *busySystem) Update(dt float64) error {
	if b.work <= 0 {
		return nil
	}
	for start := time.Now(); time.Since(start) < b.work; {
	}
	return nil
}
