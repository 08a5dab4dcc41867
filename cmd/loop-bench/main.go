package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/plus3/frameloop/config"
	"github.com/plus3/frameloop/loop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	duration := flag.Duration("duration", 10*time.Second, "The total duration the benchmark should run for.")
	systemCount := flag.Int("systems", 50, "The number of systems to register.")
	work := flag.Duration("work", 0, "Busy time spent by each system per update.")
	fps := flag.Int("fps", cfg.TargetFPS, "The target cycle rate.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg.TargetFPS = *fps
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.Println("Starting loop benchmark...")

	// 1. Setup the loop with the probe first so it sees every cycle
	probe := &probeSystem{}
	opts := cfg.LoopOptions()
	opts.Systems = append(opts.Systems, probe)
	for i := 0; i < *systemCount; i++ {
		opts.Systems = append(opts.Systems, &busySystem{work: *work})
	}
	l := loop.New(opts)

	report := &Report{
		Duration:       *duration,
		TargetFPS:      cfg.TargetFPS,
		Systems:        *systemCount,
		Work:           *work,
		GCPauseMetrics: *gcPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	// 2. Run until the duration elapses or we are interrupted
	log.Printf("Running %d systems at %d fps for %s...\n", *systemCount, cfg.TargetFPS, *duration)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *duration)
	defer cancelTimeout()

	startTime := time.Now()
	if err := l.Start(); err != nil {
		log.Fatalf("Failed to start loop: %v", err)
	}
	<-ctx.Done()
	l.Stop()

	report.TotalTime = time.Since(startTime)
	report.Loop = l.Stats()
	report.Interval = summarize(probe.intervals)
	runtime.ReadMemStats(&report.MemStatsEnd)

	log.Println("Benchmark finished.")

	// 3. Generate Report to Console
	fmt.Println("\n\n--- Loop Benchmark Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")
}
