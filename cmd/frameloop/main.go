package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/plus3/frameloop/config"
	"github.com/plus3/frameloop/loop"
	"github.com/plus3/frameloop/loop/debugui"
	debugui_ebiten "github.com/plus3/frameloop/loop/debugui/ebiten"
	"github.com/plus3/frameloop/platform/ebitenwin"
	"github.com/plus3/frameloop/platform/term"
)

const (
	windowTitle  = "frameloop"
	windowWidth  = 960
	windowHeight = 540
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	backend := flag.String("backend", string(cfg.Backend), "Platform to run on: term, ebiten or headless.")
	fps := flag.Int("fps", cfg.TargetFPS, "The target cycle rate.")
	debug := flag.Bool("debug", cfg.DebugUI, "Show the ImGui stats panel (ebiten only).")
	logPath := flag.String("log", "", "Write the log to this file instead of stderr.")
	flag.Parse()

	cfg.Backend = config.Backend(*backend)
	cfg.TargetFPS = *fps
	cfg.DebugUI = *debug
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, closeLog, err := openLog(*logPath, cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer closeLog()

	opts := cfg.LoopOptions()
	opts.Logger = logger

	var (
		keys    bindings
		runMain func() error
	)
	switch cfg.Backend {
	case config.BackendTerm:
		tm, err := term.Open()
		if err != nil {
			logger.Fatalf("Failed to open terminal: %v", err)
		}
		opts.Window = tm
		keys = termBindings()

	case config.BackendEbiten:
		winOpts := ebitenwin.Options{Title: windowTitle, Width: windowWidth, Height: windowHeight}
		if cfg.DebugUI {
			imguiBackend := debugui_ebiten.NewImguiBackend(windowTitle, windowWidth, windowHeight)
			stats := debugui.NewStatsPanel(120)
			imguiBackend.Add(stats)
			winOpts.Overlay = imguiBackend
			opts.Systems = append(opts.Systems, stats)
		}
		window := ebitenwin.New(winOpts)
		opts.Window = window
		runMain = window.Run
		keys = ebitenBindings()

	case config.BackendHeadless:
	}
	if cfg.DebugUI && cfg.Backend != config.BackendEbiten {
		logger.Printf("debug UI needs the ebiten backend, ignoring it on %s", cfg.Backend)
	}

	opts.Systems = append(opts.Systems,
		&KeyReporter{Keys: keys, Logger: logger},
		&Banner{Quit: keys.QuitHint},
	)

	l := loop.New(opts)
	if err := l.Start(); err != nil {
		logger.Fatalf("Failed to start loop: %v", err)
	}
	logger.Printf("running on %s at %d fps", cfg.Backend, cfg.TargetFPS)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-l.Done():
		}
	}()

	// Ebiten must own the main goroutine; it returns once the loop disposes
	// the window or the user closes it.
	if runMain != nil {
		if err := runMain(); err != nil {
			logger.Printf("window: %v", err)
		}
		l.Stop()
	}
	<-l.Done()

	stats := l.Stats()
	logger.Printf("stopped after %d frames (%d overruns, %d skipped updates)", stats.Frames, stats.Overruns, stats.SkippedUpdates)
}

// openLog returns the demo's logger. The terminal backend owns stderr's
// screen, so it logs nowhere unless a file is given.
func openLog(path string, backend config.Backend) (*log.Logger, func(), error) {
	if path == "" {
		if backend == config.BackendTerm {
			return log.New(io.Discard, "", 0), func() {}, nil
		}
		return log.New(os.Stderr, "frameloop: ", log.LstdFlags), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "frameloop: ", log.LstdFlags), func() { _ = f.Close() }, nil
}
