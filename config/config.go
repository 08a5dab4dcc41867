// Package config reads frameloop settings from FRAMELOOP_* environment
// variables. Commands apply their flags on top of the loaded values.
package config

import (
	"fmt"
	"time"

	"github.com/plus3/frameloop/loop"
)

// Backend names a platform a command can run the loop on.
type Backend string

const (
	BackendHeadless Backend = "headless"
	BackendTerm     Backend = "term"
	BackendEbiten   Backend = "ebiten"
)

// Config holds loop and command settings.
type Config struct {
	TargetFPS         int           `env:"FRAMELOOP_TARGET_FPS" envDefault:"60"`
	StallThreshold    time.Duration `env:"FRAMELOOP_STALL_THRESHOLD" envDefault:"100ms"`
	MaxPresentRetries int           `env:"FRAMELOOP_MAX_PRESENT_RETRIES" envDefault:"8"`
	Backend           Backend       `env:"FRAMELOOP_BACKEND" envDefault:"term"`
	DebugUI           bool          `env:"FRAMELOOP_DEBUG_UI" envDefault:"false"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads settings from environment instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	var cfg Config
	if err := ParseEnvFrom(&cfg, environment); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting a loop could not run with.
func (c Config) Validate() error {
	if c.TargetFPS <= 0 {
		return fmt.Errorf("config: target fps must be positive, got %d", c.TargetFPS)
	}
	if c.StallThreshold <= 0 {
		return fmt.Errorf("config: stall threshold must be positive, got %s", c.StallThreshold)
	}
	if c.MaxPresentRetries <= 0 {
		return fmt.Errorf("config: max present retries must be positive, got %d", c.MaxPresentRetries)
	}
	switch c.Backend {
	case BackendHeadless, BackendTerm, BackendEbiten:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// LoopOptions returns the loop options these settings describe.
func (c Config) LoopOptions() loop.Options {
	return loop.Options{
		TargetFPS:         c.TargetFPS,
		StallThreshold:    c.StallThreshold,
		MaxPresentRetries: c.MaxPresentRetries,
	}
}
