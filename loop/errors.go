package loop

import (
	"errors"
	"fmt"
)

//go:generate go tool stringer -type=Phase -trimprefix=Phase

// Phase identifies the part of a cycle a System was executing.
type Phase int

const (
	PhaseUpdate Phase = iota
	PhaseRender
	PhaseCleanup
)

var (
	// ErrAlreadyAttached is returned when a context is injected into a System twice.
	ErrAlreadyAttached = errors.New("loop: system context already attached")
	// ErrAlreadyStarted is returned by Start on a running loop.
	ErrAlreadyStarted = errors.New("loop: already started")
	// ErrClosed is returned by Start once the loop has been stopped. Loops are single-use.
	ErrClosed = errors.New("loop: closed")
)

// SystemError records a failure of a single System during one phase.
// It is logged by the Loop and never aborts the frame.
type SystemError struct {
	Phase Phase
	// System is the type name and registry id, e.g. "Banner#3".
	System string
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: system %s: %v", e.Phase, e.System, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking System.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
