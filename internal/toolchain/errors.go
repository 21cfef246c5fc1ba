package toolchain

import (
	"errors"
	"fmt"
)

var (
	ErrBuildFailed  = errors.New("build failed")
	ErrBenchFailed  = errors.New("benchmark failed")
	ErrBuildDirBusy = errors.New("build directory already in use")
)

// BuildError carries the captured output of a failed configure or build step.
type BuildError struct {
	Step    string
	Variant string
	Output  string
	Err     error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Step, ErrBuildFailed)
	if e.Variant != "" {
		msg += " for " + e.Variant
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\noutput:\n" + e.Output
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	return []error{ErrBuildFailed, e.Err}
}

// BenchError carries the captured stdout and stderr of a failed benchmark run.
type BenchError struct {
	Kernel string
	Stdout string
	Stderr string
	Err    error
}

func (e *BenchError) Error() string {
	msg := fmt.Sprintf("%s for kernel %s", ErrBenchFailed, e.Kernel)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + "\nstdout:\n" + e.Stdout + "\nstderr:\n" + e.Stderr
}

func (e *BenchError) Unwrap() []error {
	return []error{ErrBenchFailed, e.Err}
}
