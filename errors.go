package maskflow

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingOutput is returned when a stage does not produce one of the
	// named tensors it is expected to emit
	ErrMissingOutput = errors.New("missing stage output")
	// ErrShapeMismatch is returned when stage outputs disagree on the number
	// of detections or have an unexpected rank
	ErrShapeMismatch = errors.New("stage output shape mismatch")
	// ErrInvalidInput is returned when an input frame cannot be fed to the
	// preprocessing stage
	ErrInvalidInput = errors.New("invalid input image")
)

// Stage names a step of the per-frame pipeline
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageDetect      Stage = "detect"
	StagePostprocess Stage = "postprocess"
)

// StageError reports a failure of one stage on one frame.  It aborts the
// whole run.
type StageError struct {
	Stage Stage
	Frame int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed on frame %d: %v", e.Stage, e.Frame, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ConfigError reports an unusable model location, parameter file or input
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
