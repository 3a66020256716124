package sim

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOutput      = errors.New("sim: engine returned no channels")
	ErrReferenceChannel = errors.New("sim: reference channel out of range")
	ErrShapeMismatch    = errors.New("sim: noisy and clean draws differ in shape")
	ErrNoProjection     = errors.New("sim: multichannel mode needs a projection")
)

// Compute stages.
const (
	StageBasis      = "basis"
	StageFormula    = "formula"
	StageProjection = "projection"
	StageDesign     = "design"
	StageEngine     = "engine"
	StageNormalize  = "normalize"
	StagePanic      = "panic"
)

// ComputeError wraps a failure raised while building inputs for the engine,
// inside the engine, or while post-processing its output.
type ComputeError struct {
	Stage string
	Err   error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }
