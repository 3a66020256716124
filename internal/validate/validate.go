// Package validate rejects parameter combinations the engine cannot run.
package validate

import (
	"errors"
	"fmt"

	"github.com/san-kum/erpsim/internal/params"
)

var ErrInvalidCombination = errors.New("validate: invalid model/design combination")

// ValidationError names the combination that was rejected.
type ValidationError struct {
	Model  params.ModelCategory
	Design params.DesignCategory
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("a %s model needs more than one subject; %q designs are not supported", e.Model, e.Design)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidCombination }

// Check reports whether model and design can be simulated together. A mixed
// model estimates subject variability, so it cannot run on single-subject or
// repeat designs.
func Check(model params.ModelCategory, design params.DesignCategory) error {
	if model != params.ModelMixed {
		return nil
	}
	switch design {
	case params.DesignSingleSubject, params.DesignRepeat:
		return &ValidationError{Model: model, Design: design}
	}
	return nil
}
