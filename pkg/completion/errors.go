package completion

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned when no loaded model backs the orchestrator.
var ErrModelUnavailable = errors.New("model not loaded")

// GenerationError wraps a failure of the model capability.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate reply: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
