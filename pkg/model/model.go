// Package model defines the boundary between the chat service and the model runtime
// that actually generates text.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/localchat/chatbot/pkg/llm"
)

// Capability generates raw text for a conversation. Implementations are used
// concurrently and must not mutate the messages they are given.
type Capability interface {
	Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig) (string, error)
}

// Backend is a Capability that must be loaded before it can generate.
type Backend interface {
	Capability

	// Load prepares the model for generation (availability checks, warm-up).
	Load(ctx context.Context) error

	// Name returns the identifier of the served model.
	Name() string
}

// ErrNotLoaded is returned when generating through a Handle that was never loaded.
var ErrNotLoaded = errors.New("model not loaded")

// Handle is the process-scoped reference to the loaded model. It is built once
// at startup and read-only afterwards. The zero value and a nil *Handle are
// valid and report the model as not loaded.
type Handle struct {
	name       string
	capability Capability
}

// Load loads the backend and returns a Handle to it.
func Load(ctx context.Context, backend Backend) (*Handle, error) {
	if backend == nil {
		return nil, errors.New("nil model backend")
	}
	if err := backend.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading model %s: %w", backend.Name(), err)
	}
	return &Handle{name: backend.Name(), capability: backend}, nil
}

// NewHandle wraps an already usable capability.
func NewHandle(name string, capability Capability) *Handle {
	return &Handle{name: name, capability: capability}
}

// Loaded reports whether the handle can generate.
func (h *Handle) Loaded() bool {
	return h != nil && h.capability != nil
}

// Name returns the served model identifier, or "" for an unloaded handle.
func (h *Handle) Name() string {
	if h == nil {
		return ""
	}
	return h.name
}

// Generate forwards to the loaded capability.
func (h *Handle) Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig) (string, error) {
	if !h.Loaded() {
		return "", ErrNotLoaded
	}
	return h.capability.Generate(ctx, messages, cfg)
}
