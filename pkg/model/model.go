// Package model defines the pluggable backend contract the pipeline
// generates text through. Remote providers and the on-device engine satisfy
// the same single-call interface; the caller selects one per turn.
package model

import "context"

// Backend generates raw text from a prompt. Implementations are stateless
// per call; the same backend may serve interleaved conversations and may be
// swapped between turns.
type Backend interface {
	// Name returns the backend's identifier (e.g. "gemini", "openai",
	// "llama").
	Name() string

	// Generate sends the prompt and blocks until the full response text is
	// available. Failures surface as errors wrapping one of the sentinel
	// errors in this package, never as partial text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Lister is optionally implemented by backends that can enumerate their
// available models.
type Lister interface {
	List(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo mirrors domain.ModelInfo without importing it, keeping this
// package dependency-free for backend implementations.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Lifecycle is the model-lifecycle collaborator for the local backend. The
// host must drive EnsureLoaded before routing turns to the local engine; the
// backend itself only checks readiness and fails hard when the model is not
// resident.
type Lifecycle interface {
	// IsReady reports whether the engine has the model resident in memory.
	IsReady(ctx context.Context) bool

	// EnsureLoaded downloads the model if needed and loads it into the
	// engine, reporting progress as a percentage in [0, 100].
	EnsureLoaded(ctx context.Context, onProgress func(percent float64)) error
}
