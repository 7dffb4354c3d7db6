// Package llama implements the on-device backend over a resident ollama
// engine. The backend never loads a model itself: readiness is owned by the
// lifecycle collaborator, and a generate call against a non-resident model
// fails hard with model.ErrModelNotReady.
package llama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/askdf/askdf/pkg/model"
)

// DefaultModel is used when the caller does not pick one.
const DefaultModel = "llama3.1:8b"

// promptTemplate wraps the assembled prompt in the ChatML role delimiters
// the instruction-tuned model expects. The assembled prompt already carries
// the behavioral rules, so the system turn stays minimal.
const promptTemplate = "<|im_start|>system\nYou are a precise data analyst who answers by writing Go scripts.<|im_end|>\n<|im_start|>user\n%s<|im_end|>\n<|im_start|>assistant\n"

// Backend implements model.Backend against a local ollama engine.
type Backend struct {
	client    *api.Client
	modelName string
	lifecycle model.Lifecycle
}

// Verify interface compliance.
var _ model.Backend = (*Backend)(nil)

// New creates a local backend. lifecycle gates every call; pass the puller
// from NewLifecycle or a host-provided implementation.
func New(client *api.Client, modelName string, lifecycle model.Lifecycle) *Backend {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Backend{client: client, modelName: modelName, lifecycle: lifecycle}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return "llama" }

// Generate wraps the prompt in the model's conversational template and runs
// a raw completion on the resident model.
func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	if b.lifecycle != nil && !b.lifecycle.IsReady(ctx) {
		return "", fmt.Errorf("%w: %s", model.ErrModelNotReady, b.modelName)
	}
	slog.Debug("Llama.Generate", "model", b.modelName, "promptBytes", len(prompt))

	stream := false
	var sb strings.Builder
	req := &api.GenerateRequest{
		Model:  b.modelName,
		Prompt: fmt.Sprintf(promptTemplate, prompt),
		Raw:    true,
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", model.ErrEmptyResponse
	}
	return sb.String(), nil
}

// Lifecycle manages model residency in the ollama engine: download via pull,
// then a warm-up load. It satisfies the model.Lifecycle collaborator the
// host drives before enabling local mode.
type Lifecycle struct {
	client    *api.Client
	modelName string
}

var _ model.Lifecycle = (*Lifecycle)(nil)

// NewLifecycle creates a lifecycle manager for one model.
func NewLifecycle(client *api.Client, modelName string) *Lifecycle {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Lifecycle{client: client, modelName: modelName}
}

// IsReady reports whether the engine currently has the model in memory.
func (l *Lifecycle) IsReady(ctx context.Context) bool {
	running, err := l.client.ListRunning(ctx)
	if err != nil {
		return false
	}
	for _, m := range running.Models {
		if m.Name == l.modelName || m.Model == l.modelName {
			return true
		}
	}
	return false
}

// EnsureLoaded pulls the model if it is not on disk and then loads it into
// the engine with an empty generate call. Progress covers the download
// phase; the load phase reports 100 on completion.
func (l *Lifecycle) EnsureLoaded(ctx context.Context, onProgress func(percent float64)) error {
	if err := l.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}

	err := l.client.Pull(ctx, &api.PullRequest{Model: l.modelName}, func(p api.ProgressResponse) error {
		if onProgress != nil && p.Total > 0 {
			onProgress(float64(p.Completed) / float64(p.Total) * 100)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pulling model %q: %w", l.modelName, err)
	}

	// An empty generate request instructs ollama to load the model and keep
	// it resident.
	stream := false
	err = l.client.Generate(ctx, &api.GenerateRequest{Model: l.modelName, Stream: &stream}, func(api.GenerateResponse) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading model %q: %w", l.modelName, err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	slog.Info("Local model resident", "model", l.modelName)
	return nil
}
