// Package gemini implements the remote backend on the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/askdf/askdf/pkg/model"
)

// DefaultModel is used when the caller does not pick one.
const DefaultModel = "gemini-2.0-flash"

// Backend implements model.Backend using the Google Gen AI SDK.
type Backend struct {
	client    *genai.Client
	modelName string
}

// Verify interface compliance.
var _ model.Backend = (*Backend)(nil)
var _ model.Lister = (*Backend)(nil)

// New creates a Gemini backend.
func New(ctx context.Context, apiKey, modelName string) (*Backend, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Backend{client: client, modelName: modelName}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return "gemini" }

// Generate sends the prompt and returns the full response text.
func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	slog.Debug("Gemini.Generate", "model", b.modelName, "promptBytes", len(prompt))

	resp, err := b.client.Models.GenerateContent(ctx, b.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", model.ErrEmptyResponse
	}
	return text, nil
}

// List returns the Gemini models that support content generation.
func (b *Backend) List(ctx context.Context) ([]model.ModelInfo, error) {
	var models []model.ModelInfo
	for m, err := range b.client.Models.All(ctx) {
		if err != nil {
			return nil, classify(err)
		}

		supportsGenerate := false
		for _, action := range m.SupportedActions {
			if action == "generateContent" {
				supportsGenerate = true
				break
			}
		}
		if !supportsGenerate {
			continue
		}

		maxTokens := 0
		if m.InputTokenLimit > 0 {
			maxTokens = int(m.InputTokenLimit)
		}
		models = append(models, model.ModelInfo{
			ID:        m.Name,
			Name:      m.DisplayName,
			Provider:  "gemini",
			MaxTokens: maxTokens,
		})
	}
	return models, nil
}

func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota"):
		return fmt.Errorf("%w: %v", model.ErrRateLimited, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "API key"):
		return fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
}
