// Package openai implements the remote backend over the OpenAI chat
// completions wire protocol. Any compatible provider works by overriding the
// base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askdf/askdf/pkg/model"
)

const (
	defaultBaseURL    = "https://api.openai.com"
	defaultModel      = "gpt-4o-mini"
	defaultTemp       = 0.1
	maxErrorBodyBytes = 2048
)

// Backend implements model.Backend against a chat-completions endpoint.
type Backend struct {
	baseURL   string
	apiKey    string
	modelName string
	client    *http.Client
}

// Verify interface compliance.
var _ model.Backend = (*Backend)(nil)

// New creates an OpenAI-compatible backend. baseURL and modelName fall back
// to the OpenAI defaults when empty.
func New(apiKey, baseURL, modelName string) *Backend {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &Backend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		modelName: modelName,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as a single user message and returns the reply.
func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       b.modelName,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: defaultTemp,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", statusError(resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", model.ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", model.ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

func statusError(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", model.ErrUnauthorized, status, body)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", model.ErrRateLimited, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", model.ErrUnavailable, status, body)
	}
}
