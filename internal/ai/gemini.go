// Package ai wraps the Gemini model calls: receipt extraction, description
// generation and spending insights.
package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultModelName = "gemini-2.5-flash"

var (
	// ErrUpstream marks failures of the model provider.
	ErrUpstream      = errors.New("ai provider error")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Model produces text for a prompt and an optional inline attachment.
type Model interface {
	GenerateText(ctx context.Context, prompt string, attachment *genai.Blob) (string, error)
}

// GeminiModel calls the Gemini API.
type GeminiModel struct {
	client *genai.Client
	name   string
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if modelName == "" {
		modelName = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiModel{client: client, name: modelName}, nil
}

func (m *GeminiModel) GenerateText(ctx context.Context, prompt string, attachment *genai.Blob) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if attachment != nil {
		parts = append(parts, &genai.Part{InlineData: attachment})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := m.client.Models.GenerateContent(ctx, m.name, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %v", ErrUpstream, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrUpstream, ErrEmptyResponse)
	}
	return text, nil
}
