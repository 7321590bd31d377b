// Package semantic holds the Gemini-backed extraction and classification
// paths. Each is one blocking generateContent call in JSON mode; callers
// decide what to do when the model misbehaves, so nothing here retries.
package semantic

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Provider abstracts the model backend so tests can stub responses.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// GeminiProvider calls the Gemini API through the official GenAI SDK.
type GeminiProvider struct {
	apiKey  string
	model   string
	timeout time.Duration
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a provider for the given model. An empty model
// falls back to gemini-2.0-flash; a zero timeout means no deadline beyond the
// caller's context.
func NewGeminiProvider(apiKey, model string, timeout time.Duration) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{apiKey: apiKey, model: model, timeout: timeout}
}

// Generate sends one generateContent request and returns the raw model text.
func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		}
	}

	result, err := client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	return result.Text(), nil
}
