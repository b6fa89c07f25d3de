// Package generation wraps the language-model capability behind a small
// interface. The rest of the pipeline treats model output as an untrusted
// raw string with no guarantees on shape; nothing here validates or executes
// what comes back.
package generation

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"lessonforge/internal/logging"
)

// LLMClient is the black-box generation capability. Implementations return
// raw response text; callers own extraction and validation.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenAIClient is the Gemini-backed LLMClient.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIClient creates a Gemini client. The per-call timeout bounds each
// request independently of the orchestrator's overall wall-clock ceiling.
func NewGenAIClient(apiKey, model string, timeout time.Duration) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model, timeout: timeout}, nil
}

// Complete sends a single-turn prompt.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, nil, prompt)
}

// CompleteWithSystem sends a prompt under a system instruction.
func (c *GenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	return c.generate(ctx, cfg, userPrompt)
}

func (c *GenAIClient) generate(ctx context.Context, cfg *genai.GenerateContentConfig, prompt string) (string, error) {
	log := logging.Get(logging.CategoryGeneration)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	log.Debugw("model call complete", "model", c.model, "prompt_bytes", len(prompt),
		"response_bytes", len(text), "elapsed", time.Since(start))
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}
