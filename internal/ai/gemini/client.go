// Package gemini implements ai.Model on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel matches the model the web terminal has always used.
const DefaultModel = "gemini-1.5-flash-latest"

// Client implements ai.Model for Gemini.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "gemini:" + c.model
}

// Complete sends prompt as a single user turn and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	return result.Text(), nil
}
