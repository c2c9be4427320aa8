// Package ai defines the language-model boundary used for translating
// natural-language requests into shell commands.
package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no model backend is available.
var ErrNotConfigured = errors.New("AI features are not configured. Please set the API key")

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Model is a prompt-in, text-out language model. Implementations must
// honour ctx cancellation and deadlines.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Name identifies the adapter.
func (f ModelFunc) Name() string {
	return "func"
}
