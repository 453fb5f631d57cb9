// Package embed defines the embedding provider contract and its
// implementations. Providers are external collaborators consumed through a
// narrow interface and selected at configuration time.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrProvider classifies embedding failures as retryable. Callers retry a
// chunk with backoff and let other chunks in the same cycle proceed.
var ErrProvider = errors.New("embed: provider error")

// Provider turns text into a dense vector.
type Provider interface {
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures a provider.
type Config struct {
	// Kind is "openai" or "http".
	Kind string `yaml:"kind" mapstructure:"kind"`
	// BaseURL of the embedding service (http kind) or an OpenAI-compatible
	// endpoint override (openai kind, optional).
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Model name, openai kind only.
	Model string `yaml:"model" mapstructure:"model"`
	// APIKey for the openai kind.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// NewProvider builds the configured provider.
func NewProvider(cfg *Config) (Provider, error) {
	switch cfg.Kind {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "http":
		return NewHTTPProvider(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider kind %q", cfg.Kind)
	}
}
