// Package llm wraps hosted language models behind a single Completer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingCredentials indicates no API key is configured.
	ErrMissingCredentials = errors.New("llm api key not configured")

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("llm credentials rejected")

	// ErrUnavailable indicates a network or service failure. Callers may
	// fall back to deterministic output.
	ErrUnavailable = errors.New("llm service unavailable")

	// ErrInvalidOutput indicates the response could not be parsed into the
	// expected structured format.
	ErrInvalidOutput = errors.New("invalid llm output format")
)

// Completer sends one system+user prompt pair and returns the raw text.
// wantJSON asks the provider for a JSON object response where supported.
type Completer interface {
	Complete(ctx context.Context, system, user string, wantJSON bool) (string, error)
}

// Config selects and configures a provider
type Config struct {
	Provider string // openai, gemini or none
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// IsCredentialError reports whether err means the model cannot be used
// until configuration changes. These errors are never retried.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrUnauthorized)
}

// New builds the configured Completer. Provider "none" (or empty) returns
// nil, meaning the caller runs without a model.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg), nil
	case "gemini":
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
