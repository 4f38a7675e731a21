package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Gemini implements Completer with the Google generative AI SDK
type Gemini struct {
	client *genai.Client
	cfg    Config
}

// NewGemini creates the SDK client. A missing key is reported on the first
// Complete call rather than here, so the daemon can still start.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return &Gemini{cfg: cfg}, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

func (g *Gemini) Complete(ctx context.Context, system, user string, wantJSON bool) (string, error) {
	if g.client == nil {
		return "", ErrMissingCredentials
	}

	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(0.2)

	// The instructions travel as the first part. JSON output is requested by
	// the system prompt itself, so wantJSON needs no model setting here.
	resp, err := model.GenerateContent(ctx, genai.Text(system), genai.Text(user))
	if err != nil {
		return "", classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidOutput)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts", ErrInvalidOutput)
	}
	return b.String(), nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func classifyGemini(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case codes.InvalidArgument:
			if strings.Contains(s.Message(), "API key") {
				return fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
