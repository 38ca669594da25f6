// Package gemini wraps the Gemini generateContent API behind a small
// client with a hard timeout and defensive response parsing.
//
// The client makes exactly one outbound call per Generate invocation and
// never retries; retry policy, if any, belongs to the caller. All
// transport-level failures (network, non-success status, timeout) surface
// as ErrGeneration so callers can match one error kind.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spurstore/supportchat/internal/log"
)

// Sentinel errors for generation.
var (
	// ErrGeneration indicates the generation call failed: network error,
	// non-success response status, or timeout. The caller decides the
	// fallback policy.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyPrompt indicates Generate was called with an empty prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// EmptyReply is returned when the provider answers successfully but the
// response contains no extractable text. This is an empty-result policy,
// not an error; it is distinct from ErrGeneration.
const EmptyReply = "Sorry — I couldn’t generate a reply right now."

// Config holds the generation knobs, passed through unmodified to the
// provider on every call.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float32
	Timeout         time.Duration

	// BaseURL overrides the provider endpoint. Tests point it at a local
	// httptest server; production leaves it empty.
	BaseURL string
}

// Client calls the Gemini text-generation endpoint.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	gc      *genai.Client
	model   string
	tokens  int32
	temp    float32
	timeout time.Duration
	logger  log.Logger
}

// New creates a Client from the given configuration.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.MaxOutputTokens <= 0 {
		return nil, fmt.Errorf("max output tokens must be positive, got %d", cfg.MaxOutputTokens)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		gc:      gc,
		model:   cfg.Model,
		tokens:  int32(cfg.MaxOutputTokens), // #nosec G115 -- bounded by config validation
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Generate sends one prompt to the provider and returns the reply text.
//
// The call is bounded by the configured timeout; exceeding it is
// indistinguishable from any other transport failure and surfaces as
// ErrGeneration. A success response with no extractable text returns
// EmptyReply with a nil error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.gc.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: c.tokens,
		Temperature:     genai.Ptr(c.temp),
	})
	if err != nil {
		c.logger.Warn("generation call failed",
			"model", c.model,
			"duration", time.Since(start),
			"error", err)
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	text := extractText(resp)
	c.logger.Debug("generation call completed",
		"model", c.model,
		"duration", time.Since(start),
		"reply_len", len(text))

	if text == "" {
		return EmptyReply, nil
	}
	return text, nil
}

// extractText locates the first candidate's content and concatenates all
// of its text parts. The provider payload is treated as untrusted: any
// missing or mismatched shape yields an empty string rather than a panic.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
