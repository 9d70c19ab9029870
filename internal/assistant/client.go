// Package assistant integrates an OpenAI-compatible chat model into the
// compose workflow: in-character conversation replies, tone assessment of
// drafts, and editorial review generation for the final-edit phase.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Errors for assistant operations.
var (
	// ErrEmptyMessage indicates empty user input where text is required.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBadModelOutput indicates the model's response could not be parsed
	// into the expected shape.
	ErrBadModelOutput = errors.New("model output could not be parsed")

	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Client is the chat completion surface the assistant service depends on.
type Client interface {
	// Complete sends one system prompt and one user prompt and returns the
	// model's text reply.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config holds configuration for the OpenAI-compatible chat client.
type Config struct {
	// BaseURL is the base URL for the chat API. Any OpenAI-compatible
	// server works, including local ones.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// APIKey is the API key (optional for local servers).
	APIKey string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int

	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int

	// MaxRetries is the number of attempts per call.
	MaxRetries int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient is a Client backed by langchaingo's OpenAI-compatible model,
// with rate limiting and retry.
type OpenAIClient struct {
	model       llms.Model
	limiter     *rate.Limiter
	logger      *zap.Logger
	temperature float64
	maxTokens   int
	maxRetries  int
	backoffUnit time.Duration
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat client with the given configuration.
func NewOpenAIClient(config Config, logger *zap.Logger) (*OpenAIClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// langchaingo requires a token; local OpenAI-compatible servers ignore it.
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), config.RequestsPerMinute)
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	maxRetries := config.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	return &OpenAIClient{
		model:       llm,
		limiter:     limiter,
		logger:      logger,
		temperature: temperature,
		maxTokens:   maxTokens,
		maxRetries:  maxRetries,
		backoffUnit: time.Second,
	}, nil
}

// Complete sends the prompts and returns the first choice's text. Transient
// failures are retried with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.model.GenerateContent(ctx, messages,
			llms.WithTemperature(c.temperature),
			llms.WithMaxTokens(c.maxTokens),
		)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("%w: no choices in response", ErrBadModelOutput)
			}
			return resp.Choices[0].Content, nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(1<<(attempt-1)) * c.backoffUnit
		c.logger.Warn("chat completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.maxRetries, lastErr)
}
