package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/verdin0/verdin/internal/log"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and provider SDKs do
// not expose typed errors for transient failures. Re-evaluate if
// Genkit adds structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Client wraps an Embedder and a Completer with per-call timeouts,
// exponential backoff retry and client-side rate limiting. The pipeline
// stages downstream never retry; transient failures are absorbed here
// or surface as ErrEmbeddingUnavailable / ErrGenerationFailed.
type Client struct {
	embedder  Embedder
	completer Completer
	timeout   time.Duration
	retry     RetryConfig
	limiter   *rate.Limiter
	logger    log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call deadline. Zero disables the deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetry overrides the default retry configuration.
func WithRetry(rc RetryConfig) ClientOption {
	return func(c *Client) { c.retry = rc }
}

// WithRateLimit installs a client-side limiter applied to every
// attempt, including retries.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient wraps the given capabilities with resilience behavior.
func NewClient(embedder Embedder, completer Completer, logger log.Logger, opts ...ClientOption) *Client {
	c := &Client{
		embedder:  embedder,
		completer: completer,
		retry:     DefaultRetryConfig(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed implements Embedder with retry. A failure after all attempts is
// reported as ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.execute(ctx, "embed", func(ctx context.Context) error {
		var err error
		vectors, err = c.embedder.Embed(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vectors, nil
}

// Complete implements Completer with retry. A failure after all
// attempts is reported as ErrGenerationFailed.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var text string
	err := c.execute(ctx, "complete", func(ctx context.Context) error {
		var err error
		text, err = c.completer.Complete(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return text, nil
}

// execute runs fn with exponential backoff retry. Each attempt is rate
// limited and bounded by the configured timeout.
func (c *Client) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		err := c.attempt(ctx, fn)
		if err == nil {
			c.logger.Debug("provider call succeeded",
				"op", op,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return nil
		}

		lastErr = err

		// Non-retryable error, fail immediately.
		if !retryableError(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Last attempt, don't sleep.
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		op, c.retry.MaxRetries, time.Since(start), lastErr)
}

// attempt invokes fn under the per-call deadline.
func (c *Client) attempt(ctx context.Context, fn func(context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(attemptCtx)
}
