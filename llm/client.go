// LLMClient - wraps a provider with bounded retry and logging.
//
// Information Hiding:
// - Backoff schedule and jitter source
// - Which failures are retried

package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxRetries int           // Attempts after the first
	BaseDelay  time.Duration // Delay before the first retry, doubled each time
	MaxJitter  time.Duration // Upper bound of random delay added per retry
}

// DefaultRetryPolicy returns 3 retries starting at 1s with up to 250ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxJitter:  250 * time.Millisecond,
	}
}

// Backoff returns the delay before retry number attempt (0-based), without jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// Client wraps a Provider with retries.
type Client struct {
	provider Provider
	retry    RetryPolicy
	logger   *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{
		provider: provider,
		retry:    DefaultRetryPolicy(),
		logger:   slog.Default(),
		sleep:    sleepContext,
		jitter:   randomJitter,
	}
}

// WithRetryPolicy replaces the default retry policy.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// WithLogger sets the logger used for retry diagnostics.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// Send issues req, retrying timeouts, rate limits, 5xx and connection
// failures with exponential backoff. Authentication failures and other
// errors are returned immediately.
func (c *Client) Send(ctx context.Context, req Request) (LLMResponse, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := c.provider.Complete(ctx, req)
		if err == nil {
			c.logger.Debug("completion",
				"provider", c.provider.Name(),
				"attempt", attempt+1,
				"tool_calls", len(resp.ToolCalls),
				"elapsed", time.Since(start))
			return resp, nil
		}

		if errors.Is(err, ErrAuthentication) || !IsRetryable(err) || attempt >= c.retry.MaxRetries || ctx.Err() != nil {
			return LLMResponse{}, err
		}

		delay := c.retry.Backoff(attempt)
		if c.retry.MaxJitter > 0 {
			delay += c.jitter(c.retry.MaxJitter)
		}
		c.logger.Warn("completion failed, retrying",
			"provider", c.provider.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return LLMResponse{}, err
		}
	}
}

// Chat sends messages with provider defaults and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	response, err := c.Send(ctx, Request{Messages: messages})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(limit time.Duration) time.Duration {
	return rand.N(limit)
}
