package llm

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// retryClient wraps any Client with retry logic for transient failures.
type retryClient struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
}

// wrapWithRetry wraps a client so that it makes up to maxRetries extra attempts.
func wrapWithRetry(client Client, maxRetries int) Client {
	if maxRetries <= 0 {
		return client
	}
	return &retryClient{
		inner:      client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

func (r *retryClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableError(err) || attempt == r.maxRetries {
			break
		}

		delay := r.backoffDelay(attempt)
		slog.Warn("LLM request failed, retrying",
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (r *retryClient) GenerateJSON(ctx context.Context, req *Request, out any) (*Response, error) {
	req.JSONMode = true
	resp, err := r.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, decodeJSON(resp.Content, out)
}

func (r *retryClient) Provider() Provider {
	return r.inner.Provider()
}

func (r *retryClient) Close() error {
	return r.inner.Close()
}

func (r *retryClient) backoffDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	maxDelay := 30 * time.Second
	if time.Duration(delay) > maxDelay {
		return maxDelay
	}
	return time.Duration(delay)
}
