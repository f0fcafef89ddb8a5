package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"docchat-be/internal/constant"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"

	"golang.org/x/time/rate"
)

// Sampling is the explicit per-call generation configuration.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

var (
	SamplingFullContext  = Sampling{Temperature: 0.3, TopP: 0.8, TopK: 20, MaxTokens: 2048}
	SamplingIndexed      = Sampling{Temperature: 0.1, TopP: 0.9, TopK: 40, MaxTokens: 1024}
	SamplingConversation = Sampling{Temperature: 0.7, TopP: 0.95, TopK: 40, MaxTokens: 2048}
)

func (s Sampling) Options() []Option {
	return []Option{
		WithTemperature(s.Temperature),
		WithTopP(s.TopP),
		WithTopK(s.TopK),
		WithMaxTokens(s.MaxTokens),
	}
}

type GatewayConfig struct {
	// MaxAttempts bounds the total number of provider calls for one request.
	MaxAttempts       int
	BaseDelay         time.Duration
	Timeout           time.Duration
	StreamTimeout     time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Gateway wraps a provider with throttling, timeouts, rate-limit retries and
// error classification.
type Gateway struct {
	provider LLMProvider
	cfg      GatewayConfig
	limiter  *rate.Limiter
	logger   logger.ILogger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewGateway(provider LLMProvider, cfg GatewayConfig, logger logger.ILogger) *Gateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Gateway{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		sleep:    sleepContext,
	}
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

// Generate blocks until the full answer is available.
func (g *Gateway) Generate(ctx context.Context, prompt string, s Sampling) (string, error) {
	var text string
	err := g.withRetry(ctx, "generate", func() error {
		callCtx, cancel := g.callContext(ctx, g.cfg.Timeout)
		defer cancel()

		out, err := g.provider.Generate(callCtx, prompt, s.Options()...)
		if err != nil {
			return g.classify(ctx, err)
		}
		if strings.TrimSpace(out) == "" {
			return g.classify(ctx, ErrEmptyResponse)
		}
		text = out
		return nil
	})
	return text, err
}

// Stream opens a streamed answer. Only opening the stream is retried; once
// chunks flow, failures end the stream.
func (g *Gateway) Stream(ctx context.Context, prompt string, s Sampling) (*Stream, error) {
	var stream *Stream
	err := g.withRetry(ctx, "stream", func() error {
		streamCtx, cancel := g.callContext(ctx, g.cfg.StreamTimeout)

		tokens, err := g.provider.GenerateStream(streamCtx, prompt, s.Options()...)
		if err != nil {
			cancel()
			return g.classify(ctx, err)
		}
		stream = newStream(streamCtx, cancel, tokens, func(err error) error { return g.classify(ctx, err) })
		return nil
	})
	return stream, err
}

func (g *Gateway) callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (g *Gateway) withRetry(ctx context.Context, op string, call func() error) error {
	for attempt := 1; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.classify(ctx, err)
		}

		err := call()
		if err == nil {
			return nil
		}

		appErr, _ := apperr.As(err)
		if appErr == nil || appErr.Kind != apperr.KindProviderRateLimited {
			return err
		}

		delay := g.cfg.BaseDelay << (attempt - 1)
		if appErr.RetryAfter > delay {
			delay = appErr.RetryAfter
		}

		if attempt >= g.cfg.MaxAttempts {
			g.logger.Error("LLM_GATEWAY", "Rate limit retries exhausted", map[string]interface{}{
				"op":       op,
				"attempts": attempt,
				"error":    appErr.Err,
			})
			return &apperr.Error{
				Kind:       apperr.KindProviderRateLimited,
				Message:    constant.RateLimitedMessage,
				RetryAfter: delay,
				Err:        appErr.Err,
			}
		}

		g.logger.Warn("LLM_GATEWAY", "Provider rate limited, backing off", map[string]interface{}{
			"op":       op,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		})
		if err := g.sleep(ctx, delay); err != nil {
			return g.classify(ctx, err)
		}
	}
}

// classify maps a provider or context error onto the apperr taxonomy. ctx is
// the caller's context, used to tell a caller cancellation from a call timeout.
func (g *Gateway) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	if errors.Is(ctx.Err(), context.Canceled) || (errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		return apperr.Wrap(apperr.KindCanceled, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindProviderTimeout, constant.TimeoutMessage, err)
	}
	if strings.Contains(err.Error(), "would exceed context deadline") {
		// rate.Limiter refusing to wait past the deadline
		return apperr.Wrap(apperr.KindProviderTimeout, constant.TimeoutMessage, err)
	}
	if errors.Is(err, ErrContentBlocked) {
		return apperr.Wrap(apperr.KindProviderContentBlocked, constant.ContentBlockedMessage, err)
	}
	if errors.Is(err, ErrEmptyResponse) {
		return apperr.Wrap(apperr.KindProviderEmptyResponse, constant.EmptyResponseMessage, err)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isRateLimitText(msg):
		return apperr.Wrap(apperr.KindProviderRateLimited, constant.RateLimitedMessage, err)
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return apperr.Wrap(apperr.KindProviderAuthFailure, constant.AuthFailureMessage, err)
	}
	return apperr.Wrap(apperr.KindProviderFailure, constant.ProviderFailureMessage, err)
}

func classifyStatus(e *StatusError) error {
	body := strings.ToLower(e.Body)
	switch {
	case e.StatusCode == 429 || isRateLimitText(body):
		return &apperr.Error{
			Kind:       apperr.KindProviderRateLimited,
			Message:    constant.RateLimitedMessage,
			RetryAfter: e.RetryAfter,
			Err:        e,
		}
	case e.StatusCode == 401 || e.StatusCode == 403 || strings.Contains(body, "api key") || strings.Contains(body, "api_key_invalid"):
		return apperr.Wrap(apperr.KindProviderAuthFailure, constant.AuthFailureMessage, e)
	case e.StatusCode == 408 || e.StatusCode == 504:
		return apperr.Wrap(apperr.KindProviderTimeout, constant.TimeoutMessage, e)
	}
	return apperr.Wrap(apperr.KindProviderFailure, constant.ProviderFailureMessage, e)
}

func isRateLimitText(msg string) bool {
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "too many requests")
}
