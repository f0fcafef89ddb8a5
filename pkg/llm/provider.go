package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithTopP(topP float64) Option {
	return func(o *Options) {
		o.TopP = topP
	}
}

func WithTopK(topK int) Option {
	return func(o *Options) {
		o.TopK = topK
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions starts from base and applies opts in order.
func ApplyOptions(base Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// StreamToken is one increment of a streamed answer. The channel carrying it
// is closed after a token with Done or Error set.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// GenerateStream returns once the provider accepted the request. Status
	// errors are reported here; failures after that arrive as a token Error.
	GenerateStream(ctx context.Context, prompt string, options ...Option) (<-chan StreamToken, error)
}

// SendToken delivers tok unless ctx is done first.
func SendToken(ctx context.Context, ch chan<- StreamToken, tok StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}
