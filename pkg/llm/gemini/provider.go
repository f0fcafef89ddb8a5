package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docchat-be/internal/constant"
	"docchat-be/pkg/llm"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, baseURL, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// per-call deadlines come from the context
		client: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// text returns the concatenated candidate text, or ErrContentBlocked when the
// prompt or the only candidate was stopped by a safety filter.
func (r *geminiResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", llm.ErrContentBlocked, r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", nil
	}

	c := r.Candidates[0]
	var sb strings.Builder
	if c.Content != nil {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 && isBlockedFinish(c.FinishReason) {
		return "", fmt.Errorf("%w: %s", llm.ErrContentBlocked, c.FinishReason)
	}
	return sb.String(), nil
}

func isBlockedFinish(reason string) bool {
	switch reason {
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return true
	}
	return false
}

func (p *GeminiProvider) buildRequest(history []llm.Message, opts llm.Options) geminiRequest {
	req := geminiRequest{}
	for _, msg := range history {
		switch msg.Role {
		case constant.ChatMessageRoleSystem:
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
		case constant.ChatMessageRoleAssistant, constant.ChatMessageRoleModel:
			req.Contents = append(req.Contents, geminiContent{Role: constant.ChatMessageRoleModel, Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: constant.ChatMessageRoleUser, Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	cfg := &generationConfig{MaxOutputTokens: opts.MaxTokens}
	temp := opts.Temperature
	cfg.Temperature = &temp
	if opts.TopP > 0 {
		topP := opts.TopP
		cfg.TopP = &topP
	}
	if opts.TopK > 0 {
		topK := opts.TopK
		cfg.TopK = &topK
	}
	req.GenerationConfig = cfg
	return req
}

func (p *GeminiProvider) do(ctx context.Context, method string, history []llm.Message, options []llm.Option) (*http.Response, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	payload, err := json.Marshal(p.buildRequest(history, opts))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", p.baseURL, opts.Model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, llm.NewStatusError("gemini", resp, body)
	}
	return resp, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	resp, err := p.do(ctx, "generateContent", history, options)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var geminiRes geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiRes); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return geminiRes.text()
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}, options...)
}

func (p *GeminiProvider) GenerateStream(ctx context.Context, prompt string, options ...llm.Option) (<-chan llm.StreamToken, error) {
	history := []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}
	resp, err := p.do(ctx, "streamGenerateContent?alt=sse", history, options)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamToken, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := llm.ReadSSE(resp.Body, func(data string) (bool, error) {
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return false, fmt.Errorf("decode stream chunk: %w", err)
			}
			text, err := chunk.text()
			if err != nil {
				return true, err
			}
			if text == "" {
				return false, nil
			}
			return !llm.SendToken(ctx, ch, llm.StreamToken{Content: text}), nil
		})
		if ctx.Err() != nil {
			// consumer is gone, closing the channel is enough
			return
		}
		if err != nil {
			llm.SendToken(ctx, ch, llm.StreamToken{Done: true, Error: err})
			return
		}
		llm.SendToken(ctx, ch, llm.StreamToken{Done: true})
	}()

	return ch, nil
}
