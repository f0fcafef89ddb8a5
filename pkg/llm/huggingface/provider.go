package huggingface

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

// HuggingFaceProvider talks to any OpenAI compatible /chat/completions API.
// The default base URL is the Hugging Face router.
type HuggingFaceProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ llm.LLMProvider = &HuggingFaceProvider{}

// Request Payload Structure (OpenAI Compatible)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewHuggingFaceProvider(apiKey, baseURL, model string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1" // Default Router URL
	}
	return &HuggingFaceProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *HuggingFaceProvider) post(ctx context.Context, history []llm.Message, stream bool, options []llm.Option) (*http.Response, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, MaxTokens: 500, Temperature: 0.7}, options...)

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    history,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      stream,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, llm.NewStatusError("huggingface", resp, bodyBytes)
	}
	return resp, nil
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	resp, err := p.post(ctx, history, false, options)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("huggingface api returned error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	if chatResp.Choices[0].FinishReason == "content_filter" && chatResp.Choices[0].Message.Content == "" {
		return "", llm.ErrContentBlocked
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	messages := []llm.Message{
		{Role: constant.ChatMessageRoleUser, Content: prompt},
	}
	return p.Chat(ctx, messages, options...)
}

func (p *HuggingFaceProvider) GenerateStream(ctx context.Context, prompt string, options ...llm.Option) (<-chan llm.StreamToken, error) {
	messages := []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}
	resp, err := p.post(ctx, messages, true, options)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamToken, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := llm.ReadSSE(resp.Body, func(data string) (bool, error) {
			if data == "[DONE]" {
				return true, nil
			}
			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return false, fmt.Errorf("decode stream chunk: %w", err)
			}
			if chunk.Error != nil {
				return true, fmt.Errorf("huggingface api returned error: %s", chunk.Error.Message)
			}
			if len(chunk.Choices) == 0 {
				return false, nil
			}
			if chunk.Choices[0].FinishReason == "content_filter" {
				return true, llm.ErrContentBlocked
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				return false, nil
			}
			return !llm.SendToken(ctx, ch, llm.StreamToken{Content: text}), nil
		})
		if ctx.Err() != nil {
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
