package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
)

// OllamaEmbedder embeds fragments with a local Ollama embedding model such as
// nomic-embed-text. Fitting learns nothing; the state only pins the model name.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{},
	}
}

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.Model }

func (e *OllamaEmbedder) Fit(ctx context.Context, corpus []string) (Model, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	return &ollamaModel{embedder: e}, nil
}

func (e *OllamaEmbedder) Restore(state json.RawMessage) (Model, error) {
	var s ollamaState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	if s.Model != e.Model {
		return nil, fmt.Errorf("index built with %q, configured %q", s.Model, e.Model)
	}
	return &ollamaModel{embedder: e}, nil
}

type ollamaState struct {
	Model string `json:"model"`
}

type ollamaModel struct {
	embedder *OllamaEmbedder
}

func (m *ollamaModel) State() (json.RawMessage, error) {
	return json.Marshal(ollamaState{Model: m.embedder.Model})
}

func (m *ollamaModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.embedder.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Ollama Embedding Request/Response structures
type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(ollamaEmbeddingRequest{Model: e.Model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, err
	}
	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	return normalizeVector(ollamaResp.Embedding), nil
}

// normalizeVector scales to unit length so stored vectors compare by dot product.
func normalizeVector(vec []float64) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		if magnitude == 0 {
			normalized[i] = float32(v)
			continue
		}
		normalized[i] = float32(v / magnitude)
	}
	return normalized
}
