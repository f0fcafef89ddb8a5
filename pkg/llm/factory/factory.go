package factory

import (
	"fmt"

	"docchat-be/internal/config"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/llm/gemini"
	"docchat-be/pkg/llm/huggingface"
	"docchat-be/pkg/llm/ollama"
)

func NewLLMProvider(cfg config.LLMConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "gemini", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return gemini.NewGeminiProvider(cfg.GeminiAPIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	case "huggingface", "openai":
		return huggingface.NewHuggingFaceProvider(cfg.HuggingFaceAPIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
