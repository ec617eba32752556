// Package embedding builds the langchaingo embedder for the configured provider.
package embedding

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// NewEmbedder creates an embedder for cfg.Provider. The openai provider
// authenticates with apiKey; ollama ignores it.
func NewEmbedder(cfg config.LLMConfig, apiKey string) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return newOpenAIEmbedder(cfg, apiKey)
	case config.ProviderOllama:
		return newOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newOpenAIEmbedder(cfg config.LLMConfig, apiKey string) (embeddings.Embedder, error) {
	token := strings.TrimPrefix(apiKey, "Bearer ")
	if token == "" {
		return nil, apperr.Newf(apperr.KindCredentialMissing, "", "%s", models.ErrMsgAPIKeyMissing)
	}

	opts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newOllamaEmbedder(cfg config.LLMConfig) (embeddings.Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
