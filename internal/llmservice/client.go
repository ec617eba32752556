// Package llmservice creates the completion model and embedder for a session.
package llmservice

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/config"
	"pdf-qa/internal/embedding"
	"pdf-qa/internal/models"
)

// NewModel creates the chat model for cfg.Provider. Streaming is requested per
// call with llms.WithStreamingFunc.
func NewModel(cfg config.LLMConfig, apiKey string) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Creating model")

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		token := strings.TrimPrefix(apiKey, "Bearer ")
		if token == "" {
			return nil, apperr.Newf(apperr.KindCredentialMissing, "", "%s", models.ErrMsgAPIKeyMissing)
		}
		opts := []openai.Option{openai.WithToken(token)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return llm, nil

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Provider hands out the remote clients bound to a credential.
type Provider interface {
	Embedder(apiKey string) (embeddings.Embedder, error)
	Model(apiKey string) (llms.Model, error)
}

// ConfigProvider builds clients from the llm and embedding config sections.
type ConfigProvider struct {
	LLM      config.LLMConfig
	EmbedLLM config.LLMConfig
}

func NewProvider(cfg *config.Config) *ConfigProvider {
	return &ConfigProvider{LLM: cfg.LLM, EmbedLLM: cfg.EmbedLLM}
}

func (p *ConfigProvider) Embedder(apiKey string) (embeddings.Embedder, error) {
	return embedding.NewEmbedder(p.EmbedLLM, apiKey)
}

func (p *ConfigProvider) Model(apiKey string) (llms.Model, error) {
	return NewModel(p.LLM, apiKey)
}

// RequiresCredential reports whether any configured provider needs the stored key.
func (p *ConfigProvider) RequiresCredential() bool {
	return needsKey(p.LLM.Provider) || needsKey(p.EmbedLLM.Provider)
}

func needsKey(provider string) bool {
	return provider == config.ProviderOpenAI || provider == ""
}
