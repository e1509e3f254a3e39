package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"ragkit/internal/config"
	"ragkit/internal/models"
)

// NewOpenAIEmbedder creates an embedder backed by an OpenAI-compatible
// endpoint (OpenAI, OpenRouter, ...).
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, models.NewProviderError("openai", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, models.NewProviderError("openai", err)
	}
	return embedder, nil
}

// NewOllamaEmbedder creates an embedder backed by a local ollama server.
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, models.NewProviderError("ollama", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, models.NewProviderError("ollama", err)
	}
	return embedder, nil
}

// Chain tries an ordered list of interchangeable providers and returns
// the first success. All providers failing surfaces the last error.
type Chain struct {
	providers []embeddings.Embedder
}

func NewChain(providers ...embeddings.Embedder) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for i, p := range c.providers {
		vec, err := p.EmbedQuery(ctx, text)
		if err == nil {
			return vec, nil
		}
		log.Warn().Err(err).Int("provider", i).Msg("embedding provider failed, trying next")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no embedding providers configured")
	}
	return nil, models.NewProviderError("embedding-chain", lastErr)
}

func (c *Chain) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for i, p := range c.providers {
		vecs, err := p.EmbedDocuments(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		log.Warn().Err(err).Int("provider", i).Msg("embedding provider failed, trying next")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no embedding providers configured")
	}
	return nil, models.NewProviderError("embedding-chain", lastErr)
}
