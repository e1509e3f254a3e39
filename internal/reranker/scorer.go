package reranker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"ragkit/internal/config"
	"ragkit/internal/llmservice"
	"ragkit/internal/models"
)

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// LLMScorer asks a chat model to rate query/document relevance,
// cross-encoder style. The prompt demands a bare decimal in [0, 1].
type LLMScorer struct {
	cfg *config.LLMConfig
}

func NewLLMScorer(cfg *config.LLMConfig) *LLMScorer {
	return &LLMScorer{cfg: cfg}
}

func (s *LLMScorer) Score(ctx context.Context, query, document string) (float64, error) {
	prompt := fmt.Sprintf(models.RelevancePromptTemplate, query, document)
	out, err := llmservice.GeneratePrompt(ctx, s.cfg, prompt)
	if err != nil {
		return 0, err
	}
	match := numberRe.FindString(out)
	if match == "" {
		return 0, models.NewProviderError("rerank", fmt.Errorf("no score in response %q", out))
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, models.NewProviderError("rerank", err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
