package reranker

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"ragkit/internal/models"
)

// DefaultFallbackScore is assigned when the scoring provider fails and
// the original retrieval order is kept.
const DefaultFallbackScore = 0.5

// Scorer is the cross-encoder collaborator: given a query and one
// document it returns a scalar relevance score, typically in [0, 1].
type Scorer interface {
	Score(ctx context.Context, query, document string) (float64, error)
}

// Reranker reorders retrieval candidates by cross-encoder relevance.
// Reranking is an optimization, not a correctness requirement: provider
// failures degrade to the original ordering instead of propagating.
type Reranker struct {
	scorer      Scorer
	alpha       float64
	defaultTopK int
}

// New builds a reranker. alpha is the weight given to the rerank score
// in hybrid fusion; defaultTopK caps the result set when a call passes
// a non-positive topK.
func New(scorer Scorer, alpha float64, defaultTopK int) *Reranker {
	return &Reranker{scorer: scorer, alpha: alpha, defaultTopK: defaultTopK}
}

// Rerank sorts candidates by rerank score descending and truncates to
// topK. On scorer failure the original order is returned with the
// neutral default score and Degraded set; Rerank never fails.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.RetrievalResult, topK int) []models.RetrievalResult {
	scored, degraded := r.scoreAll(ctx, query, candidates)
	if !degraded {
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].RerankScore > scored[j].RerankScore
		})
	}
	return truncate(scored, r.topK(topK))
}

// HybridRerank fuses retrieval similarity with rerank relevance:
// hybrid = (1-alpha)*similarity + alpha*rerank. With alpha=0 the
// ranking equals pure similarity, with alpha=1 pure rerank order.
func (r *Reranker) HybridRerank(ctx context.Context, query string, candidates []models.RetrievalResult, topK int) []models.RetrievalResult {
	scored, _ := r.scoreAll(ctx, query, candidates)
	for i := range scored {
		scored[i].HybridScore = (1-r.alpha)*scored[i].SimilarityScore + r.alpha*scored[i].RerankScore
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].HybridScore > scored[j].HybridScore
	})
	return truncate(scored, r.topK(topK))
}

// RerankBatch reranks each query/candidate-set pair independently.
func (r *Reranker) RerankBatch(ctx context.Context, queries []string, candidateSets [][]models.RetrievalResult, topK int) [][]models.RetrievalResult {
	out := make([][]models.RetrievalResult, len(queries))
	for i := range queries {
		if i >= len(candidateSets) {
			break
		}
		out[i] = r.Rerank(ctx, queries[i], candidateSets[i], topK)
	}
	return out
}

// scoreAll scores every candidate. The first scorer failure degrades
// the whole set to the fallback score in original order.
func (r *Reranker) scoreAll(ctx context.Context, query string, candidates []models.RetrievalResult) ([]models.RetrievalResult, bool) {
	scored := make([]models.RetrievalResult, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		score, err := r.scorer.Score(ctx, query, scored[i].Content)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("rerank provider failed, keeping retrieval order")
			for j := range scored {
				scored[j].RerankScore = DefaultFallbackScore
				scored[j].Reranked = true
				scored[j].Degraded = true
			}
			return scored, true
		}
		scored[i].RerankScore = score
		scored[i].Reranked = true
	}
	return scored, false
}

func (r *Reranker) topK(requested int) int {
	if requested > 0 {
		return requested
	}
	return r.defaultTopK
}

func truncate(results []models.RetrievalResult, topK int) []models.RetrievalResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
