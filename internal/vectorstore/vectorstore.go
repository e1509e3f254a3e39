package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ragkit/internal/models"
)

// AddBatchSize bounds the payload of a single insert request.
const AddBatchSize = 100

// SearchOptions narrow and cap a similarity search.
type SearchOptions struct {
	TopK      int
	Threshold float64
	// Filters constrain metadata fields before ranking. A slice value
	// means set membership, anything else equality.
	Filters map[string]any
}

// Store persists embedded chunks and answers similarity searches.
type Store interface {
	// Add persists chunks in batches. On a batch failure the ids
	// already inserted are returned together with the error.
	Add(ctx context.Context, chunks []models.Chunk) ([]string, error)
	// Search returns results ordered by descending similarity,
	// filtered to similarity >= Threshold, truncated to TopK.
	Search(ctx context.Context, queryVec []float32, opts SearchOptions) ([]models.RetrievalResult, error)
	// Get returns nil (not an error) when id is absent.
	Get(ctx context.Context, id string) (*models.Chunk, error)
	Delete(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, fields map[string]any) (bool, error)
	GetBySource(ctx context.Context, source string) ([]models.Chunk, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Cosine computes dot(a,b) / (|a| * |b|). A zero-norm vector yields 0.0
// rather than a division error: zero vectors are never similar to
// anything.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MatchesFilters reports whether chunk metadata satisfies every filter.
// Metadata values are scalar, so comparison is by printed value.
func MatchesFilters(meta map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		switch want := want.(type) {
		case []any:
			if !containsValue(want, got) {
				return false
			}
		case []string:
			vals := make([]any, len(want))
			for i, w := range want {
				vals[i] = w
			}
			if !containsValue(vals, got) {
				return false
			}
		default:
			if fmt.Sprint(got) != fmt.Sprint(want) {
				return false
			}
		}
	}
	return true
}

func containsValue(want []any, got any) bool {
	for _, w := range want {
		if fmt.Sprint(got) == fmt.Sprint(w) {
			return true
		}
	}
	return false
}

// ScoreAndRank runs the in-process scoring pass shared by the stores
// that rank manually. Chunks whose embedding dimensionality does not
// match the query are skipped as unscoreable rather than aborting the
// search. Ties keep storage order (stable sort), so result ordering is
// deterministic.
func ScoreAndRank(chunks []models.Chunk, queryVec []float32, opts SearchOptions) []models.RetrievalResult {
	results := make([]models.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		if len(opts.Filters) > 0 && !MatchesFilters(chunk.Metadata, opts.Filters) {
			continue
		}
		if len(chunk.Embedding) != len(queryVec) {
			continue
		}
		score := Cosine(queryVec, chunk.Embedding)
		if score < opts.Threshold {
			continue
		}
		results = append(results, models.RetrievalResult{Chunk: chunk, SimilarityScore: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}
