package embedding

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tmc/langchaingo/embeddings"

	"ragkit/internal/models"
)

// Cache memoizes embeddings by exact source text, so repeated ingestion
// and queries hit the provider once per distinct text. Entries live for
// the process lifetime or until Purge; growth is unbounded, which is
// acceptable at bounded document scale. Safe for concurrent use, with
// last-writer-wins on a racing key.
type Cache struct {
	provider embeddings.Embedder
	entries  *xsync.MapOf[string, []float32]
}

func NewCache(provider embeddings.Embedder) *Cache {
	return &Cache{
		provider: provider,
		entries:  xsync.NewMapOf[string, []float32](),
	}
}

// EmbedQuery returns the cached vector for text, calling the provider
// only on a miss.
func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.entries.Load(text); ok {
		return vec, nil
	}
	vec, err := c.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, models.NewProviderError("embedding", err)
	}
	c.entries.Store(text, vec)
	return vec, nil
}

// EmbedDocuments partitions texts into cached and uncached, issues at
// most one provider call for the uncached subset, and returns vectors
// in input order.
func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.entries.Load(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	computed, err := c.provider.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, models.NewProviderError("embedding", err)
	}
	if len(computed) != len(missing) {
		return nil, models.NewProviderError("embedding",
			fmt.Errorf("provider returned %d vectors for %d texts", len(computed), len(missing)))
	}
	for i, vec := range computed {
		c.entries.Store(missing[i], vec)
		vectors[missingIdx[i]] = vec
	}
	return vectors, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.entries.Size() }

// Purge drops every cached entry.
func (c *Cache) Purge() { c.entries.Clear() }
