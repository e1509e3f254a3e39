package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkit/internal/models"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"diagonal", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
		{"zero vector", []float32{1, 0}, []float32{0, 0}, 0.0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineRange(t *testing.T) {
	vectors := [][]float32{{1, 2, 3}, {-4, 5, -6}, {0.1, 0.2, 0.3}, {100, -100, 0}}
	for _, a := range vectors {
		for _, b := range vectors {
			score := Cosine(a, b)
			assert.GreaterOrEqual(t, score, -1.0-1e-9)
			assert.LessOrEqual(t, score, 1.0+1e-9)
		}
	}
}

func embedded(id, content string, vec []float32) models.Chunk {
	return models.Chunk{ID: id, Content: content, Embedding: vec, Metadata: map[string]any{}}
}

func TestMemorySearchScenario(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	chunks := []models.Chunk{
		embedded("c1", "east", []float32{1, 0}),
		embedded("c2", "north", []float32{0, 1}),
		embedded("c3", "northeast", []float32{1, 1}),
		embedded("c4", "west", []float32{-1, 0}),
		embedded("c5", "origin", []float32{0, 0}),
	}
	_, err := store.Add(ctx, chunks)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
	assert.Equal(t, "c3", results[1].ID)
	assert.InDelta(t, 1/math.Sqrt2, results[1].SimilarityScore, 1e-9)
}

func TestMemorySearchThresholdAndTopK(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	chunks := []models.Chunk{
		embedded("a", "", []float32{1, 0}),
		embedded("b", "", []float32{0.9, 0.1}),
		embedded("c", "", []float32{0.5, 0.5}),
		embedded("d", "", []float32{0, 1}),
	}
	_, err := store.Add(ctx, chunks)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2, Threshold: 0.3})
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 2)

	for i, res := range results {
		assert.GreaterOrEqual(t, res.SimilarityScore, 0.3)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].SimilarityScore, res.SimilarityScore)
		}
	}
}

func TestMemorySearchStableTieBreak(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	chunks := []models.Chunk{
		embedded("first", "", []float32{1, 0}),
		embedded("second", "", []float32{1, 0}),
		embedded("third", "", []float32{2, 0}), // same direction, same similarity
	}
	_, err := store.Add(ctx, chunks)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
	assert.Equal(t, "third", results[2].ID)
}

func TestMemorySearchSkipsDimensionMismatch(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	chunks := []models.Chunk{
		embedded("ok", "", []float32{1, 0}),
		embedded("corrupt", "", []float32{1, 0, 0}),
	}
	_, err := store.Add(ctx, chunks)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].ID)
}

func TestMemorySearchFilters(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	chunks := []models.Chunk{
		{ID: "en", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "en"}},
		{ID: "fr", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "fr"}},
		{ID: "de", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "de"}},
	}
	_, err := store.Add(ctx, chunks)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{
		TopK: 10, Threshold: 0, Filters: map[string]any{"lang": "fr"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fr", results[0].ID)

	results, err = store.Search(ctx, []float32{1, 0}, SearchOptions{
		TopK: 10, Threshold: 0, Filters: map[string]any{"lang": []any{"en", "de"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestMemoryAddAssignsIDs(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ids, err := store.Add(ctx, []models.Chunk{
		{Content: "x", Embedding: []float32{1}},
		{Content: "y", Embedding: []float32{2}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestMemoryAddPartialFailure(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ids, err := store.Add(ctx, []models.Chunk{
		{ID: "good", Content: "x", Embedding: []float32{1}},
		{ID: "bad", Content: "y"}, // no embedding
	})
	require.Error(t, err)
	assert.Equal(t, []string{"good"}, ids)
}

func TestMemoryCRUD(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ids, err := store.Add(ctx, []models.Chunk{
		{ID: "c1", Content: "hello", Source: "a.txt", Embedding: []float32{1, 0}},
		{ID: "c2", Content: "world", Source: "b.txt", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	chunk, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "hello", chunk.Content)

	// Absent id is nil, not an error.
	chunk, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, chunk)

	ok, err := store.Update(ctx, "c1", map[string]any{"content": "updated"})
	require.NoError(t, err)
	assert.True(t, ok)
	chunk, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "updated", chunk.Content)

	ok, err = store.Update(ctx, "missing", map[string]any{"content": "nope"})
	require.NoError(t, err)
	assert.False(t, ok)

	bySource, err := store.GetBySource(ctx, "b.txt")
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "c2", bySource[0].ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err = store.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMatchesFilters(t *testing.T) {
	meta := map[string]any{"lang": "en", "chunk_index": 3}

	assert.True(t, MatchesFilters(meta, nil))
	assert.True(t, MatchesFilters(meta, map[string]any{"lang": "en"}))
	assert.True(t, MatchesFilters(meta, map[string]any{"chunk_index": 3}))
	assert.True(t, MatchesFilters(meta, map[string]any{"lang": []string{"en", "fr"}}))
	assert.False(t, MatchesFilters(meta, map[string]any{"lang": "fr"}))
	assert.False(t, MatchesFilters(meta, map[string]any{"missing": "x"}))
	assert.False(t, MatchesFilters(meta, map[string]any{"lang": []any{"fr", "de"}}))
}
