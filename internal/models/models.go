package models

// Document is raw input to ingestion. It is consumed entirely by the
// splitter; only the resulting chunks are persisted.
type Document struct {
	ID       string
	Content  string
	Source   string
	Metadata map[string]any
}

// Chunk is a bounded slice of document text stored with its embedding
// and metadata. Immutable once stored, except via explicit update/delete.
type Chunk struct {
	ID         string
	Content    string
	Embedding  []float32
	Metadata   map[string]any
	Source     string
	DocumentID string
	ChunkIndex int
}

// RetrievalResult is a chunk plus the scores attached during retrieval.
// RerankScore and HybridScore are only meaningful when Reranked is set.
// Degraded marks results where the rerank provider failed and the
// original retrieval order was kept with a neutral default score.
type RetrievalResult struct {
	Chunk
	SimilarityScore float64
	RerankScore     float64
	HybridScore     float64
	Reranked        bool
	Degraded        bool
}
