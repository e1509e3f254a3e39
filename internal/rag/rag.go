package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"ragkit/internal/config"
	"ragkit/internal/helper"
	"ragkit/internal/llmservice"
	"ragkit/internal/models"
	"ragkit/internal/reranker"
	"ragkit/internal/splitter"
	"ragkit/internal/vectorstore"
)

// Pipeline composes the splitter (ingestion path), embedder and store
// (retrieval path) and reranker (refinement path). Stateless across
// calls; the embedding cache injected as the embedder is the only
// long-lived shared state.
type Pipeline struct {
	splitter splitter.Splitter
	embedder embeddings.Embedder
	store    vectorstore.Store
	reranker *reranker.Reranker
	cfg      *config.Config
}

func NewPipeline(split splitter.Splitter, embedder embeddings.Embedder, store vectorstore.Store, rr *reranker.Reranker, cfg *config.Config) *Pipeline {
	return &Pipeline{splitter: split, embedder: embedder, store: store, reranker: rr, cfg: cfg}
}

// Ingest splits, embeds and stores each document. The first failure
// aborts the remaining documents but already-stored chunk ids are
// returned alongside the error; there is no rollback across documents.
func (p *Pipeline) Ingest(ctx context.Context, docs []models.Document) ([]string, error) {
	var ids []string
	for _, doc := range docs {
		if doc.ID == "" {
			id, err := helper.GenerateUUID()
			if err != nil {
				return ids, err
			}
			doc.ID = id
		}
		if doc.Source == "" {
			doc.Source = "unknown"
		}

		pieces, err := p.splitter.Split(doc.Content)
		if err != nil {
			return ids, err
		}
		if len(pieces) == 0 {
			log.Info().Str("document", doc.ID).Msg("document produced no chunks")
			continue
		}

		chunks := make([]models.Chunk, len(pieces))
		texts := make([]string, len(pieces))
		for i, piece := range pieces {
			metadata := make(map[string]any, len(doc.Metadata)+2)
			for key, value := range doc.Metadata {
				metadata[key] = value
			}
			metadata["document_id"] = doc.ID
			metadata["chunk_index"] = i
			chunks[i] = models.Chunk{
				Content:    piece.Content,
				Metadata:   metadata,
				Source:     doc.Source,
				DocumentID: doc.ID,
				ChunkIndex: i,
			}
			texts[i] = piece.Content
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return ids, err
		}
		if len(vectors) != len(chunks) {
			return ids, models.NewProviderError("embedding",
				fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}

		added, err := p.store.Add(ctx, chunks)
		ids = append(ids, added...)
		if err != nil {
			return ids, err
		}
		log.Debug().Str("document", doc.ID).Int("chunks", len(added)).Msg("ingested document")
	}
	return ids, nil
}

// RetrieveOptions override the configured retrieval defaults. Nil
// pointer fields and a non-positive TopK fall back to the config.
type RetrieveOptions struct {
	TopK         int
	Threshold    *float64
	UseReranking *bool
	Filters      map[string]any
}

// Retrieve embeds the query, searches twice the requested candidate
// count to give the reranker a wider pool, and optionally reranks down
// to topK. An empty result is success, not an error; embedding and
// store failures propagate.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]models.RetrievalResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = p.cfg.RAG.TopK
	}
	threshold := p.cfg.RAG.SimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	useReranking := p.cfg.RAG.EnableReranking
	if opts.UseReranking != nil {
		useReranking = *opts.UseReranking
	}

	queryVec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := p.store.Search(ctx, queryVec, vectorstore.SearchOptions{
		TopK:      topK * 2,
		Threshold: threshold,
		Filters:   opts.Filters,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Debug().Str("query", query).Msg("no chunks above similarity threshold")
		return []models.RetrievalResult{}, nil
	}

	if useReranking && p.reranker != nil && len(candidates) > 1 {
		return p.reranker.HybridRerank(ctx, query, candidates, topK), nil
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// Answer holds a generated response and the retrieval results it was
// grounded on.
type Answer struct {
	Query    string
	Response string
	Sources  []models.RetrievalResult
}

// Answer retrieves context for the query and asks the generation model
// for a grounded response.
func (p *Pipeline) Answer(ctx context.Context, query string, opts RetrieveOptions) (*Answer, error) {
	results, err := p.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, buildContext(results), query)
	response, err := llmservice.GeneratePrompt(ctx, &p.cfg.InferLLM, prompt)
	if err != nil {
		return nil, err
	}
	return &Answer{Query: query, Response: response, Sources: results}, nil
}

// Info reports the pipeline composition and the stored chunk count.
func (p *Pipeline) Info(ctx context.Context) (map[string]any, error) {
	count, err := p.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"splitter":        p.cfg.RAG.Splitter,
		"store_backend":   p.cfg.Store.Backend,
		"reranking":       p.cfg.RAG.EnableReranking,
		"hybrid_alpha":    p.cfg.RAG.HybridAlpha,
		"document_count":  count,
		"embedding_model": p.cfg.EmbedLLM.Model,
		"inference_model": p.cfg.InferLLM.Model,
	}, nil
}

func buildContext(results []models.RetrievalResult) string {
	var b strings.Builder
	for i, res := range results {
		source := res.Source
		if source == "" {
			source = "unknown"
		}
		b.WriteString(fmt.Sprintf("[Document %d - Source: %s]\n%s\n\n", i+1, source, res.Content))
	}
	return b.String()
}
