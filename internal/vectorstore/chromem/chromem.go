package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"ragkit/internal/helper"
	"ragkit/internal/models"
	"ragkit/internal/vectorstore"
)

const compress = false

// Reserved metadata keys used to round-trip chunk fields through the
// chromem string-only metadata map.
const (
	metaSource     = "source"
	metaDocumentID = "document_id"
	metaChunkIndex = "chunk_index"
)

// Store keeps chunks in a chromem-go collection, persisted under dbPath
// unless inMemory is set.
type Store struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	name          string
	encryptionKey string
	filePath      string
}

func NewStore(dbPath, collectionName string, inMemory bool, encryptionKey string) (*Store, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, models.NewProviderError("chromem", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, models.NewProviderError("chromem", err)
	}
	return &Store{
		db:            db,
		collection:    collection,
		dbPath:        dbPath,
		name:          collectionName,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
	}, nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	var ids []string
	for start := 0; start < len(chunks); start += vectorstore.AddBatchSize {
		end := start + vectorstore.AddBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		docs := make([]chromem.Document, 0, end-start)
		batchIDs := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if len(chunk.Embedding) == 0 {
				return ids, fmt.Errorf("chunk %q has no embedding", chunk.ID)
			}
			if chunk.ID == "" {
				id, err := helper.GenerateUUID()
				if err != nil {
					return ids, err
				}
				chunk.ID = id
			}
			docs = append(docs, chromem.Document{
				ID:        chunk.ID,
				Content:   chunk.Content,
				Metadata:  encodeMetadata(chunk),
				Embedding: chunk.Embedding,
			})
			batchIDs = append(batchIDs, chunk.ID)
		}
		if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return ids, models.NewProviderError("chromem", err)
		}
		ids = append(ids, batchIDs...)
	}
	return ids, nil
}

func (s *Store) Search(ctx context.Context, queryVec []float32, opts vectorstore.SearchOptions) ([]models.RetrievalResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n := opts.TopK
	if n <= 0 || n > count {
		n = count
	}

	where, postFilters := splitFilters(opts.Filters)
	queryOpts := chromem.QueryOptions{
		QueryEmbedding: queryVec,
		NResults:       n,
		Where:          where,
	}
	results, err := s.collection.QueryWithOptions(ctx, queryOpts)
	if err != nil {
		return nil, models.NewProviderError("chromem", err)
	}

	out := make([]models.RetrievalResult, 0, len(results))
	for _, res := range results {
		score := float64(res.Similarity)
		if score < opts.Threshold {
			continue
		}
		if len(postFilters) > 0 && !vectorstore.MatchesFilters(rawMetadata(res.Metadata), postFilters) {
			continue
		}
		out = append(out, models.RetrievalResult{Chunk: decodeResult(res), SimilarityScore: score})
	}
	return out, nil
}

// splitFilters separates scalar equality filters, which chromem can
// apply natively, from set-membership filters applied after the query.
func splitFilters(filters map[string]any) (map[string]string, map[string]any) {
	if len(filters) == 0 {
		return nil, nil
	}
	where := make(map[string]string)
	post := make(map[string]any)
	for key, value := range filters {
		switch value.(type) {
		case []any, []string:
			post[key] = value
		default:
			where[key] = fmt.Sprint(value)
		}
	}
	if len(where) == 0 {
		where = nil
	}
	if len(post) == 0 {
		post = nil
	}
	return where, post
}

func rawMetadata(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		out[key] = value
	}
	return out
}

func (s *Store) Get(ctx context.Context, id string) (*models.Chunk, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, models.NewProviderError("chromem", err)
	}
	chunk := decodeDocument(doc)
	return &chunk, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return false, models.NewProviderError("chromem", err)
	}
	return true, nil
}

// Update rewrites the stored document; chromem has no partial update,
// so the existing document is merged and re-added under the same id.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	for key, value := range fields {
		switch key {
		case "content":
			if str, ok := value.(string); ok {
				existing.Content = str
			}
		case "source":
			if str, ok := value.(string); ok {
				existing.Source = str
			}
		case "metadata":
			if meta, ok := value.(map[string]any); ok {
				existing.Metadata = meta
			}
		}
	}
	doc := chromem.Document{
		ID:        existing.ID,
		Content:   existing.Content,
		Metadata:  encodeMetadata(*existing),
		Embedding: existing.Embedding,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return false, models.NewProviderError("chromem", err)
	}
	return true, nil
}

// GetBySource is unsupported: chromem exposes no scan API, only
// similarity queries and id lookups.
func (s *Store) GetBySource(ctx context.Context, source string) ([]models.Chunk, error) {
	return nil, fmt.Errorf("chromem store: lookup by source is not supported")
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return models.NewProviderError("chromem", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return models.NewProviderError("chromem", err)
	}
	s.collection = collection
	return nil
}

// Export writes the collection to an encrypted file. Only meaningful
// for in-memory databases.
func (s *Store) Export(ctx context.Context) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("%w: encryption key is required for export", models.ErrConfiguration)
	}
	log.Debug().Str("collection", s.name).Str("file", s.filePath).Msg("exporting collection")
	if err := s.db.ExportToFile(s.filePath, compress, s.encryptionKey, s.name); err != nil {
		return models.NewProviderError("chromem", err)
	}
	return nil
}

// Import loads a previously exported collection file.
func (s *Store) Import(ctx context.Context) error {
	if err := s.db.ImportFromFile(s.filePath, s.encryptionKey, s.name); err != nil {
		return models.NewProviderError("chromem", err)
	}
	return nil
}

func encodeMetadata(chunk models.Chunk) map[string]string {
	meta := make(map[string]string, len(chunk.Metadata)+3)
	for key, value := range chunk.Metadata {
		meta[key] = fmt.Sprint(value)
	}
	meta[metaSource] = chunk.Source
	meta[metaDocumentID] = chunk.DocumentID
	meta[metaChunkIndex] = strconv.Itoa(chunk.ChunkIndex)
	return meta
}

func decodeMetadata(id, content string, embedding []float32, meta map[string]string) models.Chunk {
	chunk := models.Chunk{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  make(map[string]any, len(meta)),
	}
	for key, value := range meta {
		switch key {
		case metaSource:
			chunk.Source = value
		case metaDocumentID:
			chunk.DocumentID = value
		case metaChunkIndex:
			chunk.ChunkIndex, _ = strconv.Atoi(value)
		default:
			chunk.Metadata[key] = value
		}
	}
	return chunk
}

func decodeResult(res chromem.Result) models.Chunk {
	return decodeMetadata(res.ID, res.Content, res.Embedding, res.Metadata)
}

func decodeDocument(doc chromem.Document) models.Chunk {
	return decodeMetadata(doc.ID, doc.Content, doc.Embedding, doc.Metadata)
}
