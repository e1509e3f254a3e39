package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"ragkit/internal/config"
	"ragkit/internal/helper"
	"ragkit/internal/models"
	"ragkit/internal/vectorstore"
)

type record struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string         `bun:"id,pk"`
	Content       string         `bun:"content,notnull"`
	Embedding     []float32      `bun:"embedding,notnull,type:vector(1024)"`
	Metadata      map[string]any `bun:"metadata,type:jsonb"`
	Source        string         `bun:"source"`
	DocumentID    string         `bun:"document_id"`
	ChunkIndex    int            `bun:"chunk_index"`
	Similarity    float64        `bun:"similarity,scanonly"`
}

func (r *record) chunk() models.Chunk {
	return models.Chunk{
		ID:         r.ID,
		Content:    r.Content,
		Embedding:  r.Embedding,
		Metadata:   r.Metadata,
		Source:     r.Source,
		DocumentID: r.DocumentID,
		ChunkIndex: r.ChunkIndex,
	}
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Store is a pgvector-backed chunk store. Similarity ranking runs
// natively in the database through the cosine distance operator; the
// in-process scoring pass is kept only for databases without a vector
// index (manualScan).
type Store struct {
	db         *bun.DB
	manualScan bool
}

func NewStore(db *bun.DB, manualScan bool) *Store {
	return &Store{db: db, manualScan: manualScan}
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return models.NewProviderError("postgres", err)
	}
	if _, err := s.db.NewCreateTable().Model((*record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return models.NewProviderError("postgres", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	var ids []string
	for start := 0; start < len(chunks); start += vectorstore.AddBatchSize {
		end := start + vectorstore.AddBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]record, 0, end-start)
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
			batch = append(batch, record{
				ID:         chunk.ID,
				Content:    chunk.Content,
				Embedding:  chunk.Embedding,
				Metadata:   chunk.Metadata,
				Source:     chunk.Source,
				DocumentID: chunk.DocumentID,
				ChunkIndex: chunk.ChunkIndex,
			})
			batchIDs = append(batchIDs, chunk.ID)
		}
		if _, err := s.db.NewInsert().Model(&batch).Exec(ctx); err != nil {
			return ids, models.NewProviderError("postgres", err)
		}
		ids = append(ids, batchIDs...)
		log.Debug().Int("batch", start/vectorstore.AddBatchSize+1).Int("size", len(batch)).Msg("inserted chunk batch")
	}
	return ids, nil
}

func (s *Store) Search(ctx context.Context, queryVec []float32, opts vectorstore.SearchOptions) ([]models.RetrievalResult, error) {
	if s.manualScan {
		return s.searchManual(ctx, queryVec, opts)
	}

	var recs []record
	q := s.db.NewSelect().Model(&recs).
		ColumnExpr("d.*").
		ColumnExpr("1 - (d.embedding <=> ?) AS similarity", queryVec).
		Where("1 - (d.embedding <=> ?) >= ?", queryVec, opts.Threshold).
		OrderExpr("d.embedding <=> ?", queryVec)
	if opts.TopK > 0 {
		q = q.Limit(opts.TopK)
	}
	q = applyFilters(q, opts.Filters)
	if err := q.Scan(ctx); err != nil {
		return nil, models.NewProviderError("postgres", err)
	}

	results := make([]models.RetrievalResult, 0, len(recs))
	for i := range recs {
		results = append(results, models.RetrievalResult{
			Chunk:           recs[i].chunk(),
			SimilarityScore: recs[i].Similarity,
		})
	}
	return results, nil
}

// searchManual loads candidates and scores them in-process, for
// databases where the vector operator is unavailable.
func (s *Store) searchManual(ctx context.Context, queryVec []float32, opts vectorstore.SearchOptions) ([]models.RetrievalResult, error) {
	var recs []record
	q := s.db.NewSelect().Model(&recs).OrderExpr("d.id ASC")
	q = applyFilters(q, opts.Filters)
	if err := q.Scan(ctx); err != nil {
		return nil, models.NewProviderError("postgres", err)
	}
	chunks := make([]models.Chunk, 0, len(recs))
	for i := range recs {
		chunks = append(chunks, recs[i].chunk())
	}
	scanOpts := opts
	scanOpts.Filters = nil // already applied in SQL
	return vectorstore.ScoreAndRank(chunks, queryVec, scanOpts), nil
}

func applyFilters(q *bun.SelectQuery, filters map[string]any) *bun.SelectQuery {
	for key, value := range filters {
		switch value := value.(type) {
		case []any:
			vals := make([]string, len(value))
			for i, v := range value {
				vals[i] = fmt.Sprint(v)
			}
			q = q.Where("d.metadata->>? IN (?)", key, bun.In(vals))
		case []string:
			q = q.Where("d.metadata->>? IN (?)", key, bun.In(value))
		default:
			q = q.Where("d.metadata->>? = ?", key, fmt.Sprint(value))
		}
	}
	return q
}

func (s *Store) Get(ctx context.Context, id string) (*models.Chunk, error) {
	rec := new(record)
	err := s.db.NewSelect().Model(rec).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewProviderError("postgres", err)
	}
	chunk := rec.chunk()
	return &chunk, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewDelete().Model((*record)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, models.NewProviderError("postgres", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	q := s.db.NewUpdate().Model((*record)(nil)).Where("id = ?", id)
	for key, value := range fields {
		switch key {
		case "content", "source", "metadata":
			q = q.Set("? = ?", bun.Ident(key), value)
		}
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, models.NewProviderError("postgres", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) GetBySource(ctx context.Context, source string) ([]models.Chunk, error) {
	var recs []record
	err := s.db.NewSelect().Model(&recs).Where("d.source = ?", source).OrderExpr("d.chunk_index ASC").Scan(ctx)
	if err != nil {
		return nil, models.NewProviderError("postgres", err)
	}
	chunks := make([]models.Chunk, 0, len(recs))
	for i := range recs {
		chunks = append(chunks, recs[i].chunk())
	}
	return chunks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*record)(nil)).Count(ctx)
	if err != nil {
		return 0, models.NewProviderError("postgres", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.NewTruncateTable().Model((*record)(nil)).Exec(ctx); err != nil {
		return models.NewProviderError("postgres", err)
	}
	return nil
}
