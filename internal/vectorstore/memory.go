package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"ragkit/internal/helper"
	"ragkit/internal/models"
)

// Memory is a brute-force in-process store. It keeps insertion order,
// which the stable ranking pass relies on for tie-breaking.
type Memory struct {
	mu     sync.RWMutex
	chunks []models.Chunk
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	var ids []string
	for start := 0; start < len(chunks); start += AddBatchSize {
		end := start + AddBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batchIDs, err := m.addBatch(chunks[start:end])
		ids = append(ids, batchIDs...)
		if err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (m *Memory) addBatch(batch []models.Chunk) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(batch))
	for _, chunk := range batch {
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
		m.chunks = append(m.chunks, chunk)
		ids = append(ids, chunk.ID)
	}
	return ids, nil
}

func (m *Memory) Search(ctx context.Context, queryVec []float32, opts SearchOptions) ([]models.RetrievalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ScoreAndRank(m.chunks, queryVec, opts), nil
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.chunks {
		if m.chunks[i].ID == id {
			chunk := m.chunks[i]
			return &chunk, nil
		}
	}
	return nil, nil
}

func (m *Memory) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.chunks {
		if m.chunks[i].ID == id {
			m.chunks = append(m.chunks[:i], m.chunks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.chunks {
		if m.chunks[i].ID != id {
			continue
		}
		for key, value := range fields {
			switch key {
			case "content":
				if s, ok := value.(string); ok {
					m.chunks[i].Content = s
				}
			case "source":
				if s, ok := value.(string); ok {
					m.chunks[i].Source = s
				}
			case "metadata":
				if meta, ok := value.(map[string]any); ok {
					m.chunks[i].Metadata = meta
				}
			}
		}
		return true, nil
	}
	return false, nil
}

func (m *Memory) GetBySource(ctx context.Context, source string) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Chunk
	for _, chunk := range m.chunks {
		if chunk.Source == source {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}
