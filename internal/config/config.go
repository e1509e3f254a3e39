package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ragkit/internal/models"
)

type Config struct {
	RAG       RAGConfig      `yaml:"rag"`
	EmbedLLM  LLMConfig      `yaml:"embed_llm"`
	RerankLLM LLMConfig      `yaml:"rerank_llm"`
	InferLLM  LLMConfig      `yaml:"inference_llm"`
	Database  DatabaseConfig `yaml:"database"`
	Store     StoreConfig    `yaml:"store"`
}

type RAGConfig struct {
	Splitter            string  `yaml:"splitter"`
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK                int     `yaml:"top_k"`
	RerankTopK          int     `yaml:"rerank_top_k"`
	EnableReranking     bool    `yaml:"enable_reranking"`
	HybridAlpha         float64 `yaml:"hybrid_alpha"`
	EncryptionKey       string  `yaml:"encryption_key"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Key     string `yaml:"key"`
}

type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Debug bool   `yaml:"debug"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // memory, postgres or chromem
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

// Default returns the configuration baseline. YAML keys absent from the
// loaded file keep these values.
func Default() *Config {
	return &Config{
		RAG: RAGConfig{
			Splitter:            "character",
			ChunkSize:           models.DefaultChunkSize,
			ChunkOverlap:        models.DefaultChunkOverlap,
			SimilarityThreshold: models.DefaultSimilarityThreshold,
			TopK:                models.DefaultTopK,
			RerankTopK:          models.DefaultRerankTopK,
			EnableReranking:     true,
			HybridAlpha:         models.DefaultHybridAlpha,
		},
		Store: StoreConfig{
			Backend:    "memory",
			Path:       "./chromemdb",
			Collection: "documents",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrConfiguration, c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", models.ErrConfiguration, c.RAG.ChunkOverlap)
	}
	if c.RAG.HybridAlpha < 0 || c.RAG.HybridAlpha > 1 {
		return fmt.Errorf("%w: hybrid_alpha %v must be in [0, 1]", models.ErrConfiguration, c.RAG.HybridAlpha)
	}
	switch c.RAG.Splitter {
	case "character", "token", "sentence":
	default:
		return fmt.Errorf("%w: unknown splitter strategy %q", models.ErrConfiguration, c.RAG.Splitter)
	}
	switch c.Store.Backend {
	case "memory", "postgres", "chromem":
	default:
		return fmt.Errorf("%w: unknown store backend %q", models.ErrConfiguration, c.Store.Backend)
	}
	return nil
}
