package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"ragkit/internal/config"
	"ragkit/internal/embedding"
	"ragkit/internal/helper"
	"ragkit/internal/models"
	"ragkit/internal/parser"
	"ragkit/internal/rag"
	"ragkit/internal/reranker"
	"ragkit/internal/splitter"
	"ragkit/internal/vectorstore"
	"ragkit/internal/vectorstore/chromem"
	"ragkit/internal/vectorstore/postgres"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	query := flag.String("query", "", "Query to be answered")
	info := flag.Bool("info", false, "Print pipeline info")
	dryRun := flag.Bool("dry-run", false, "Parse and split only, do not embed or store")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg.RAG).Msg("Loaded config")

	ctx := context.Background()
	pipeline, err := buildPipeline(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}

	switch {
	case *filePath != "":
		ingestFile(ctx, pipeline, cfg, *filePath, *dryRun)
	case *query != "":
		answerQuery(ctx, pipeline, *query)
	case *info:
		printInfo(ctx, pipeline)
	default:
		log.Fatal().Msg("Provide a document file using -file or a query using -query")
	}
}

func buildPipeline(cfg *config.Config) (*rag.Pipeline, error) {
	split, err := splitter.New(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	var providers []embeddings.Embedder
	if cfg.EmbedLLM.BaseURL != "" && cfg.EmbedLLM.Key == "" {
		embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return nil, err
		}
		providers = append(providers, embedder)
	} else {
		embedder, err := embedding.NewOpenAIEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return nil, err
		}
		providers = append(providers, embedder)
	}
	cache := embedding.NewCache(embedding.NewChain(providers...))

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	rr := reranker.New(reranker.NewLLMScorer(&cfg.RerankLLM), cfg.RAG.HybridAlpha, cfg.RAG.RerankTopK)
	return rag.NewPipeline(split, cache, store, rr, cfg), nil
}

func buildStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		sqldb, err := postgres.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		db := postgres.NewDB(sqldb, cfg.Database.Debug)
		store := postgres.NewStore(db, false)
		if err := store.Init(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	case "chromem":
		return chromem.NewStore(cfg.Store.Path, cfg.Store.Collection, cfg.Store.InMemory, cfg.RAG.EncryptionKey)
	default:
		return vectorstore.NewMemory(), nil
	}
}

func ingestFile(ctx context.Context, pipeline *rag.Pipeline, cfg *config.Config, filePath string, dryRun bool) {
	doc, err := parser.Parse(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Str("file", filePath).Int("chars", len(doc.Content)).Msg("Parsed document")

	if dryRun {
		split, err := splitter.New(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
		if err != nil {
			log.Fatal().Err(err).Msg("Error building splitter")
		}
		pieces, err := split.Split(doc.Content)
		if err != nil {
			log.Fatal().Err(err).Msg("Error splitting document")
		}
		helper.PrettyPrint(pieces)
		return
	}

	ids, err := pipeline.Ingest(ctx, []models.Document{*doc})
	if err != nil {
		log.Fatal().Err(err).Int("stored", len(ids)).Msg("Error ingesting document")
	}
	log.Info().Int("chunks", len(ids)).Msg("Ingested document")
}

func answerQuery(ctx context.Context, pipeline *rag.Pipeline, query string) {
	answer, err := pipeline.Answer(ctx, query, rag.RetrieveOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range answer.Sources {
		fmt.Printf("%s (similarity %.3f)\n", src.Source, src.SimilarityScore)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Response)
}

func printInfo(ctx context.Context, pipeline *rag.Pipeline) {
	info, err := pipeline.Info(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error fetching pipeline info")
	}
	helper.PrettyPrint(info)
}
