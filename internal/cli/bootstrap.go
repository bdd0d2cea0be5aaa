package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/easeaico/project-jobo/internal/config"
	"github.com/easeaico/project-jobo/internal/memory"
	"github.com/easeaico/project-jobo/internal/models"
	"github.com/easeaico/project-jobo/internal/personalization"
	"github.com/easeaico/project-jobo/internal/storage"
)

// app owns the engine and every backend it was wired with.
type app struct {
	engine  *personalization.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setupLogging installs a text slog handler at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// bootstrap connects the backends selected by cfg and builds the engine.
func bootstrap(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	store, err := storage.NewStore(ctx, cfg.DBType, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to database: %w", err))
	}
	a.closers = append(a.closers, store.Close)

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	var semantic memory.SemanticStore
	switch cfg.VectorBackend {
	case config.VectorPgvector:
		pg, err := storage.NewPgVectorStore(ctx, cfg.DatabaseURL, embedder.Dimensions())
		if err != nil {
			return fail(fmt.Errorf("failed to create pgvector store: %w", err))
		}
		a.closers = append(a.closers, pg.Close)
		semantic = pg
	default:
		chroma, err := memory.NewChromemStore(cfg.ChromaPersistDir)
		if err != nil {
			return fail(fmt.Errorf("failed to create chromem store: %w", err))
		}
		semantic = chroma
	}

	var recency memory.RecencyBuffer
	if cfg.RedisURL != "" {
		client, err := memory.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		recency = memory.NewRedisRecency(client, cfg.RecencyCapacity, cfg.RecencyTTL)
	} else {
		cache, err := memory.NewCacheRecency(cfg.RecencyCapacity, cfg.RecencyTTL)
		if err != nil {
			return fail(fmt.Errorf("failed to create recency cache: %w", err))
		}
		a.closers = append(a.closers, cache.Close)
		recency = cache
	}

	apiKey, err := cfg.ProviderAPIKey()
	if err != nil {
		return fail(err)
	}
	llm, err := models.NewLLM(ctx, cfg.LLMProvider, cfg.LLMModel, apiKey)
	if err != nil {
		return fail(fmt.Errorf("failed to create llm: %w", err))
	}

	engine, err := personalization.New(personalization.Deps{
		Profiles:     store.Profiles,
		Patterns:     store.Patterns,
		Interactions: store.Interactions,
		Embedder:     embedder,
		Semantic:     semantic,
		Recency:      recency,
		Generator:    models.NewLLMGenerator(cfg.LLMProvider, llm),
	}, personalization.SettingsFromConfig(cfg))
	if err != nil {
		return fail(err)
	}
	a.engine = engine

	slog.Info("engine ready",
		"db", cfg.DBType,
		"vector", cfg.VectorBackend,
		"embedding", cfg.EmbeddingProvider,
		"recency", recencyKind(cfg),
		"llm", cfg.LLMProvider,
		"model", cfg.LLMModel)
	return a, nil
}

func newEmbedder(ctx context.Context, cfg config.Config) (memory.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingGenAI:
		e, err := memory.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	case config.EmbeddingONNX:
		return memory.NewONNXEmbedder(memory.ONNXConfig{
			ModelPath:     cfg.ONNXModelPath,
			TokenizerPath: cfg.ONNXTokenizerPath,
			LibraryPath:   cfg.ONNXLibraryPath,
		})
	default:
		return memory.NewHashEmbedder(0), nil
	}
}

func recencyKind(cfg config.Config) string {
	if cfg.RedisURL != "" {
		return "redis"
	}
	return "ristretto"
}
