package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicmesh/retrieval/internal/analytics"
	"github.com/civicmesh/retrieval/internal/config"
	"github.com/civicmesh/retrieval/internal/embed"
	"github.com/civicmesh/retrieval/internal/index"
	"github.com/civicmesh/retrieval/internal/logging"
	"github.com/civicmesh/retrieval/internal/metrics"
	"github.com/civicmesh/retrieval/internal/retrieval"
	"github.com/civicmesh/retrieval/internal/server"
	"github.com/civicmesh/retrieval/internal/store"
)

func newServeCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the retrieval HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service)")
	return cmd
}

func runServe(ctx context.Context, offline bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logCleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCleanup()

	slog.Info("starting", slog.String("addr", cfg.Server.Addr), slog.String("data_dir", cfg.Paths.DataDir))

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lock := store.NewDirLock(cfg.Paths.DataDir)
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("data directory in use: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	catalog, err := store.NewSQLiteCatalog(filepath.Join(cfg.Paths.DataDir, "catalog.db"))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	vectors, lexIdx, err := openIndexes(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = vectors.Close() }()
	defer func() { _ = lexIdx.Close() }()

	embedder, err := buildEmbedder(ctx, cfg, offline)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	reranker := buildReranker(cfg)
	if reranker != nil {
		defer func() { _ = reranker.Close() }()
	}

	var recorder analytics.Recorder
	if cfg.Analytics.Enabled {
		sink, sinkErr := analytics.NewSQLiteSink(catalog.DB())
		if sinkErr != nil {
			return fmt.Errorf("open analytics sink: %w", sinkErr)
		}
		logger := analytics.NewLogger(sink, cfg.Analytics.BufferSize)
		defer func() { _ = logger.Close() }()
		recorder = logger
	}

	m := metrics.New()

	engine := retrieval.NewEngine(
		retrieval.NewSemanticAdapter(embedder, vectors, catalog, cfg.Search.SimilarityThreshold),
		retrieval.NewLexicalAdapter(lexIdx, catalog),
		retrieval.NewMerger(retrieval.Weights{
			Semantic: cfg.Search.SemanticWeight,
			Lexical:  cfg.Search.LexicalWeight,
		}),
		reranker,
		retrieval.NewContextFormatter(cfg.Context.MaxChars),
		recorder,
		m,
		retrieval.EngineOptions{
			DefaultTopK:    cfg.Search.DefaultTopK,
			MaxTopK:        cfg.Search.MaxTopK,
			AdapterTimeout: cfg.Search.AdapterTimeout,
		},
	)

	probes := map[string]func(ctx context.Context) bool{
		"embedder": embedder.Available,
	}
	if reranker != nil {
		probes["reranker"] = reranker.Available
	}

	srv := server.New(engine, m, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Probes:         probes,
	})

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if path := resolvedConfigPath(); path != "" {
		go func() {
			if watchErr := config.Watch(watchCtx, path, func(updated *config.Config) {
				engine.SetWeights(retrieval.Weights{
					Semantic: updated.Search.SemanticWeight,
					Lexical:  updated.Search.LexicalWeight,
				})
				engine.SetRerankEnabled(updated.Rerank.Enabled)
			}); watchErr != nil {
				slog.Warn("config_watch_failed", slog.String("error", watchErr.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutting_down", slog.String("signal", sig.String()))
	case <-ctx.Done():
		slog.Info("shutting_down", slog.String("reason", "context cancelled"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openIndexes loads the on-disk indexes, creating empty ones when this
// is a fresh data directory.
func openIndexes(cfg *config.Config) (*index.VectorIndex, *index.LexicalIndex, error) {
	vectors, err := index.NewVectorIndex(index.VectorConfig{Dimensions: cfg.Embedding.Dimensions})
	if err != nil {
		return nil, nil, fmt.Errorf("create vector index: %w", err)
	}
	vectorPath := filepath.Join(cfg.Paths.DataDir, "vectors.hnsw")
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vectors.Load(vectorPath); err != nil {
			return nil, nil, fmt.Errorf("load vector index: %w", err)
		}
		slog.Info("vector_index_loaded", slog.Int("count", vectors.Count()))
	}

	lexIdx, err := index.NewLexicalIndex(filepath.Join(cfg.Paths.DataDir, "lexical.bleve"))
	if err != nil {
		_ = vectors.Close()
		return nil, nil, fmt.Errorf("open lexical index: %w", err)
	}

	return vectors, lexIdx, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config, offline bool) (embed.Embedder, error) {
	if offline {
		slog.Info("using_static_embeddings")
		return embed.NewCachedEmbedder(embed.NewStaticEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize), nil
	}

	httpEmbedder, err := embed.NewHTTPEmbedder(ctx, embed.HTTPConfig{
		Endpoint:   cfg.Embedding.Endpoint,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
		MaxRetries: cfg.Embedding.MaxRetries,
		// The serving path tolerates a down embedder (lexical results
		// still flow), so a failed startup probe must not be fatal.
		SkipHealthCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embed.NewCachedEmbedder(httpEmbedder, cfg.Embedding.CacheSize), nil
}

// buildReranker picks the reranking backend: a cross-encoder service
// when an endpoint is configured, the local token-overlap heuristic
// otherwise, or nil when reranking is disabled.
func buildReranker(cfg *config.Config) retrieval.Reranker {
	if !cfg.Rerank.Enabled {
		return nil
	}
	if cfg.Rerank.Endpoint != "" {
		return retrieval.NewCrossEncoderReranker(retrieval.CrossEncoderConfig{
			Endpoint: cfg.Rerank.Endpoint,
			Model:    cfg.Rerank.Model,
			Timeout:  cfg.Rerank.Timeout,
		})
	}
	slog.Info("using_overlap_reranker")
	return &retrieval.OverlapReranker{}
}

// resolvedConfigPath returns the config file path actually in effect.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
