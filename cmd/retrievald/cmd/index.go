package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicmesh/retrieval/internal/config"
	"github.com/civicmesh/retrieval/internal/embed"
	"github.com/civicmesh/retrieval/internal/index"
	"github.com/civicmesh/retrieval/internal/logging"
	"github.com/civicmesh/retrieval/internal/store"
)

// chunkRecord is one line of the JSONL input.
type chunkRecord struct {
	ID          string            `json:"id"`
	SourceDocID string            `json:"sourceDocId"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata"`
}

func newIndexCmd() *cobra.Command {
	var (
		file      string
		batchSize int
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load chunks from a JSONL file into the indexes",
		Long: `Reads chunk records (one JSON object per line: id, sourceDocId,
text, metadata) and writes them to the chunk catalog, the lexical
index, and the vector index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			return runIndex(cmd.Context(), file, batchSize, offline)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL file of chunks to index")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "Chunks per embedding batch")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service)")
	return cmd
}

func runIndex(ctx context.Context, file string, batchSize int, offline bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logCleanup, err := logging.SetupDefault(logging.Config{Level: cfg.Logging.Level, WriteToStderr: true})
	if err != nil {
		return err
	}
	defer logCleanup()

	if batchSize <= 0 {
		batchSize = 64
	}

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
	defer func() { _ = lexIdx.Close() }()
	defer func() { _ = vectors.Close() }()

	embedder, err := buildIndexEmbedder(ctx, cfg, offline)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	start := time.Now()
	total, err := loadChunks(ctx, file, batchSize, catalog, vectors, lexIdx, embedder)
	if err != nil {
		return err
	}

	if err := vectors.Save(filepath.Join(cfg.Paths.DataDir, "vectors.hnsw")); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	slog.Info("index_complete",
		slog.Int("chunks", total),
		slog.Duration("elapsed", time.Since(start)))
	fmt.Printf("Indexed %d chunks in %s\n", total, time.Since(start).Round(time.Millisecond))
	return nil
}

func buildIndexEmbedder(ctx context.Context, cfg *config.Config, offline bool) (embed.Embedder, error) {
	if offline {
		return embed.NewStaticEmbedder(cfg.Embedding.Dimensions), nil
	}
	// Indexing needs a reachable embedding service; fail fast here,
	// unlike serve which degrades to lexical-only.
	return embed.NewHTTPEmbedder(ctx, embed.HTTPConfig{
		Endpoint:   cfg.Embedding.Endpoint,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
		MaxRetries: cfg.Embedding.MaxRetries,
	})
}

func loadChunks(
	ctx context.Context,
	file string,
	batchSize int,
	catalog store.Catalog,
	vectors *index.VectorIndex,
	lexIdx *index.LexicalIndex,
	embedder embed.Embedder,
) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var batch []*store.Chunk
	total := 0
	line := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := indexBatch(ctx, batch, catalog, vectors, lexIdx, embedder); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec chunkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.ID == "" || rec.Text == "" {
			return total, fmt.Errorf("line %d: id and text are required", line)
		}

		batch = append(batch, &store.Chunk{
			ID:          rec.ID,
			SourceDocID: rec.SourceDocID,
			Text:        rec.Text,
			Metadata:    rec.Metadata,
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read input: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	return total, nil
}

func indexBatch(
	ctx context.Context,
	batch []*store.Chunk,
	catalog store.Catalog,
	vectors *index.VectorIndex,
	lexIdx *index.LexicalIndex,
	embedder embed.Embedder,
) error {
	if err := catalog.SaveChunks(ctx, batch); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	docs := make([]index.LexicalDoc, len(batch))
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, c := range batch {
		docs[i] = index.LexicalDoc{ID: c.ID, Text: c.Text}
		texts[i] = c.Text
		ids[i] = c.ID
	}

	if err := lexIdx.Index(ctx, docs); err != nil {
		return fmt.Errorf("index lexical batch: %w", err)
	}

	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if err := vectors.Add(ctx, ids, embeddings); err != nil {
		return fmt.Errorf("index vector batch: %w", err)
	}

	return nil
}
