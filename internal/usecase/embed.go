package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/vectors"
	"IntelVault/internal/ports"
)

const (
	maxChunkChars       = 3000
	defaultEmbedBatch   = 64
	defaultEmbedWorkers = 2
)

// EmbedCorpus turns the exported chunks into the vector corpus.
type EmbedCorpus struct {
	embedder    ports.Embedder
	dir         string
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewEmbedCorpus reads and writes under dir.
func NewEmbedCorpus(embedder ports.Embedder, dir string, batchSize, concurrency int, logger *slog.Logger) *EmbedCorpus {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatch
	}
	if concurrency <= 0 {
		concurrency = defaultEmbedWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EmbedCorpus{
		embedder:    embedder,
		dir:         dir,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run embeds every chunk and replaces embeddings.npy and meta.jsonl. Rows
// keep chunk order regardless of which batch finishes first.
func (j *EmbedCorpus) Run(ctx context.Context) (int, error) {
	chunks, err := readChunks(filepath.Join(j.dir, ChunksFile))
	if err != nil {
		return 0, err
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for start := 0; start < len(chunks); start += j.batchSize {
		end := min(start+j.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, truncateRunes(c.Text, maxChunkChars))
			}
			vecs, err := j.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			for i, v := range vecs {
				records[start+i] = domain.EmbeddingRecord{Vector: v, Meta: chunks[start+i]}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := vectors.Write(j.dir, records); err != nil {
		return 0, err
	}
	j.logger.Info("embedding corpus written", "dir", j.dir, "rows", len(records))
	return len(records), nil
}

// readChunks treats a missing export as empty.
func readChunks(path string) ([]domain.ChunkMeta, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open chunks: %w", err)
	}
	defer f.Close()

	var out []domain.ChunkMeta
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var c domain.ChunkMeta
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("chunks line %d: %w", line, err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return out, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
