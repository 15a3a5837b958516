package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/fsutil"
)

// ChunksFile is the export written for the embedding job.
const ChunksFile = "chunks.jsonl"

// RowLister enumerates index rows.
type RowLister interface {
	Rows() ([]domain.IndexRow, error)
}

// ArtifactReader loads stored item artifacts.
type ArtifactReader interface {
	FindItemDir(id string) (string, bool)
	LoadItem(id string) (domain.Item, bool)
	LoadHighlights(id string) (domain.Highlights, bool)
	LoadSummary(id string) (domain.Summary, bool)
}

// Exporter flattens indexed items into text chunks.
type Exporter struct {
	index  RowLister
	vault  ArtifactReader
	dir    string
	logger *slog.Logger
}

// NewExporter writes chunks under dir.
func NewExporter(index RowLister, vault ArtifactReader, dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{index: index, vault: vault, dir: dir, logger: logger}
}

// Export rewrites chunks.jsonl and returns its path and chunk count. Rows
// whose vault directory is gone are skipped.
func (e *Exporter) Export(ctx context.Context) (string, int, error) {
	rows, err := e.index.Rows()
	if err != nil {
		return "", 0, fmt.Errorf("read index: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	count := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		dir, ok := e.vault.FindItemDir(row.ItemID)
		if !ok {
			e.logger.Debug("export skipped missing item", "item_id", row.ItemID)
			continue
		}
		for _, chunk := range e.chunks(row, dir) {
			if err := enc.Encode(chunk); err != nil {
				return "", 0, fmt.Errorf("encode chunk %s: %w", chunk.ID, err)
			}
			count++
		}
	}

	path := filepath.Join(e.dir, ChunksFile)
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", 0, fmt.Errorf("write chunks: %w", err)
	}
	e.logger.Info("export written", "path", path, "chunks", count)
	return path, count, nil
}

func (e *Exporter) chunks(row domain.IndexRow, dir string) []domain.ChunkMeta {
	pillars := []string{}
	if item, ok := e.vault.LoadItem(row.ItemID); ok && item.Pillars != nil {
		pillars = item.Pillars
	}
	base := domain.ChunkMeta{
		ItemID:  row.ItemID,
		URL:     row.URL,
		Title:   row.Title,
		Source:  row.Source,
		Date:    row.Date,
		Pillars: pillars,
	}
	chunk := func(kind, text, file string) domain.ChunkMeta {
		c := base
		c.ID = row.ItemID + "#" + kind
		c.Type = kind
		c.Text = text
		c.Path = filepath.Join(dir, file)
		return c
	}

	var out []domain.ChunkMeta
	if h, ok := e.vault.LoadHighlights(row.ItemID); ok {
		if text := strings.Join(h.SummaryBullets, "\n"); strings.TrimSpace(text) != "" {
			out = append(out, chunk(domain.ChunkHighlights, text, "highlights.json"))
		}
		lines := make([]string, 0, len(h.KeyClaims))
		for _, cl := range h.KeyClaims {
			if cl.Claim == "" {
				continue
			}
			line := "- " + cl.Claim
			if cl.Pointer != "" {
				line += " (" + cl.Pointer + ")"
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			out = append(out, chunk(domain.ChunkClaims, strings.Join(lines, "\n"), "highlights.json"))
		}
	}

	if text := e.summaryText(row.ItemID, dir); text != "" {
		out = append(out, chunk(domain.ChunkSummary, text, "summary.md"))
	}
	return out
}

// summaryText prefers the rendered summary.md and falls back to rendering
// summary.json.
func (e *Exporter) summaryText(id, dir string) string {
	if body, err := os.ReadFile(filepath.Join(dir, "summary.md")); err == nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
	}
	if s, ok := e.vault.LoadSummary(id); ok {
		return strings.TrimSpace(s.Markdown())
	}
	return ""
}
