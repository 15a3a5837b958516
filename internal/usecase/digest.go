package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/fsutil"
	"IntelVault/internal/ports"
)

const (
	digestItems      = 5
	digestWindowDays = 7
)

// TopLister ranks recent index rows by overall score.
type TopLister interface {
	TopItems(limit, windowDays int) ([]domain.IndexRow, error)
}

// SummaryLoader reads structured summaries.
type SummaryLoader interface {
	LoadSummary(id string) (domain.Summary, bool)
}

// Digest renders the weekly markdown digest.
type Digest struct {
	index    TopLister
	vault    SummaryLoader
	dir      string
	notifier ports.Notifier
	clock    func() time.Time
	logger   *slog.Logger
}

// DigestResult describes a written digest.
type DigestResult struct {
	Path      string
	Items     int
	Published bool
}

// NewDigest writes digests under dir. notifier may be nil.
func NewDigest(index TopLister, vault SummaryLoader, dir string, notifier ports.Notifier, clock func() time.Time, logger *slog.Logger) *Digest {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Digest{index: index, vault: vault, dir: dir, notifier: notifier, clock: clock, logger: logger}
}

// WeekName is the ISO week file stem, e.g. 2026-W07.
func WeekName(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Build writes the digest for the current week. With publish set and a
// notifier configured it is also delivered; delivery errors are returned
// after the file is written.
func (d *Digest) Build(ctx context.Context, publish bool) (DigestResult, error) {
	rows, err := d.index.TopItems(digestItems, digestWindowDays)
	if err != nil {
		return DigestResult{}, fmt.Errorf("top items: %w", err)
	}

	text := d.render(rows)
	path := filepath.Join(d.dir, WeekName(d.clock().UTC())+".md")
	if err := fsutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return DigestResult{}, fmt.Errorf("write digest: %w", err)
	}
	res := DigestResult{Path: path, Items: len(rows)}
	d.logger.Info("digest written", "path", path, "items", len(rows))

	if !publish || d.notifier == nil {
		return res, nil
	}
	if err := d.notifier.PublishDigest(ctx, text); err != nil {
		return res, fmt.Errorf("publish digest: %w", err)
	}
	res.Published = true
	return res, nil
}

func (d *Digest) render(rows []domain.IndexRow) string {
	var b strings.Builder
	b.WriteString("# Weekly Digest\n")
	if len(rows) == 0 {
		b.WriteString("\nNo items this week.\n")
		return b.String()
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "\n## %s\nSource: %s\n", row.Title, row.URL)
		if s, ok := d.vault.LoadSummary(row.ItemID); ok {
			if md := strings.TrimSpace(s.Markdown()); md != "" {
				b.WriteString("\n")
				b.WriteString(md)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
