// Package index maintains index.csv, the append-only tabular log of item
// summaries. HasURL is a full scan; that is acceptable at this store's size
// and is the reason the optional SQLite catalog exists.
package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"IntelVault/internal/domain"
)

// Headers is the fixed column order of index.csv.
var Headers = []string{
	"item_id",
	"title",
	"url",
	"source",
	"type",
	"date",
	"validity",
	"credibility",
	"relevance",
	"actionability",
	"novelty",
	"overall",
	"route",
	"drive_path",
}

// Index is the CSV-backed secondary index.
type Index struct {
	path string
	now  func() time.Time
}

// Open creates the index file with its header row when absent.
func Open(path string) (*Index, error) {
	idx := &Index{path: path, now: time.Now}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.Size() == 0:
		if err := idx.writeHeader(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("stat index: %w", err)
	}
	return idx, nil
}

// SetClock overrides the clock used by TopItems.
func (i *Index) SetClock(now func() time.Time) {
	i.now = now
}

// Path returns the index file location.
func (i *Index) Path() string {
	return i.path
}

func (i *Index) writeHeader() error {
	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.OpenFile(i.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Headers); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush header: %w", err)
	}
	return f.Close()
}

// HasURL scans every row for url.
func (i *Index) HasURL(url string) (bool, error) {
	found := false
	err := i.scan(func(row domain.IndexRow) bool {
		if row.URL == url {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// Add appends a single row. Callers guarantee the URL is not yet present.
func (i *Index) Add(row domain.IndexRow) error {
	f, err := os.OpenFile(i.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open index for append: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(encode(row)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush row: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	return f.Close()
}

// Rows returns every row in file order.
func (i *Index) Rows() ([]domain.IndexRow, error) {
	var rows []domain.IndexRow
	err := i.scan(func(row domain.IndexRow) bool {
		rows = append(rows, row)
		return true
	})
	return rows, err
}

// ByItemID maps item ids to their rows.
func (i *Index) ByItemID() (map[string]domain.IndexRow, error) {
	out := map[string]domain.IndexRow{}
	err := i.scan(func(row domain.IndexRow) bool {
		out[row.ItemID] = row
		return true
	})
	return out, err
}

// Tail returns the last n rows.
func (i *Index) Tail(n int) ([]domain.IndexRow, error) {
	rows, err := i.Rows()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

// TopItems returns the best rows by overall score among those dated within
// the trailing windowDays. Equal scores keep file order.
func (i *Index) TopItems(limit, windowDays int) ([]domain.IndexRow, error) {
	cutoff := i.now().UTC().AddDate(0, 0, -windowDays)

	var out []domain.IndexRow
	err := i.scan(func(row domain.IndexRow) bool {
		if windowDays > 0 {
			date, ok := domain.ParseDate(row.Date)
			if !ok || date.Before(cutoff) {
				return true
			}
		}
		out = append(out, row)
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Overall > out[b].Overall
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *Index) scan(fn func(domain.IndexRow) bool) error {
	f, err := os.Open(i.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for pos, name := range header {
		cols[name] = pos
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if !fn(decode(cols, record)) {
			return nil
		}
	}
}

func encode(row domain.IndexRow) []string {
	route := row.Route
	if route == "" {
		route = domain.RouteWeekly
	}
	return []string{
		row.ItemID,
		row.Title,
		row.URL,
		row.Source,
		row.Type,
		row.Date,
		formatScore(row.Validity),
		formatScore(row.Credibility),
		formatScore(row.Relevance),
		formatScore(row.Actionability),
		formatScore(row.Novelty),
		formatScore(row.Overall),
		string(route),
		row.DrivePath,
	}
}

func decode(cols map[string]int, record []string) domain.IndexRow {
	get := func(name string) string {
		pos, ok := cols[name]
		if !ok || pos >= len(record) {
			return ""
		}
		return record[pos]
	}
	return domain.IndexRow{
		ItemID:        get("item_id"),
		Title:         get("title"),
		URL:           get("url"),
		Source:        get("source"),
		Type:          get("type"),
		Date:          get("date"),
		Validity:      parseScore(get("validity")),
		Credibility:   parseScore(get("credibility")),
		Relevance:     parseScore(get("relevance")),
		Actionability: parseScore(get("actionability")),
		Novelty:       parseScore(get("novelty")),
		Overall:       parseScore(get("overall")),
		Route:         domain.ParseRoute(get("route")),
		DrivePath:     get("drive_path"),
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(domain.Clamp01(v), 'f', 3, 64)
}

func parseScore(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
