// Package catalog mirrors index rows into SQLite. The UNIQUE(url) constraint
// gives ingestion a uniqueness check that does not depend on scanning the CSV.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"IntelVault/internal/domain"
)

// ErrDuplicateURL is returned by Insert when the URL is already catalogued.
var ErrDuplicateURL = errors.New("url already catalogued")

const table = "items"

var columns = []string{
	"item_id", "title", "url", "source", "type", "date", "published_unix",
	"validity", "credibility", "relevance", "actionability", "novelty", "overall",
	"route", "drive_path",
}

// Catalog is the SQLite-backed URL catalog.
type Catalog struct {
	db *sql.DB
}

// Open connects to the SQLite file at path and applies the schema.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (
			item_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT '',
			published_unix INTEGER,
			validity REAL NOT NULL DEFAULT 0,
			credibility REAL NOT NULL DEFAULT 0,
			relevance REAL NOT NULL DEFAULT 0,
			actionability REAL NOT NULL DEFAULT 0,
			novelty REAL NOT NULL DEFAULT 0,
			overall REAL NOT NULL DEFAULT 0,
			route TEXT NOT NULL DEFAULT 'weekly',
			drive_path TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_published ON items(published_unix)`,
	}
	for _, m := range migrations {
		if _, err := c.db.Exec(m); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// HasURL reports whether url is catalogued.
func (c *Catalog) HasURL(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").From(table).Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build has-url query: %w", err)
	}

	var one int
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query url: %w", err)
	}
	return true, nil
}

// Insert adds row. A URL conflict yields ErrDuplicateURL.
func (c *Catalog) Insert(ctx context.Context, row domain.IndexRow) error {
	query, args, err := insertBuilder(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, row.URL)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Count returns the number of catalogued items.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// TopItems returns the best rows published at or after since, by overall
// score and then insertion order.
func (c *Catalog) TopItems(ctx context.Context, limit int, since time.Time) ([]domain.IndexRow, error) {
	b := sq.Select(columns...).From(table).
		Where(sq.GtOrEq{"published_unix": since.Unix()}).
		OrderBy("overall DESC", "rowid ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top items: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top items: %w", err)
	}

	var out []domain.IndexRow
	for rows.Next() {
		var (
			r         domain.IndexRow
			published sql.NullInt64
			route     string
		)
		if err := rows.Scan(&r.ItemID, &r.Title, &r.URL, &r.Source, &r.Type, &r.Date, &published,
			&r.Validity, &r.Credibility, &r.Relevance, &r.Actionability, &r.Novelty, &r.Overall,
			&route, &r.DrivePath); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		r.Route = domain.ParseRoute(route)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}
	return out, nil
}

// Sync rebuilds the catalog from rows in one transaction. Later rows with a
// URL already seen are skipped. It returns the number of rows stored.
func (c *Catalog) Sync(ctx context.Context, rows []domain.IndexRow) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, args, err := sq.Delete(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}

	stored := 0
	for _, row := range rows {
		query, args, err := insertBuilder(row).Options("OR IGNORE").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", row.ItemID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sync: %w", err)
	}
	return stored, nil
}

func insertBuilder(row domain.IndexRow) sq.InsertBuilder {
	var published any
	if t, ok := domain.ParseDate(row.Date); ok {
		published = t.Unix()
	}
	route := row.Route
	if route == "" {
		route = domain.RouteWeekly
	}
	return sq.Insert(table).Columns(columns...).Values(
		row.ItemID, row.Title, row.URL, row.Source, row.Type, row.Date, published,
		domain.Clamp01(row.Validity), domain.Clamp01(row.Credibility), domain.Clamp01(row.Relevance),
		domain.Clamp01(row.Actionability), domain.Clamp01(row.Novelty), domain.Clamp01(row.Overall),
		string(route), row.DrivePath,
	)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
