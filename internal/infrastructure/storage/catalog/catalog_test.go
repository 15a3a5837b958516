package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func row(id, url, date string, overall float64) domain.IndexRow {
	return domain.IndexRow{ItemID: id, Title: id, URL: url, Date: date, Overall: overall, Route: domain.RouteWeekly}
}

func TestInsertAndHasURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := openCatalog(t)

	has, err := c.HasURL(ctx, "https://a")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, c.Insert(ctx, row("a", "https://a", "2025-10-01", 0.5)))
	has, err = c.HasURL(ctx, "https://a")
	require.NoError(t, err)
	assert.True(t, has)

	err = c.Insert(ctx, row("b", "https://a", "2025-10-02", 0.9))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateURL))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTopItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := openCatalog(t)
	require.NoError(t, c.Insert(ctx, row("old", "https://old", "2025-01-01", 0.99)))
	require.NoError(t, c.Insert(ctx, row("first", "https://1", "2025-10-05", 0.6)))
	require.NoError(t, c.Insert(ctx, row("best", "https://2", "2025-10-06T10:00:00Z", 0.8)))
	require.NoError(t, c.Insert(ctx, row("second", "https://3", "2025-10-07", 0.6)))
	require.NoError(t, c.Insert(ctx, row("undated", "https://4", "", 0.95)))

	top, err := c.TopItems(ctx, 3, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "best", top[0].ItemID)
	assert.Equal(t, "first", top[1].ItemID)
	assert.Equal(t, "second", top[2].ItemID)
	assert.Equal(t, domain.RouteWeekly, top[0].Route)
}

func TestSyncRebuilds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := openCatalog(t)
	require.NoError(t, c.Insert(ctx, row("stale", "https://stale", "", 0.1)))

	stored, err := c.Sync(ctx, []domain.IndexRow{
		row("a", "https://a", "2025-10-01", 0.1),
		row("b", "https://b", "2025-10-01", 0.2),
		row("dup", "https://a", "2025-10-01", 0.3),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	has, err := c.HasURL(ctx, "https://stale")
	require.NoError(t, err)
	assert.False(t, has)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
