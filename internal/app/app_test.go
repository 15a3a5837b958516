package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/config"
	"IntelVault/internal/domain"
	"IntelVault/internal/recommend"
)

const blogFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Vendor Blog</title>
<item>
  <title>Building coding agents with Claude Code</title>
  <link>https://vendor.example/agents</link>
  <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
  <description>A long walkthrough of agents that plan, edit and test code, with the kit at https://github.com/acme/agent-kit for reference.</description>
</item>
<item>
  <title>Next.js UI patterns</title>
  <link>https://vendor.example/ui</link>
  <pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate>
  <description>Composable UI components for Next.js apps, from layout primitives to streaming server components.</description>
</item>
</channel></rss>`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"INTEL_VAULT_CONFIG", "INTEL_VAULT_ROOT", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "GH_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func newTestApp(t *testing.T) (*Application, config.Config) {
	t.Helper()
	clearEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(blogFeed))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	yaml := fmt.Sprintf(`
paths:
  dataRoot: %[1]s/data
  vaultRoot: %[1]s/vault
metrics:
  textfile: %[1]s/metrics/intelvault.prom
sources:
  sites:
    - name: blogs
      scanner: feed
      categories:
        - name: Vendor Blog
          url: %[2]s/feed.xml
`, root, srv.URL)
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	application, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application, cfg
}

func TestApplicationEndToEndDryRun(t *testing.T) {
	application, cfg := newTestApp(t)
	ctx := context.Background()

	report, err := application.Ingest(ctx, 0, true)
	require.NoError(t, err)
	assert.Len(t, report.Created, 2)
	assert.Empty(t, report.Failed)
	assert.FileExists(t, cfg.Metrics.Textfile)

	again, err := application.Ingest(ctx, 0, true)
	require.NoError(t, err)
	assert.Empty(t, again.Created)

	rows, err := application.List(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://vendor.example/agents", rows[0].URL)

	synced, err := application.SyncCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	_, chunks, err := application.Export(ctx)
	require.NoError(t, err)
	assert.Positive(t, chunks)

	embedded, err := application.Embed(ctx)
	require.NoError(t, err)
	assert.Equal(t, chunks, embedded)

	recs, err := application.Recommend(ctx, nil, 5)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	novelty, err := application.Novelty(ctx, domain.Candidate{
		Title:       "Building coding agents with Claude Code",
		URL:         "https://other.example/agents",
		Description: "Agents that plan, edit and test code.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, novelty.Similar)
	assert.GreaterOrEqual(t, novelty.Score, 0.0)
	assert.LessOrEqual(t, novelty.Score, 1.0)

	digest, err := application.Digest(ctx, false)
	require.NoError(t, err)
	assert.FileExists(t, digest.Path)
	assert.False(t, digest.Published)

	policy, err := application.Feedback(report.Created[0], recommend.DecisionAccept)
	require.NoError(t, err)
	assert.FileExists(t, cfg.PolicyPath())
	assert.NotNil(t, policy.PillarMultipliers)
}

func TestApplicationRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Profile.Priorities = nil

	_, err = New(cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priorities")
}

func TestSyncCatalogDisabled(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Paths.DataRoot = filepath.Join(root, "data")
	cfg.Paths.VaultRoot = filepath.Join(root, "vault")
	cfg.Catalog.Enabled = false

	application, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	_, err = application.SyncCatalog(context.Background())
	assert.ErrorIs(t, err, ErrCatalogDisabled)
}
