package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(rootEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12, cfg.Ingest.DailyLimit)
	assert.Equal(t, 30, cfg.Ingest.Transcripts.MaxWhisperVideoMinutes)
	assert.Equal(t, 240, cfg.Ingest.Transcripts.DailyWhisperBudgetMinutes)
	assert.Equal(t, 64, cfg.Embeddings.BatchSize)
	assert.Equal(t, filepath.Join("data", "index.csv"), cfg.IndexPath())
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, filepath.Join("data", "catalog.db"), cfg.CatalogPath())
	assert.True(t, cfg.GitHub.FetchDocs)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingest:
  dailyLimit: 5
profile:
  priorities: [Agents]
scheduler:
  interval: 90m
  timezone: Europe/Berlin
sources:
  sites:
    - name: blogs
      scanner: feed
      categories:
        - {name: a, url: "https://example.org/rss"}
`), 0o644))

	t.Setenv(rootEnv, dir)
	t.Setenv(openAIKeyEnv, "sk-test")
	t.Setenv(telegramTokenEnv, "bot")
	t.Setenv(telegramChatIDEnv, "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Ingest.DailyLimit)
	assert.Equal(t, 240, cfg.Ingest.Transcripts.DailyWhisperBudgetMinutes, "omitted keys keep defaults")
	assert.Equal(t, []string{"Agents"}, cfg.Profile.Priorities)
	assert.Equal(t, 90*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Location().String())
	require.Len(t, cfg.Sources.Sites, 1)
	assert.Equal(t, filepath.Join(dir, "vault"), cfg.Paths.VaultRoot)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	assert.True(t, cfg.Notifications.Telegram.Enabled())
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Profile.Priorities = []string{"  "}
	cfg.Paths.VaultRoot = ""
	cfg.Ingest.DailyLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile.priorities")
	assert.Contains(t, err.Error(), "paths.vaultRoot")
	assert.Contains(t, err.Error(), "ingest.dailyLimit")
}
