package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"IntelVault/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "INTEL_VAULT_CONFIG"
	rootEnv           = "INTEL_VAULT_ROOT"
	logLevelEnv       = "LOG_LEVEL"
	openAIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	anthropicModelEnv = "ANTHROPIC_MODEL"
	githubTokenEnv    = "GH_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Paths         PathsConfig        `yaml:"paths"`
	Ingest        IngestConfig       `yaml:"ingest"`
	Profile       domain.Profile     `yaml:"profile"`
	Pillars       []domain.Pillar    `yaml:"pillars"`
	Sources       SourcesConfig      `yaml:"sources"`
	LLM           LLMConfig          `yaml:"llm"`
	Embeddings    EmbeddingsConfig   `yaml:"embeddings"`
	Gates         GatesConfig        `yaml:"gates"`
	GitHub        GitHubConfig       `yaml:"github"`
	Notifications NotificationConfig `yaml:"notifications"`
	Catalog       CatalogConfig      `yaml:"catalog"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PathsConfig locates the data root (index, state, exports) and the vault.
type PathsConfig struct {
	DataRoot  string `yaml:"dataRoot"`
	VaultRoot string `yaml:"vaultRoot"`
}

// IngestConfig bounds a single ingest run.
type IngestConfig struct {
	DailyLimit  int               `yaml:"dailyLimit"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
}

// TranscriptsConfig caps paid transcription.
type TranscriptsConfig struct {
	MaxWhisperVideoMinutes    int `yaml:"maxWhisperVideoMinutes"`
	DailyWhisperBudgetMinutes int `yaml:"dailyWhisperBudgetMinutes"`
}

// SourcesConfig lists the sites crawled each run.
type SourcesConfig struct {
	Sites []SiteConfig `yaml:"sites"`
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoints to crawl (arXiv listings, feed URLs).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LLMConfig configures the generative providers used by the gates.
type LLMConfig struct {
	OpenAI            ProviderConfig `yaml:"openai"`
	Anthropic         ProviderConfig `yaml:"anthropic"`
	RequestsPerMinute int            `yaml:"requestsPerMinute"`
}

// ProviderConfig defines how to contact one model API.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// EmbeddingsConfig configures the embedding API and the batch job.
type EmbeddingsConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"apiKey"`
	BatchSize   int    `yaml:"batchSize"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cacheSize"`
}

// GatesConfig tunes the scoring gates.
type GatesConfig struct {
	AuthoritativeSources []string `yaml:"authoritativeSources"`
	NoveltyThreshold     float64  `yaml:"noveltyThreshold"`
}

// GitHubConfig enables README/CHANGELOG snippets for referenced repos.
type GitHubConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
	FetchDocs bool   `yaml:"fetchDocs"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both the token and the chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// CatalogConfig controls the SQLite URL catalog. An empty path means
// <dataRoot>/catalog.db.
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig names the textfile-collector output. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// SchedulerConfig defines how often watch mode runs ingest.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// IndexPath is the CSV index.
func (c Config) IndexPath() string { return filepath.Join(c.Paths.DataRoot, "index.csv") }

// StatePath is the dedup state file.
func (c Config) StatePath() string { return filepath.Join(c.Paths.DataRoot, "state.json") }

// ExportDir holds chunks, embeddings and metadata.
func (c Config) ExportDir() string { return filepath.Join(c.Paths.DataRoot, "export") }

// PolicyPath is the feedback policy.
func (c Config) PolicyPath() string { return filepath.Join(c.Paths.DataRoot, "policy.json") }

// DigestDir holds weekly digests.
func (c Config) DigestDir() string { return filepath.Join(c.Paths.DataRoot, "digests", "weekly") }

// CatalogPath resolves the SQLite catalog file.
func (c Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.Paths.DataRoot, "catalog.db")
}

// Load reads YAML configuration from path, or from INTEL_VAULT_CONFIG when
// path is empty, over the defaults and applies environment overrides. A
// missing file is only an error when it was asked for explicitly.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			// Decoding over the defaults keeps every key the file omits.
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the process before
// any candidate is touched.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Paths.VaultRoot) == "" {
		errs = append(errs, errors.New("paths.vaultRoot is empty"))
	}
	if strings.TrimSpace(c.Paths.DataRoot) == "" {
		errs = append(errs, errors.New("paths.dataRoot is empty"))
	}
	if c.Ingest.DailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("ingest.dailyLimit must be positive, got %d", c.Ingest.DailyLimit))
	}
	if len(nonBlank(c.Profile.Priorities)) == 0 {
		errs = append(errs, errors.New("profile.priorities is empty"))
	}
	if c.Ingest.Transcripts.MaxWhisperVideoMinutes < 0 || c.Ingest.Transcripts.DailyWhisperBudgetMinutes < 0 {
		errs = append(errs, errors.New("ingest.transcripts limits must not be negative"))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.batchSize must be positive, got %d", c.Embeddings.BatchSize))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval))
	}
	for _, site := range c.Sources.Sites {
		if site.Scanner == "" {
			errs = append(errs, fmt.Errorf("sources.sites[%s]: scanner is empty", site.Name))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(rootEnv); v != "" {
		c.Paths.DataRoot = filepath.Join(v, "data")
		c.Paths.VaultRoot = filepath.Join(v, "vault")
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.LLM.OpenAI.APIKey = v
		if c.Embeddings.APIKey == "" {
			c.Embeddings.APIKey = v
		}
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.LLM.OpenAI.Model = v
	}
	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv(anthropicModelEnv); v != "" {
		c.LLM.Anthropic.Model = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", tz, err)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
	return nil
}

func nonBlank(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Paths:   PathsConfig{DataRoot: "data", VaultRoot: filepath.Join("data", "vault")},
		Ingest: IngestConfig{
			DailyLimit: 12,
			Transcripts: TranscriptsConfig{
				MaxWhisperVideoMinutes:    30,
				DailyWhisperBudgetMinutes: 240,
			},
		},
		Profile: domain.Profile{
			Goals: []string{
				"Use AI to write code for apps and websites",
				"Continuously improve AI pipelines with best practices",
			},
			Stack:      []string{"Claude Code", "OpenAI", "Warp"},
			Priorities: []string{"Claude Code", "UI", "Next.js", "DevOps", "Agents"},
		},
		Pillars: []domain.Pillar{
			{Name: "Hygienic Workflow", Keywords: []string{"workflow", "lint", "tests", "refactor", "quality"}},
			{Name: "AI UI/UX", Keywords: []string{"ui", "ux", "design", "tailwind", "shadcn", "radix", "next.js", "react"}},
			{Name: "Automation", Keywords: []string{"automation", "pipeline", "scheduling", "n8n", "zapier"}},
			{Name: "No-code Workflows", Keywords: []string{"no-code", "ai builds code", "scaffold", "app builder"}},
			{Name: "Claude/OpenAI Best Practices", Keywords: []string{"claude", "claude code", "openai", "prompt", "assistant"}},
			{Name: "Agents", Keywords: []string{"agent", "multi-agent", "autonomous", "crew", "swarm"}},
			{Name: "DevOps/Infra for AI", Keywords: []string{"deploy", "vercel", "cloudflare", "workers", "monitor", "cost", "latency"}},
		},
		Sources: SourcesConfig{
			Sites: []SiteConfig{
				{
					Name:    "vendor-blogs",
					Scanner: "feed",
					Categories: []CategoryConfig{
						{Name: "Anthropic Blog", URL: "https://www.anthropic.com/news/rss.xml"},
						{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss/"},
					},
					Options: map[string]string{"sourceType": domain.SourceVendor},
				},
				{
					Name:    "youtube-channels",
					Scanner: "feed",
					Categories: []CategoryConfig{
						{Name: "Anthropic", URL: "https://www.youtube.com/feeds/videos.xml?channel_id=UCoZ8xVQCAmyG3fZ4ZNSiK-Q"},
						{Name: "OpenAI", URL: "https://www.youtube.com/feeds/videos.xml?channel_id=UCXZCJLdBC09xxGZ6gcdrc6A"},
					},
					Options: map[string]string{"sourceType": domain.SourceYouTube},
				},
				{
					Name:    "arxiv-default",
					Scanner: "arxiv",
					Categories: []CategoryConfig{
						{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
					},
				},
			},
		},
		LLM: LLMConfig{
			OpenAI: ProviderConfig{
				Endpoint: "https://api.openai.com/v1/chat/completions",
				Model:    "gpt-4o-mini",
			},
			Anthropic: ProviderConfig{
				Endpoint: "https://api.anthropic.com/v1/messages",
				Model:    "claude-3-5-sonnet-latest",
			},
			RequestsPerMinute: 30,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:    "https://api.openai.com/v1/embeddings",
			Model:       "text-embedding-3-small",
			BatchSize:   64,
			Concurrency: 2,
			CacheSize:   256,
		},
		Gates:   GatesConfig{NoveltyThreshold: 0.7},
		Catalog: CatalogConfig{Enabled: true},
		GitHub: GitHubConfig{
			Endpoint:  "https://api.github.com",
			FetchDocs: true,
		},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
	}
}
