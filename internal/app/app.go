package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"IntelVault/internal/classify"
	"IntelVault/internal/config"
	"IntelVault/internal/domain"
	"IntelVault/internal/gate"
	"IntelVault/internal/infrastructure/github"
	"IntelVault/internal/infrastructure/llm"
	"IntelVault/internal/infrastructure/ml"
	"IntelVault/internal/infrastructure/parser"
	"IntelVault/internal/infrastructure/scheduler"
	"IntelVault/internal/infrastructure/storage/catalog"
	"IntelVault/internal/infrastructure/storage/index"
	"IntelVault/internal/infrastructure/storage/state"
	"IntelVault/internal/infrastructure/storage/vault"
	"IntelVault/internal/infrastructure/storage/views"
	"IntelVault/internal/infrastructure/telegram"
	"IntelVault/internal/logging"
	"IntelVault/internal/metrics"
	"IntelVault/internal/normalize"
	"IntelVault/internal/ports"
	"IntelVault/internal/recommend"
	"IntelVault/internal/scanner"
	"IntelVault/internal/usecase"
)

// ErrCatalogDisabled is returned by catalog commands when no catalog is configured.
var ErrCatalogDisabled = errors.New("catalog is disabled")

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	vault    *vault.Vault
	index    *index.Index
	catalog  *catalog.Catalog
	notifier ports.Notifier
	embedder ports.Embedder
	builder  *normalize.Builder
	pipeline *usecase.Pipeline
}

// New builds the application from cfg. Close releases the catalog.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	v, err := vault.New(cfg.Paths.VaultRoot, baseLogger.With("component", "vault"))
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:     cfg,
		logger:  baseLogger,
		metrics: metrics.New(),
		vault:   v,
		index:   idx,
		builder: normalize.NewBuilder(nil),
	}

	if cfg.Catalog.Enabled {
		if a.catalog, err = catalog.Open(cfg.CatalogPath()); err != nil {
			return nil, err
		}
	}
	if cfg.Notifications.Telegram.Enabled() {
		a.notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}
	if a.embedder, err = newEmbedder(cfg.Embeddings, baseLogger); err != nil {
		_ = a.Close()
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(nil, baseLogger.With("component", "scanner.arxiv")))
	registry.Register(parser.NewFeedScanner(nil, baseLogger.With("component", "scanner.feed")))
	source := parser.NewStrategySource(registry, cfg.Sources.Sites, baseLogger.With("component", "source"))

	completer := newCompleter(cfg.LLM, baseLogger.With("component", "llm"))

	var repoDocs usecase.RepoDocs
	if cfg.GitHub.FetchDocs {
		repoDocs = github.NewDocsClient(cfg.GitHub.Endpoint, cfg.GitHub.Token)
	}

	deps := usecase.PipelineDeps{
		Source:     source,
		Highlights: a.builder,
		Classifier: classify.New(cfg.Pillars),
		Gate1:      gate.NewGate1(completer, cfg.Gates.AuthoritativeSources, baseLogger.With("component", "gate1")),
		Gate2:      gate.NewGate2(completer, baseLogger.With("component", "gate2")),
		Vault:      v,
		Index:      idx,
		State:      state.Open(cfg.StatePath(), baseLogger.With("component", "state")),
		Views:      views.New(cfg.Paths.DataRoot),
		RepoDocs:   repoDocs,
		Notifier:   a.notifier,
		Metrics:    a.metrics,
		Profile:    cfg.Profile,
		Settings: usecase.IngestSettings{
			DailyLimit:                cfg.Ingest.DailyLimit,
			MaxWhisperVideoMinutes:    cfg.Ingest.Transcripts.MaxWhisperVideoMinutes,
			DailyWhisperBudgetMinutes: cfg.Ingest.Transcripts.DailyWhisperBudgetMinutes,
		},
		Logger: baseLogger.With("component", "pipeline"),
	}
	if a.catalog != nil {
		deps.Catalog = a.catalog
	}
	a.pipeline = usecase.NewPipeline(deps)
	return a, nil
}

// newCompleter chains the providers that have a key, Anthropic first. With
// none the gates run on heuristics without paying for limiter waits.
func newCompleter(cfg config.LLMConfig, logger *slog.Logger) ports.Completer {
	var providers []ports.Completer
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, llm.NewAnthropicClient(cfg.Anthropic))
	}
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, llm.NewOpenAIClient(cfg.OpenAI))
	}
	if len(providers) == 0 {
		logger.Info("no model API keys, gates use heuristics")
		return nil
	}
	return llm.NewChain(cfg.RequestsPerMinute, logger, providers...)
}

// newEmbedder uses the hosted API when a key is configured and the offline
// hashing embedder otherwise.
func newEmbedder(cfg config.EmbeddingsConfig, logger *slog.Logger) (ports.Embedder, error) {
	if cfg.APIKey == "" {
		logger.Warn("no embeddings API key, using local hashing embedder")
		return ml.NewHashEmbedder(0), nil
	}
	client, err := ml.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("embeddings client: %w", err)
	}
	return client, nil
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.Close()
}

// Ingest runs one ingest batch as of now in the scheduler timezone.
func (a *Application) Ingest(ctx context.Context, limit int, dryRun bool) (usecase.RunReport, error) {
	report, err := a.pipeline.Ingest(ctx, usecase.IngestOptions{
		Limit:  limit,
		DryRun: dryRun,
		Now:    time.Now().In(a.cfg.Scheduler.Location()),
	})
	a.flushMetrics()
	return report, err
}

// Watch ingests on the configured interval until ctx is cancelled.
func (a *Application) Watch(ctx context.Context, limit int, dryRun bool) error {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, usecase.IngestOptions{Limit: limit, DryRun: dryRun}, a.logger.With("component", "scheduler"))
	sched.OnRun = func(report usecase.RunReport, _ error) {
		a.logger.Info("scheduled run finished", "run_id", report.RunID, "created", len(report.Created), "failed", len(report.Failed))
		a.flushMetrics()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("watching", "interval", a.cfg.Scheduler.Interval.String(), "timezone", a.cfg.Scheduler.Timezone)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Digest writes the weekly digest and optionally publishes it.
func (a *Application) Digest(ctx context.Context, publish bool) (usecase.DigestResult, error) {
	d := usecase.NewDigest(a.index, a.vault, a.cfg.DigestDir(), a.notifier, nil, a.logger.With("component", "digest"))
	return d.Build(ctx, publish)
}

// List returns the last n index rows.
func (a *Application) List(n int) ([]domain.IndexRow, error) {
	return a.index.Tail(n)
}

// Export writes chunks.jsonl.
func (a *Application) Export(ctx context.Context) (string, int, error) {
	return usecase.NewExporter(a.index, a.vault, a.cfg.ExportDir(), a.logger.With("component", "export")).Export(ctx)
}

// Embed rebuilds the vector corpus from the last export.
func (a *Application) Embed(ctx context.Context) (int, error) {
	job := usecase.NewEmbedCorpus(a.embedder, a.cfg.ExportDir(), a.cfg.Embeddings.BatchSize, a.cfg.Embeddings.Concurrency, a.logger.With("component", "embed"))
	return job.Run(ctx)
}

// Recommend ranks stored items. Empty priorities fall back to the profile.
func (a *Application) Recommend(ctx context.Context, priorities []string, k int) ([]recommend.Recommendation, error) {
	if len(priorities) == 0 {
		priorities = a.cfg.Profile.Priorities
	}
	engine := recommend.NewEngine(recommend.EngineDeps{
		Embedder:   a.embedder,
		Corpus:     recommend.DirCorpus(a.cfg.ExportDir()),
		Index:      a.index,
		Items:      a.vault,
		PolicyPath: a.cfg.PolicyPath(),
		Logger:     a.logger.With("component", "recommend"),
	})
	return engine.Recommend(ctx, priorities, k)
}

// NoveltyResult combines the embedding and key phrase novelty checks.
type NoveltyResult struct {
	recommend.NoveltyReport
	Keyphrases recommend.KeyphraseNovelty `json:"keyphrases"`
}

// Novelty scores an ad-hoc candidate against the vault.
func (a *Application) Novelty(ctx context.Context, c domain.Candidate) (NoveltyResult, error) {
	h, err := a.builder.Build(ctx, c, true)
	if err != nil {
		return NoveltyResult{}, err
	}
	detector := recommend.NewNoveltyDetector(recommend.NoveltyDeps{
		Embedder:  a.embedder,
		Corpus:    recommend.DirCorpus(a.cfg.ExportDir()),
		Vault:     a.vault,
		Threshold: a.cfg.Gates.NoveltyThreshold,
		Logger:    a.logger.With("component", "novelty"),
	})
	kp, err := detector.NewKeyphrases(h)
	if err != nil {
		return NoveltyResult{}, err
	}
	return NoveltyResult{NoveltyReport: detector.Score(ctx, c, h), Keyphrases: kp}, nil
}

// Feedback records an accept/reject decision for itemID.
func (a *Application) Feedback(itemID, decision string) (recommend.Policy, error) {
	return usecase.NewFeedback(a.vault, a.cfg.PolicyPath(), a.logger.With("component", "feedback")).Apply(itemID, decision)
}

// SyncCatalog rebuilds the SQLite catalog from index.csv.
func (a *Application) SyncCatalog(ctx context.Context) (int, error) {
	if a.catalog == nil {
		return 0, ErrCatalogDisabled
	}
	rows, err := a.index.Rows()
	if err != nil {
		return 0, err
	}
	return a.catalog.Sync(ctx, rows)
}

func (a *Application) flushMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile, time.Now()); err != nil {
		a.logger.Warn("metrics textfile not written", "error", err)
	}
}
