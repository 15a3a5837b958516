package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"IntelVault/internal/domain"
	"IntelVault/internal/gate"
	"IntelVault/internal/infrastructure/storage/catalog"
	"IntelVault/internal/infrastructure/storage/state"
	"IntelVault/internal/infrastructure/storage/vault"
	"IntelVault/internal/infrastructure/storage/views"
	"IntelVault/internal/metrics"
	"IntelVault/internal/ports"
)

// ErrDuplicateURL means the index gained the candidate's URL between the
// dedup filter and the index append.
var ErrDuplicateURL = errors.New("url already indexed")

// Candidate stages, as reported in failures and metrics.
const (
	StageCheck      = "check"
	StageCreate     = "create"
	StageHighlight  = "highlight"
	StageEnrich     = "enrich"
	StageTranscript = "transcript"
	StageGate1      = "gate1"
	StageGate2      = "gate2"
	StageClassify   = "classify"
	StageIndex      = "index"
	StageMark       = "mark"
)

const (
	repoDocsPerItem = 2
	minSourceChars  = 40
)

// IndexStore is the append-only index the pipeline deduplicates against.
type IndexStore interface {
	HasURL(url string) (bool, error)
	Add(row domain.IndexRow) error
}

// CatalogStore is the optional SQLite mirror of the index.
type CatalogStore interface {
	HasURL(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, row domain.IndexRow) error
}

// RepoDocs fetches repository documents used as evidence.
type RepoDocs interface {
	Readme(ctx context.Context, repo string) (string, error)
	Changelog(ctx context.Context, repo string) (string, error)
}

// IngestSettings bounds a run.
type IngestSettings struct {
	DailyLimit                int
	MaxWhisperVideoMinutes    int
	DailyWhisperBudgetMinutes int
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Catalog, Transcripts, RepoDocs, Notifier and Metrics are optional.
type PipelineDeps struct {
	Source      ports.CandidateSource
	Highlights  ports.HighlightBuilder
	Classifier  ports.PillarClassifier
	Gate1       *gate.Gate1
	Gate2       *gate.Gate2
	Vault       *vault.Vault
	Index       IndexStore
	Catalog     CatalogStore
	State       *state.Store
	Views       *views.Views
	Transcripts ports.TranscriptSource
	RepoDocs    RepoDocs
	Notifier    ports.Notifier
	Metrics     *metrics.Metrics
	Profile     domain.Profile
	Settings    IngestSettings
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Pipeline implements the candidate ingestion workflow.
type Pipeline struct {
	deps   PipelineDeps
	clock  func() time.Time
	logger *slog.Logger
}

// IngestOptions control one run. A zero Limit means the daily limit; a
// zero Now means the pipeline clock.
type IngestOptions struct {
	Limit  int
	DryRun bool
	Now    time.Time
}

// CandidateFailure describes a candidate that was dropped mid-flight.
type CandidateFailure struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// RunReport summarises an ingest run.
type RunReport struct {
	RunID    string             `json:"run_id"`
	DryRun   bool               `json:"dry_run"`
	Fetched  int                `json:"fetched"`
	Skipped  int                `json:"skipped"`
	Selected int                `json:"selected"`
	Created  []string           `json:"created"`
	Alerts   []string           `json:"alerts"`
	Failed   []CandidateFailure `json:"failed"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{deps: deps, clock: clock, logger: logger}
}

// Ingest fetches candidates, drops known ones and runs each remaining
// candidate through every stage. A failing candidate is reported and the
// batch continues. State is flushed once at the end, also after failures.
func (p *Pipeline) Ingest(ctx context.Context, opts IngestOptions) (RunReport, error) {
	report := RunReport{
		RunID:   uuid.NewString(),
		DryRun:  opts.DryRun,
		Created: []string{},
		Alerts:  []string{},
		Failed:  []CandidateFailure{},
	}
	logger := p.logger.With("run_id", report.RunID)

	now := opts.Now
	if now.IsZero() {
		now = p.clock()
	}

	candidates, err := p.deps.Source.FetchCandidates(ctx, now)
	if err != nil {
		return report, fmt.Errorf("fetch candidates: %w", err)
	}
	report.Fetched = len(candidates)

	selected, err := p.filter(ctx, candidates)
	if err != nil {
		return report, err
	}
	limit := p.limit(opts.Limit)
	if len(selected) > limit {
		selected = selected[:limit]
	}
	report.Selected = len(selected)
	report.Skipped = report.Fetched - report.Selected
	logger.Info("ingest started", "fetched", report.Fetched, "selected", report.Selected, "dry_run", opts.DryRun)

	for _, c := range selected {
		if ctx.Err() != nil {
			break
		}
		out := p.process(ctx, c, opts.DryRun, logger)
		switch {
		case out.err != nil:
			p.deps.Metrics.Candidate(metrics.OutcomeFailed)
			logger.Error("candidate failed", "stage", out.stage, "url", c.URL, "error", out.err)
			report.Failed = append(report.Failed, CandidateFailure{
				URL:   c.URL,
				Title: c.Title,
				Stage: out.stage,
				Error: out.err.Error(),
			})
		case out.skipped:
			p.deps.Metrics.Candidate(metrics.OutcomeSkipped)
			report.Skipped++
		default:
			p.deps.Metrics.Candidate(metrics.OutcomeIngested)
			report.Created = append(report.Created, out.id)
			if out.alerted {
				report.Alerts = append(report.Alerts, out.id)
			}
		}
	}

	if err := p.deps.State.Flush(); err != nil {
		return report, fmt.Errorf("flush state: %w", err)
	}
	logger.Info("ingest finished", "created", len(report.Created), "failed", len(report.Failed), "alerts", len(report.Alerts))
	return report, ctx.Err()
}

func (p *Pipeline) limit(requested int) int {
	daily := p.deps.Settings.DailyLimit
	if daily <= 0 {
		daily = 12
	}
	if requested <= 0 || requested > daily {
		return daily
	}
	return requested
}

// filter orders candidates newest first and drops everything already seen,
// already indexed, or repeated within this batch. Index hits are marked in
// state so the next run skips them without touching the index.
func (p *Pipeline) filter(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	sorted := append([]domain.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	batch := map[string]struct{}{}
	out := make([]domain.Candidate, 0, len(sorted))
	for _, c := range sorted {
		if c.URL == "" {
			continue
		}
		uid := c.UID()
		if _, dup := batch[c.URL]; dup {
			continue
		}
		if _, dup := batch[uid]; dup {
			continue
		}
		batch[c.URL] = struct{}{}
		batch[uid] = struct{}{}

		if p.deps.State.Seen(c.URL, uid) {
			continue
		}
		indexed, err := p.indexed(ctx, c.URL)
		if err != nil {
			return nil, err
		}
		if indexed {
			p.deps.State.Mark(c.URL, uid)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Pipeline) indexed(ctx context.Context, url string) (bool, error) {
	hit, err := p.deps.Index.HasURL(url)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if hit || p.deps.Catalog == nil {
		return hit, nil
	}
	hit, err = p.deps.Catalog.HasURL(ctx, url)
	if err != nil {
		return false, fmt.Errorf("check catalog: %w", err)
	}
	return hit, nil
}

type outcome struct {
	id      string
	stage   string
	skipped bool
	alerted bool
	err     error
}

// process runs one candidate through the state machine. A panic in any
// stage becomes a failure of this candidate only.
func (p *Pipeline) process(ctx context.Context, c domain.Candidate, dryRun bool, logger *slog.Logger) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()

	run := func(stage string, fn func() error) error {
		out.stage = stage
		start := time.Now()
		err := fn()
		p.deps.Metrics.ObserveStage(stage, start)
		return err
	}

	uid := c.UID()
	err := run(StageCheck, func() error {
		hit, err := p.indexed(ctx, c.URL)
		out.skipped = hit
		return err
	})
	if err != nil || out.skipped {
		out.err = err
		return out
	}

	var dir string
	if out.err = run(StageCreate, func() error {
		id, d, err := p.deps.Vault.CreateItem(p.clock())
		if err != nil {
			return err
		}
		out.id, dir = id, d
		_, err = p.deps.Vault.InitItem(id, c)
		return err
	}); out.err != nil {
		return out
	}
	logger = logger.With("item_id", out.id)

	var h domain.Highlights
	if out.err = run(StageHighlight, func() error {
		var err error
		if h, err = p.deps.Highlights.Build(ctx, c, dryRun); err != nil {
			return err
		}
		return p.deps.Vault.WriteHighlights(out.id, h)
	}); out.err != nil {
		return out
	}

	if out.err = run(StageEnrich, func() error {
		return p.enrich(ctx, out.id, c, dryRun, logger)
	}); out.err != nil {
		return out
	}

	if c.SourceType == domain.SourceYouTube && p.deps.Transcripts != nil {
		if out.err = run(StageTranscript, func() error {
			return p.transcript(ctx, out.id, c, dryRun, logger)
		}); out.err != nil {
			return out
		}
	}

	if out.err = run(StageGate1, func() error {
		res := p.deps.Gate1.Evaluate(ctx, c, h, p.deps.Vault.EvidenceSnippets(out.id), dryRun)
		p.deps.Metrics.Fallback(StageGate1, string(res.Fallback))
		if err := p.deps.Vault.WriteEvidence(out.id, res.Evidence); err != nil {
			return err
		}
		return p.deps.Vault.ApplyGate1(out.id, res.Scores, res.Escalate)
	}); out.err != nil {
		return out
	}

	if out.err = run(StageGate2, func() error {
		res := p.deps.Gate2.Evaluate(ctx, h, p.deps.Profile, c, dryRun)
		p.deps.Metrics.Fallback(StageGate2, string(res.Fallback))
		if err := p.deps.Vault.WriteSummary(out.id, res.Summary); err != nil {
			return err
		}
		return p.deps.Vault.ApplyGate2(out.id, res.Scores, res.Route)
	}); out.err != nil {
		return out
	}

	if out.err = run(StageClassify, func() error {
		text := c.Title + "\n" + strings.Join(h.SummaryBullets, "\n")
		pillars := p.deps.Classifier.Classify(text, h.Keyphrases)
		if pillars == nil {
			pillars = []string{}
		}
		if err := p.deps.Vault.UpdateFields(out.id, domain.ItemPatch{Pillars: pillars}); err != nil {
			return err
		}
		item, ok := p.deps.Vault.LoadItem(out.id)
		if !ok {
			return fmt.Errorf("item %s unreadable after update", out.id)
		}
		return p.deps.Views.AddItem(pillars, item)
	}); out.err != nil {
		return out
	}

	var item domain.Item
	if out.err = run(StageIndex, func() error {
		var ok bool
		if item, ok = p.deps.Vault.LoadItem(out.id); !ok {
			return fmt.Errorf("item %s unreadable before indexing", out.id)
		}
		hit, err := p.indexed(ctx, c.URL)
		if err != nil {
			return err
		}
		if hit {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, c.URL)
		}
		row := domain.NewIndexRow(item, dir)
		if err := p.deps.Index.Add(row); err != nil {
			return err
		}
		if p.deps.Catalog != nil {
			if err := p.deps.Catalog.Insert(ctx, row); err != nil && !errors.Is(err, catalog.ErrDuplicateURL) {
				// The CSV index is authoritative; catalog-sync repairs the mirror.
				logger.Warn("catalog insert failed", "error", err)
			}
		}
		return nil
	}); out.err != nil {
		return out
	}

	_ = run(StageMark, func() error {
		p.deps.State.Mark(c.URL, uid)
		return nil
	})

	if item.Route == domain.RouteAlert {
		out.alerted = p.alert(ctx, out.id, item, dryRun, logger)
	}
	out.stage = ""
	return out
}

// enrich stores the source description and README/CHANGELOG excerpts of
// the first referenced repositories. Fetch failures only cost evidence.
func (p *Pipeline) enrich(ctx context.Context, id string, c domain.Candidate, dryRun bool, logger *slog.Logger) error {
	if desc := strings.TrimSpace(c.Description); len(desc) > minSourceChars {
		if err := p.deps.Vault.WriteSource(id, desc); err != nil {
			return err
		}
	}
	if dryRun || p.deps.RepoDocs == nil {
		return nil
	}

	repos := c.Links.Repos
	if len(repos) > repoDocsPerItem {
		repos = repos[:repoDocsPerItem]
	}
	for _, repo := range repos {
		docs := []struct {
			kind  string
			fetch func(context.Context, string) (string, error)
		}{
			{"README", p.deps.RepoDocs.Readme},
			{"CHANGELOG", p.deps.RepoDocs.Changelog},
		}
		for _, doc := range docs {
			text, err := doc.fetch(ctx, repo)
			if err != nil {
				logger.Debug("repo document unavailable", "repo", repo, "doc", doc.kind, "error", err)
				continue
			}
			if err := p.deps.Vault.WriteRepoSnippet(id, repo, doc.kind, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// transcript prefers captions. Paid transcription needs a known duration
// within the per-video cap and enough daily budget, and never runs dry.
func (p *Pipeline) transcript(ctx context.Context, id string, c domain.Candidate, dryRun bool, logger *slog.Logger) error {
	segments, err := p.deps.Transcripts.Captions(ctx, c.URL)
	if err != nil {
		logger.Warn("captions unavailable", "error", err)
		segments = nil
	}

	fallback := false
	minutes := c.DurationSeconds / 60
	if len(segments) == 0 && !dryRun && minutes > 0 && minutes <= p.deps.Settings.MaxWhisperVideoMinutes {
		dayKey := p.clock().UTC().Format(state.DayKeyLayout)
		if p.deps.State.CanSpend(minutes, dayKey, p.deps.Settings.DailyWhisperBudgetMinutes) {
			segments, err = p.deps.Transcripts.Transcribe(ctx, c.URL)
			switch {
			case err != nil:
				logger.Warn("transcription failed", "error", err)
				segments = nil
			case len(segments) > 0:
				p.deps.State.Spend(minutes, dayKey)
				p.deps.Metrics.SpendSTT(minutes)
				fallback = true
			}
		}
	}

	if len(segments) == 0 {
		return nil
	}
	return p.deps.Vault.WriteTranscript(id, domain.Transcript{Segments: segments, Fallback: fallback})
}

func (p *Pipeline) alert(ctx context.Context, id string, item domain.Item, dryRun bool, logger *slog.Logger) bool {
	if dryRun || p.deps.Notifier == nil {
		return false
	}
	msg := fmt.Sprintf("ALERT: %s\n%s\nsource: %s | overall %.2f | credibility %.2f | validity %.2f",
		item.Title, item.CanonicalURL, item.SourceName,
		item.Scores.Overall, item.Scores.Credibility, item.Scores.ValidityConf)
	if summary, ok := p.deps.Vault.LoadSummary(id); ok && len(summary.TLDR) > 0 {
		msg += "\n\n" + strings.Join(summary.TLDR, " ")
	}
	if err := p.deps.Notifier.PublishDigest(ctx, msg); err != nil {
		logger.Warn("alert not delivered", "error", err)
		return false
	}
	return true
}
