// Package recommend ranks stored items against the consumer profile and
// measures how novel a new candidate is relative to the embedded corpus.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/vectors"
	"IntelVault/internal/ports"
)

// ErrNoPriorities is returned when the profile has nothing to query with.
var ErrNoPriorities = errors.New("profile has no priorities")

const (
	retrievalFactor = 5
	pillarBoost     = 0.05
	summaryLimit    = 600
)

// IndexReader exposes index rows keyed by item id.
type IndexReader interface {
	ByItemID() (map[string]domain.IndexRow, error)
}

// ItemReader exposes stored items and their summaries.
type ItemReader interface {
	LoadItem(id string) (domain.Item, bool)
	LoadSummary(id string) (domain.Summary, bool)
}

// CorpusLoader returns the current embedding corpus.
type CorpusLoader func() (*vectors.Corpus, error)

// DirCorpus loads the corpus exported under dir.
func DirCorpus(dir string) CorpusLoader {
	return func() (*vectors.Corpus, error) { return vectors.Load(dir) }
}

// Scores are the components of one recommendation.
type Scores struct {
	Sim           float64 `json:"sim"`
	Relevance     float64 `json:"relevance"`
	Actionability float64 `json:"actionability"`
	Credibility   float64 `json:"credibility"`
	Combined      float64 `json:"combined"`
}

// Recommendation is one ranked item.
type Recommendation struct {
	ItemID  string   `json:"item_id"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Pillars []string `json:"pillars"`
	Scores  Scores   `json:"scores"`
	Summary string   `json:"summary"`
}

// EngineDeps wires the engine.
type EngineDeps struct {
	Embedder   ports.Embedder
	Corpus     CorpusLoader
	Index      IndexReader
	Items      ItemReader
	PolicyPath string
	Logger     *slog.Logger
}

// Engine blends embedding similarity with stored scores.
type Engine struct {
	embedder   ports.Embedder
	corpus     CorpusLoader
	index      IndexReader
	items      ItemReader
	policyPath string
	logger     *slog.Logger
}

// NewEngine builds the recommendation engine.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		embedder:   deps.Embedder,
		corpus:     deps.Corpus,
		index:      deps.Index,
		items:      deps.Items,
		policyPath: deps.PolicyPath,
		logger:     logger,
	}
}

type candidateHit struct {
	itemID string
	sim    float64
	meta   domain.ChunkMeta
}

// Recommend returns the top k items for priorities. Items with equal
// combined scores keep retrieval order.
func (e *Engine) Recommend(ctx context.Context, priorities []string, k int) ([]Recommendation, error) {
	terms := nonEmpty(priorities)
	if len(terms) == 0 {
		return nil, ErrNoPriorities
	}
	if k <= 0 {
		return []Recommendation{}, nil
	}

	corpus, err := e.corpus()
	if err != nil {
		e.logger.Warn("embedding corpus unusable, treating as empty", "error", err)
		return []Recommendation{}, nil
	}
	if corpus.Len() == 0 {
		return []Recommendation{}, nil
	}

	vecs, err := e.embedder.Embed(ctx, []string{strings.Join(terms, ", ")})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	hits := aggregate(corpus.Search(vecs[0], k*retrievalFactor))

	rows, err := e.index.ByItemID()
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	policy := LoadPolicy(e.policyPath)
	w := policy.ScoreWeights

	wanted := map[string]struct{}{}
	for _, p := range terms {
		wanted[strings.ToLower(p)] = struct{}{}
	}

	out := make([]Recommendation, 0, len(hits))
	for _, h := range hits {
		row := rows[h.itemID]
		item, _ := e.items.LoadItem(h.itemID)
		pillars := item.Pillars
		if pillars == nil {
			pillars = h.meta.Pillars
		}

		matches := 0
		for _, p := range pillars {
			if _, ok := wanted[strings.ToLower(p)]; ok {
				matches++
			}
		}
		boost := 1 + pillarBoost*float64(matches) + policy.Multiplier(pillars)

		s := Scores{
			Sim:           h.sim,
			Relevance:     row.Relevance,
			Actionability: row.Actionability,
			Credibility:   row.Credibility,
		}
		s.Combined = (w.Sim*s.Sim + w.Relevance*s.Relevance + w.Actionability*s.Actionability + w.Credibility*s.Credibility) * boost

		rec := Recommendation{
			ItemID:  h.itemID,
			Title:   firstNonEmpty(row.Title, h.meta.Title),
			URL:     firstNonEmpty(row.URL, h.meta.URL),
			Pillars: append([]string{}, pillars...),
			Scores:  s,
		}
		if summary, ok := e.items.LoadSummary(h.itemID); ok {
			rec.Summary = truncate(strings.Join(summary.TLDR, " "), summaryLimit)
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Scores.Combined > out[b].Scores.Combined
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// aggregate keeps the best similarity per item in first-retrieval order.
func aggregate(hits []vectors.Hit) []candidateHit {
	pos := map[string]int{}
	var out []candidateHit
	for _, h := range hits {
		id := h.Meta.ItemID
		if id == "" {
			continue
		}
		if i, ok := pos[id]; ok {
			if h.Score > out[i].sim {
				out[i].sim = h.Score
				out[i].meta = h.Meta
			}
			continue
		}
		pos[id] = len(out)
		out = append(out, candidateHit{itemID: id, sim: h.Score, meta: h.Meta})
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
