package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
)

const (
	neutralNovelty   = 0.5
	noHistoryNovelty = 0.9
	defaultThreshold = 0.7
	moderateSim      = 0.5
	topMatches       = 3
)

// HighlightsReader enumerates stored highlights.
type HighlightsReader interface {
	ItemIDs() ([]string, error)
	LoadHighlights(id string) (domain.Highlights, bool)
}

// Match is a stored chunk similar to the candidate.
type Match struct {
	ItemID     string  `json:"item_id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
}

// NoveltyReport is the outcome of a novelty check.
type NoveltyReport struct {
	Score     float64 `json:"novelty_score"`
	Similar   []Match `json:"similar_items"`
	Reasoning string  `json:"reasoning"`
}

// KeyphraseNovelty splits key phrases into never-seen and known ones.
type KeyphraseNovelty struct {
	New   []string `json:"new_keyphrases"`
	Known []string `json:"known_keyphrases"`
	Ratio float64  `json:"novelty_ratio"`
}

// NoveltyDeps wires the detector.
type NoveltyDeps struct {
	Embedder  ports.Embedder
	Corpus    CorpusLoader
	Vault     HighlightsReader
	Threshold float64
	Logger    *slog.Logger
}

// NoveltyDetector scores candidates against the embedded history.
type NoveltyDetector struct {
	embedder  ports.Embedder
	corpus    CorpusLoader
	vault     HighlightsReader
	threshold float64
	logger    *slog.Logger
}

// NewNoveltyDetector uses a 0.7 similarity threshold unless one is given.
func NewNoveltyDetector(deps NoveltyDeps) *NoveltyDetector {
	threshold := deps.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NoveltyDetector{
		embedder:  deps.Embedder,
		corpus:    deps.Corpus,
		vault:     deps.Vault,
		threshold: threshold,
		logger:    logger,
	}
}

// NoveltyText is the text embedded for a candidate.
func NoveltyText(c domain.Candidate, h domain.Highlights) string {
	claims := make([]string, 0, len(h.KeyClaims))
	for _, cl := range h.KeyClaims {
		claims = append(claims, cl.Claim)
	}
	parts := []string{c.Title, c.Description, strings.Join(h.Keyphrases, " "), strings.Join(claims, " ")}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// Score never fails; degraded inputs produce a neutral score with an
// explanation.
func (d *NoveltyDetector) Score(ctx context.Context, c domain.Candidate, h domain.Highlights) NoveltyReport {
	text := NoveltyText(c, h)
	if text == "" {
		return NoveltyReport{Score: neutralNovelty, Similar: []Match{}, Reasoning: "Insufficient text for embedding"}
	}

	vecs, err := d.embedder.Embed(ctx, []string{text})
	if err == nil && len(vecs) != 1 {
		err = fmt.Errorf("got %d vectors", len(vecs))
	}
	if err != nil {
		return NoveltyReport{Score: neutralNovelty, Similar: []Match{}, Reasoning: "Embedding creation failed: " + err.Error()}
	}

	corpus, err := d.corpus()
	if err != nil {
		d.logger.Warn("embedding corpus unusable, treating as empty", "error", err)
	}
	if corpus.Len() == 0 {
		return NoveltyReport{Score: noHistoryNovelty, Similar: []Match{}, Reasoning: "No vault history to compare against"}
	}

	hits := corpus.Search(vecs[0], topMatches)
	similar := make([]Match, 0, len(hits))
	for _, hit := range hits {
		similar = append(similar, Match{
			ItemID:     hit.Meta.ItemID,
			Title:      hit.Meta.Title,
			URL:        hit.Meta.URL,
			Similarity: hit.Score,
		})
	}

	maxSim := hits[0].Score
	var reasoning string
	switch {
	case maxSim > d.threshold:
		reasoning = fmt.Sprintf("Very similar to existing item (similarity: %.2f)", maxSim)
	case maxSim > moderateSim:
		reasoning = fmt.Sprintf("Moderately similar to existing items (similarity: %.2f)", maxSim)
	default:
		reasoning = fmt.Sprintf("Novel content, low similarity to vault (max: %.2f)", maxSim)
	}
	return NoveltyReport{Score: domain.Clamp01(1 - maxSim), Similar: similar, Reasoning: reasoning}
}

// NewKeyphrases compares h's key phrases against every stored highlights file.
func (d *NoveltyDetector) NewKeyphrases(h domain.Highlights) (KeyphraseNovelty, error) {
	phrases := map[string]struct{}{}
	for _, k := range h.Keyphrases {
		phrases[k] = struct{}{}
	}
	out := KeyphraseNovelty{New: []string{}, Known: []string{}}
	if len(phrases) == 0 {
		return out, nil
	}

	ids, err := d.vault.ItemIDs()
	if err != nil {
		return out, fmt.Errorf("list items: %w", err)
	}
	known := map[string]struct{}{}
	for _, id := range ids {
		stored, ok := d.vault.LoadHighlights(id)
		if !ok {
			continue
		}
		for _, k := range stored.Keyphrases {
			known[k] = struct{}{}
		}
	}

	for k := range phrases {
		if _, ok := known[k]; ok {
			out.Known = append(out.Known, k)
		} else {
			out.New = append(out.New, k)
		}
	}
	sort.Strings(out.New)
	sort.Strings(out.Known)
	out.Ratio = float64(len(out.New)) / float64(len(phrases))
	return out, nil
}
