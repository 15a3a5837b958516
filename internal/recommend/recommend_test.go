package recommend

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/vectors"
)

type fixedEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeIndex map[string]domain.IndexRow

func (f fakeIndex) ByItemID() (map[string]domain.IndexRow, error) { return f, nil }

type fakeItems struct {
	items     map[string]domain.Item
	summaries map[string]domain.Summary
}

func (f fakeItems) LoadItem(id string) (domain.Item, bool) {
	it, ok := f.items[id]
	return it, ok
}

func (f fakeItems) LoadSummary(id string) (domain.Summary, bool) {
	s, ok := f.summaries[id]
	return s, ok
}

func staticCorpus(rows [][]float32, meta []domain.ChunkMeta) CorpusLoader {
	return func() (*vectors.Corpus, error) { return vectors.New(rows, meta, len(rows[0])), nil }
}

func TestRecommendBlendsScores(t *testing.T) {
	t.Parallel()

	emb := &fixedEmbedder{vec: []float32{1, 0}}
	corpus := staticCorpus(
		[][]float32{{1, 0}, {0.6, 0.8}, {0, 1}, {0.8, 0.6}},
		[]domain.ChunkMeta{
			{ItemID: "a", Type: domain.ChunkHighlights},
			{ItemID: "b", Type: domain.ChunkHighlights, Title: "B from meta"},
			{ItemID: "c"},
			{ItemID: "b", Type: domain.ChunkSummary, Title: "B from meta"},
		},
	)
	index := fakeIndex{
		"a": {ItemID: "a", Title: "A", URL: "https://a", Relevance: 0.2, Actionability: 0.2, Credibility: 0.5},
		"c": {ItemID: "c", Title: "C", Relevance: 1, Actionability: 1, Credibility: 1},
	}
	items := fakeItems{
		items: map[string]domain.Item{
			"b": {ID: "b", Pillars: []string{"Agents", "Evals"}},
		},
		summaries: map[string]domain.Summary{"a": {TLDR: []string{"Line one", "Line two"}}},
	}

	e := NewEngine(EngineDeps{Embedder: emb, Corpus: corpus, Index: index, Items: items})
	recs, err := e.Recommend(context.Background(), []string{"agents", " ", "codegen"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"agents, codegen"}, emb.texts)

	require.Len(t, recs, 3)
	// c: 0.5*0 + 0.3 + 0.2 + 0.1 = 0.6
	// a: 0.5*1 + 0.06 + 0.04 + 0.05 = 0.65
	// b: (0.5*0.8) * (1 + 0.05) = 0.42
	assert.Equal(t, "a", recs[0].ItemID)
	assert.InDelta(t, 0.65, recs[0].Scores.Combined, 1e-6)
	assert.Equal(t, "Line one Line two", recs[0].Summary)
	assert.Equal(t, "c", recs[1].ItemID)
	assert.InDelta(t, 0.6, recs[1].Scores.Combined, 1e-6)
	assert.Equal(t, "b", recs[2].ItemID)
	assert.InDelta(t, 0.8, recs[2].Scores.Sim, 1e-6, "max similarity per item")
	assert.InDelta(t, 0.42, recs[2].Scores.Combined, 1e-6)
	assert.Equal(t, "B from meta", recs[2].Title)
	assert.Equal(t, []string{"Agents", "Evals"}, recs[2].Pillars)
}

func TestRecommendTiesKeepRetrievalOrder(t *testing.T) {
	t.Parallel()

	emb := &fixedEmbedder{vec: []float32{1, 0}}
	corpus := staticCorpus(
		[][]float32{{0, 1}, {0, 1}, {0, 1}},
		[]domain.ChunkMeta{{ItemID: "x"}, {ItemID: "y"}, {ItemID: "z"}},
	)
	same := domain.IndexRow{Relevance: 0.5, Actionability: 0.5, Credibility: 0.5}
	index := fakeIndex{"x": same, "y": same, "z": same}

	e := NewEngine(EngineDeps{Embedder: emb, Corpus: corpus, Index: index, Items: fakeItems{}})
	for i := 0; i < 5; i++ {
		recs, err := e.Recommend(context.Background(), []string{"p"}, 3)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, []string{"x", "y", "z"}, []string{recs[0].ItemID, recs[1].ItemID, recs[2].ItemID})
	}
}

func TestRecommendUsesPolicy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.json")
	policy := DefaultPolicy()
	policy.PillarMultipliers["evals"] = 0.5
	require.NoError(t, policy.Save(policyPath))

	emb := &fixedEmbedder{vec: []float32{1, 0}}
	corpus := staticCorpus(
		[][]float32{{1, 0}, {1, 0}},
		[]domain.ChunkMeta{{ItemID: "plain"}, {ItemID: "boosted"}},
	)
	items := fakeItems{items: map[string]domain.Item{"boosted": {Pillars: []string{"Evals"}}}}

	e := NewEngine(EngineDeps{Embedder: emb, Corpus: corpus, Index: fakeIndex{}, Items: items, PolicyPath: policyPath})
	recs, err := e.Recommend(context.Background(), []string{"agents"}, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "boosted", recs[0].ItemID)
	assert.InDelta(t, 0.75, recs[0].Scores.Combined, 1e-6)
}

func TestRecommendEdgeCases(t *testing.T) {
	t.Parallel()

	e := NewEngine(EngineDeps{Embedder: &fixedEmbedder{vec: []float32{1}}, Corpus: DirCorpus(t.TempDir()), Index: fakeIndex{}, Items: fakeItems{}})

	_, err := e.Recommend(context.Background(), []string{"", "  "}, 3)
	assert.True(t, errors.Is(err, ErrNoPriorities))

	recs, err := e.Recommend(context.Background(), []string{"agents"}, 3)
	require.NoError(t, err)
	assert.Empty(t, recs, "missing corpus yields no recommendations")

	broken := NewEngine(EngineDeps{
		Embedder: &fixedEmbedder{vec: []float32{1}},
		Corpus:   func() (*vectors.Corpus, error) { return &vectors.Corpus{}, vectors.ErrMismatch },
		Index:    fakeIndex{},
		Items:    fakeItems{},
	})
	recs, err = broken.Recommend(context.Background(), []string{"agents"}, 3)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPolicyApply(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	require.NoError(t, p.Apply("Accept", []string{"Agents"}))
	w := p.ScoreWeights
	assert.InDelta(t, 1.0, w.Sim+w.Relevance+w.Actionability+w.Credibility, 1e-9)
	assert.InDelta(t, 0.32/1.14, w.Relevance, 1e-9)
	assert.InDelta(t, 0.02, p.PillarMultipliers["agents"], 1e-9)

	for i := 0; i < 30; i++ {
		require.NoError(t, p.Apply(DecisionReject, []string{"Agents"}))
	}
	assert.Equal(t, -0.2, p.PillarMultipliers["agents"])
	assert.GreaterOrEqual(t, p.ScoreWeights.Relevance, 0.0)

	require.Error(t, p.Apply("maybe", nil))
}

func TestLoadPolicyDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultPolicy(), LoadPolicy(filepath.Join(t.TempDir(), "missing.json")))
	assert.Equal(t, DefaultPolicy(), LoadPolicy(""))
}

type fakeHighlights map[string]domain.Highlights

func (f fakeHighlights) ItemIDs() ([]string, error) {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f fakeHighlights) LoadHighlights(id string) (domain.Highlights, bool) {
	h, ok := f[id]
	return h, ok
}

func candidate() domain.Candidate {
	return domain.Candidate{Title: "Agents SDK", Description: "ships today"}
}

func TestNoveltyDegenerateInputs(t *testing.T) {
	t.Parallel()

	d := NewNoveltyDetector(NoveltyDeps{Embedder: &fixedEmbedder{vec: []float32{1, 0}}, Corpus: DirCorpus(t.TempDir())})

	r := d.Score(context.Background(), domain.Candidate{}, domain.Highlights{})
	assert.Equal(t, 0.5, r.Score)
	assert.Equal(t, "Insufficient text for embedding", r.Reasoning)

	r = d.Score(context.Background(), candidate(), domain.Highlights{})
	assert.Equal(t, 0.9, r.Score)
	assert.Empty(t, r.Similar)

	failing := NewNoveltyDetector(NoveltyDeps{Embedder: &fixedEmbedder{err: errors.New("quota")}, Corpus: DirCorpus(t.TempDir())})
	r = failing.Score(context.Background(), candidate(), domain.Highlights{})
	assert.Equal(t, 0.5, r.Score)
	assert.Contains(t, r.Reasoning, "quota")
}

func TestNoveltyDropsWithNearDuplicate(t *testing.T) {
	t.Parallel()

	emb := &fixedEmbedder{vec: []float32{1, 0}}
	empty := NewNoveltyDetector(NoveltyDeps{Embedder: emb, Corpus: DirCorpus(t.TempDir())})
	before := empty.Score(context.Background(), candidate(), domain.Highlights{})
	require.Equal(t, 0.9, before.Score)

	dup := []float32{0.95, float32(math.Sqrt(1 - 0.95*0.95))}
	corpus := staticCorpus(
		[][]float32{{0, 1}, dup, {0.3, 0.95}, {-1, 0}},
		[]domain.ChunkMeta{{ItemID: "far"}, {ItemID: "dup", Title: "Dup"}, {ItemID: "mid"}, {ItemID: "opposite"}},
	)
	d := NewNoveltyDetector(NoveltyDeps{Embedder: emb, Corpus: corpus})
	after := d.Score(context.Background(), candidate(), domain.Highlights{Keyphrases: []string{"Agents"}, KeyClaims: []domain.Claim{{Claim: "fast"}}})

	assert.Less(t, after.Score, before.Score)
	assert.InDelta(t, 0.05, after.Score, 1e-4)
	require.Len(t, after.Similar, 3)
	assert.Equal(t, "dup", after.Similar[0].ItemID)
	assert.Equal(t, "Dup", after.Similar[0].Title)
	assert.GreaterOrEqual(t, after.Similar[0].Similarity, after.Similar[1].Similarity)
	assert.GreaterOrEqual(t, after.Similar[1].Similarity, after.Similar[2].Similarity)
	assert.Contains(t, after.Reasoning, "Very similar")
	assert.Equal(t, []string{"Agents SDK ships today Agents fast"}, emb.texts[len(emb.texts)-1:])
}

func TestNoveltyReasoningBands(t *testing.T) {
	t.Parallel()

	emb := &fixedEmbedder{vec: []float32{1, 0}}
	moderate := NewNoveltyDetector(NoveltyDeps{Embedder: emb, Corpus: staticCorpus([][]float32{{0.6, 0.8}}, []domain.ChunkMeta{{ItemID: "m"}})})
	assert.Contains(t, moderate.Score(context.Background(), candidate(), domain.Highlights{}).Reasoning, "Moderately similar")

	novel := NewNoveltyDetector(NoveltyDeps{Embedder: emb, Corpus: staticCorpus([][]float32{{-1, 0}}, []domain.ChunkMeta{{ItemID: "o"}})})
	r := novel.Score(context.Background(), candidate(), domain.Highlights{})
	assert.Contains(t, r.Reasoning, "Novel content")
	assert.Equal(t, 1.0, r.Score, "novelty is clamped to [0, 1]")
}

func TestNewKeyphrases(t *testing.T) {
	t.Parallel()

	d := NewNoveltyDetector(NoveltyDeps{Vault: fakeHighlights{
		"1": {Keyphrases: []string{"Claude", "Agents"}},
		"2": {Keyphrases: []string{"Tailwind"}},
	}})

	res, err := d.NewKeyphrases(domain.Highlights{Keyphrases: []string{"Agents", "MCP", "Tailwind", "Vercel"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"MCP", "Vercel"}, res.New)
	assert.Equal(t, []string{"Agents", "Tailwind"}, res.Known)
	assert.Equal(t, 0.5, res.Ratio)

	res, err = d.NewKeyphrases(domain.Highlights{})
	require.NoError(t, err)
	assert.Zero(t, res.Ratio)
}

func corruptCorpusDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (99999999999999999999, 4), }\n"
	data := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), byte(len(header)>>8))
	data = append(data, header...)
	data = append(data, make([]byte, 16)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, vectors.EmbeddingsFile), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, vectors.MetaFile), []byte(`{"item_id":"a"}`+"\n"), 0o644))
	return dir
}

func TestCorruptEmbeddingsAreTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	dir := corruptCorpusDir(t)
	emb := &fixedEmbedder{vec: []float32{1, 0, 0, 0}}

	d := NewNoveltyDetector(NoveltyDeps{Embedder: emb, Corpus: DirCorpus(dir)})
	var r NoveltyReport
	require.NotPanics(t, func() { r = d.Score(context.Background(), candidate(), domain.Highlights{}) })
	assert.Equal(t, 0.9, r.Score)
	assert.Contains(t, r.Reasoning, "No vault history")

	e := NewEngine(EngineDeps{Embedder: emb, Corpus: DirCorpus(dir), Index: fakeIndex{}, Items: fakeItems{}})
	var recs []Recommendation
	var err error
	require.NotPanics(t, func() { recs, err = e.Recommend(context.Background(), []string{"agents"}, 3) })
	require.NoError(t, err)
	assert.Empty(t, recs)
}
