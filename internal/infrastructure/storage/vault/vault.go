// Package vault owns the per-item on-disk layout:
//
//	<root>/items/YYYY-MM/<item_id>/item.json
//	                              highlights.json
//	                              evidence.json
//	                              summary.json, summary.md
//	                              transcript.json, source.md, repo_snippets/*
//
// Every write replaces a whole file via temp-file rename.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/fsutil"
)

// ErrIDCollision is returned when a freshly generated id already has a directory.
var ErrIDCollision = errors.New("item id collision")

const (
	itemFile       = "item.json"
	highlightsFile = "highlights.json"
	evidenceFile   = "evidence.json"
	summaryJSON    = "summary.json"
	summaryMD      = "summary.md"
	transcriptFile = "transcript.json"
	sourceFile     = "source.md"
	repoSnippetDir = "repo_snippets"

	idLayout = "20060102-150405"
)

// Vault is the durable per-item store. It is not safe for concurrent writers.
type Vault struct {
	root   string
	logger *slog.Logger
	lastTS time.Time
}

// New prepares the items directory under root.
func New(root string, logger *slog.Logger) (*Vault, error) {
	if err := os.MkdirAll(filepath.Join(root, "items"), 0o755); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return &Vault{root: root, logger: logger}, nil
}

// Root returns the vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// NewID renders an item id with microsecond precision.
func NewID(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s-%06d", ts.Format(idLayout), ts.Nanosecond()/1000)
}

// ItemDir resolves the directory of id from the month encoded in it.
func (v *Vault) ItemDir(id string) string {
	month := id
	if len(id) >= 6 {
		month = id[:4] + "-" + id[4:6]
	}
	return filepath.Join(v.root, "items", month, id)
}

// CreateItem allocates a new id and its directory. Ids are strictly
// increasing within the process even when the clock stalls or steps back.
func (v *Vault) CreateItem(ts time.Time) (string, string, error) {
	ts = ts.UTC().Truncate(time.Microsecond)
	if !ts.After(v.lastTS) {
		ts = v.lastTS.Add(time.Microsecond)
	}
	v.lastTS = ts

	id := NewID(ts)
	dir := v.ItemDir(id)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", "", fmt.Errorf("create month shard: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("%w: %s", ErrIDCollision, id)
		}
		return "", "", fmt.Errorf("create item dir: %w", err)
	}
	return id, dir, nil
}

// InitItem writes the initial record with zeroed scores.
func (v *Vault) InitItem(id string, c domain.Candidate) (domain.Item, error) {
	item := domain.NewItem(id, c)
	if err := fsutil.WriteJSON(v.file(id, itemFile), item); err != nil {
		return domain.Item{}, fmt.Errorf("init item %s: %w", id, err)
	}
	return item, nil
}

// LoadItem reads item.json. The boolean is false for a missing or corrupt record.
func (v *Vault) LoadItem(id string) (domain.Item, bool) {
	var item domain.Item
	if !fsutil.ReadJSON(v.file(id, itemFile), &item) {
		return domain.Item{}, false
	}
	return item, true
}

// Update performs a read-modify-write of item.json. A missing record is a
// no-op and reports false.
func (v *Vault) Update(id string, fn func(*domain.Item)) (bool, error) {
	item, ok := v.LoadItem(id)
	if !ok {
		if v.logger != nil {
			v.logger.Debug("update skipped, item record missing", "item_id", id)
		}
		return false, nil
	}
	fn(&item)
	if err := fsutil.WriteJSON(v.file(id, itemFile), item); err != nil {
		return true, fmt.Errorf("update item %s: %w", id, err)
	}
	return true, nil
}

// ApplyGate1 merges validity scores into the stored record.
func (v *Vault) ApplyGate1(id string, s domain.Gate1Scores, escalate bool) error {
	_, err := v.Update(id, func(it *domain.Item) { it.ApplyGate1(s, escalate) })
	return err
}

// ApplyGate2 merges personalization scores into the stored record.
func (v *Vault) ApplyGate2(id string, s domain.Gate2Scores, route domain.Route) error {
	_, err := v.Update(id, func(it *domain.Item) { it.ApplyGate2(s, route) })
	return err
}

// UpdateFields merges non-score fields into the stored record.
func (v *Vault) UpdateFields(id string, p domain.ItemPatch) error {
	_, err := v.Update(id, func(it *domain.Item) { it.Apply(p) })
	return err
}

// WriteHighlights stores highlights.json.
func (v *Vault) WriteHighlights(id string, h domain.Highlights) error {
	return fsutil.WriteJSON(v.file(id, highlightsFile), h)
}

// LoadHighlights reads highlights.json.
func (v *Vault) LoadHighlights(id string) (domain.Highlights, bool) {
	var h domain.Highlights
	ok := fsutil.ReadJSON(v.file(id, highlightsFile), &h)
	return h, ok
}

// WriteEvidence stores evidence.json.
func (v *Vault) WriteEvidence(id string, e domain.Evidence) error {
	return fsutil.WriteJSON(v.file(id, evidenceFile), e)
}

// WriteSummary stores the structured summary and its rendered markdown.
func (v *Vault) WriteSummary(id string, s domain.Summary) error {
	if err := fsutil.WriteJSON(v.file(id, summaryJSON), s); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(v.file(id, summaryMD), []byte(s.Markdown()), 0o644)
}

// LoadSummary reads summary.json.
func (v *Vault) LoadSummary(id string) (domain.Summary, bool) {
	var s domain.Summary
	ok := fsutil.ReadJSON(v.file(id, summaryJSON), &s)
	return s, ok
}

// WriteTranscript stores transcript.json.
func (v *Vault) WriteTranscript(id string, t domain.Transcript) error {
	return fsutil.WriteJSON(v.file(id, transcriptFile), t)
}

// WriteSource stores the raw source description.
func (v *Vault) WriteSource(id, text string) error {
	return fsutil.WriteFileAtomic(v.file(id, sourceFile), []byte(text), 0o644)
}

// WriteRepoSnippet stores a README/CHANGELOG excerpt for repo.
func (v *Vault) WriteRepoSnippet(id, repo, kind, text string) error {
	name := strings.ReplaceAll(repo, "/", "_") + "_" + kind + ".md"
	return fsutil.WriteFileAtomic(filepath.Join(v.ItemDir(id), repoSnippetDir, name), []byte(truncate(text, 4000)), 0o644)
}

// EvidenceSnippets gathers the small excerpts the validity model may see.
func (v *Vault) EvidenceSnippets(id string) domain.EvidenceSnippets {
	snippets := domain.EvidenceSnippets{
		Transcript: []domain.TranscriptQuote{},
		Source:     []domain.SourceQuote{},
		Repo:       []domain.RepoQuote{},
	}

	var transcript domain.Transcript
	if fsutil.ReadJSON(v.file(id, transcriptFile), &transcript) {
		for _, seg := range transcript.Segments {
			if len(snippets.Transcript) == 3 {
				break
			}
			if seg.Text == "" {
				continue
			}
			snippets.Transcript = append(snippets.Transcript, domain.TranscriptQuote{
				T:     seg.TStart,
				Quote: truncate(seg.Text, 260),
			})
		}
	}

	if body, err := os.ReadFile(v.file(id, sourceFile)); err == nil {
		trimmed := strings.TrimSpace(string(body))
		if trimmed != "" {
			first, _, _ := strings.Cut(trimmed, "\n")
			snippets.Source = append(snippets.Source, domain.SourceQuote{Quote: truncate(first, 400)})
		}
	}

	matches, _ := filepath.Glob(filepath.Join(v.ItemDir(id), repoSnippetDir, "*_*.*"))
	sort.Strings(matches)
	for _, path := range matches {
		body, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		snippets.Repo = append(snippets.Repo, domain.RepoQuote{
			File:  filepath.Base(path),
			Quote: truncate(string(body), 500),
		})
	}

	return snippets
}

// ItemIDs lists every stored item id in ascending order.
func (v *Vault) ItemIDs() ([]string, error) {
	months, err := os.ReadDir(filepath.Join(v.root, "items"))
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	var ids []string
	for _, month := range months {
		if !month.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(v.root, "items", month.Name()))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				ids = append(ids, e.Name())
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FindItemDir locates an id anywhere under items/, tolerating ids whose
// prefix does not encode the month shard.
func (v *Vault) FindItemDir(id string) (string, bool) {
	if dir := v.ItemDir(id); isDir(dir) {
		return dir, true
	}
	matches, _ := filepath.Glob(filepath.Join(v.root, "items", "*", id))
	for _, m := range matches {
		if isDir(m) {
			return m, true
		}
	}
	return "", false
}

func (v *Vault) file(id, name string) string {
	return filepath.Join(v.ItemDir(id), name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
