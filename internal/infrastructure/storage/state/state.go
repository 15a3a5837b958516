// Package state tracks which candidates were already processed and the
// daily speech-to-text budget. The whole ledger lives in memory; Flush is the
// only point at which it reaches disk.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"IntelVault/internal/infrastructure/storage/fsutil"
)

// DayKeyLayout formats the calendar day used as budget key.
const DayKeyLayout = "2006-01-02"

type fileFormat struct {
	SeenURLs  []string       `json:"seen_urls"`
	SeenUIDs  []string       `json:"seen_uids"`
	STTBudget map[string]int `json:"stt_budget"`
}

// Store is the process-wide dedup ledger. It is not safe for concurrent use.
type Store struct {
	path     string
	logger   *slog.Logger
	seenURLs map[string]struct{}
	seenUIDs map[string]struct{}
	budget   map[string]int
	dirty    bool
}

// Open loads the ledger at path. A missing or corrupt file yields an empty
// history.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:     path,
		logger:   logger,
		seenURLs: map[string]struct{}{},
		seenUIDs: map[string]struct{}{},
		budget:   map[string]int{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warn("state unreadable, starting with empty history", "path", s.path, "error", err)
		}
		return
	}

	var data fileFormat
	if err := json.Unmarshal(raw, &data); err != nil {
		s.warn("state corrupt, starting with empty history", "path", s.path, "error", err)
		return
	}
	for _, u := range data.SeenURLs {
		s.seenURLs[u] = struct{}{}
	}
	for _, u := range data.SeenUIDs {
		s.seenUIDs[u] = struct{}{}
	}
	for k, v := range data.STTBudget {
		s.budget[k] = v
	}
}

// Seen reports whether either identifier was marked before.
func (s *Store) Seen(url, uid string) bool {
	if url != "" {
		if _, ok := s.seenURLs[url]; ok {
			return true
		}
	}
	if uid != "" {
		if _, ok := s.seenUIDs[uid]; ok {
			return true
		}
	}
	return false
}

// Mark records both identifiers as seen. Empty identifiers are ignored.
func (s *Store) Mark(url, uid string) {
	if url != "" {
		if _, ok := s.seenURLs[url]; !ok {
			s.seenURLs[url] = struct{}{}
			s.dirty = true
		}
	}
	if uid != "" {
		if _, ok := s.seenUIDs[uid]; !ok {
			s.seenUIDs[uid] = struct{}{}
			s.dirty = true
		}
	}
}

// MinutesUsed returns the cumulative spend recorded for dayKey.
func (s *Store) MinutesUsed(dayKey string) int {
	return s.budget[dayKey]
}

// CanSpend reports whether spending minutes keeps dayKey within dailyLimit.
func (s *Store) CanSpend(minutes int, dayKey string, dailyLimit int) bool {
	return s.MinutesUsed(dayKey)+minutes <= dailyLimit
}

// Spend adds minutes to the counter for dayKey. Counters never decrease.
func (s *Store) Spend(minutes int, dayKey string) {
	if minutes <= 0 {
		return
	}
	s.budget[dayKey] += minutes
	s.dirty = true
}

// Dirty reports whether there are changes not yet flushed.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Len returns the number of seen URLs and UIDs.
func (s *Store) Len() (urls, uids int) {
	return len(s.seenURLs), len(s.seenUIDs)
}

// Flush persists the ledger with write-to-temp-then-rename.
func (s *Store) Flush() error {
	data := fileFormat{
		SeenURLs:  sortedKeys(s.seenURLs),
		SeenUIDs:  sortedKeys(s.seenUIDs),
		STTBudget: s.budget,
	}
	if err := fsutil.WriteJSON(s.path, data); err != nil {
		return fmt.Errorf("flush state: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
