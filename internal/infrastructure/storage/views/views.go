// Package views keeps per-pillar lists of item references under
// views/pillars/<slug>.json.
package views

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/fsutil"
)

// Entry is one item reference inside a pillar view.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
}

// View is the contents of one pillar file.
type View struct {
	Pillar string  `json:"pillar"`
	Items  []Entry `json:"items"`
}

// Views writes pillar views below a data root.
type Views struct {
	dir string
}

// New returns views rooted at <dataRoot>/views/pillars.
func New(dataRoot string) *Views {
	return &Views{dir: filepath.Join(dataRoot, "views", "pillars")}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug maps a pillar name to its file stem.
func Slug(pillar string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(pillar), "-"), "-")
}

// Path returns the view file for pillar.
func (v *Views) Path(pillar string) string {
	return filepath.Join(v.dir, Slug(pillar)+".json")
}

// Load reads a pillar view. Missing or corrupt files yield an empty view.
func (v *Views) Load(pillar string) View {
	var view View
	if !fsutil.ReadJSON(v.Path(pillar), &view) {
		return View{Pillar: pillar, Items: []Entry{}}
	}
	if view.Pillar == "" {
		view.Pillar = pillar
	}
	if view.Items == nil {
		view.Items = []Entry{}
	}
	return view
}

// AddItem appends item to each pillar view it is not yet part of.
func (v *Views) AddItem(pillars []string, item domain.Item) error {
	for _, pillar := range pillars {
		if Slug(pillar) == "" {
			continue
		}
		view := v.Load(pillar)
		if contains(view.Items, item.ID) {
			continue
		}
		view.Items = append(view.Items, Entry{
			ID:    item.ID,
			Title: item.Title,
			URL:   item.CanonicalURL,
			Date:  item.PublishedAt,
		})
		if err := fsutil.WriteJSON(v.Path(pillar), view); err != nil {
			return fmt.Errorf("write view %q: %w", pillar, err)
		}
	}
	return nil
}

func contains(entries []Entry, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}
