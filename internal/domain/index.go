package domain

import (
	"strings"
	"time"
)

// IndexRow is the flattened projection of an item kept in index.csv.
type IndexRow struct {
	ItemID        string
	Title         string
	URL           string
	Source        string
	Type          string
	Date          string
	Validity      float64
	Credibility   float64
	Relevance     float64
	Actionability float64
	Novelty       float64
	Overall       float64
	Route         Route
	DrivePath     string
}

// NewIndexRow projects a fully scored item stored at dir.
func NewIndexRow(it Item, dir string) IndexRow {
	return IndexRow{
		ItemID:        it.ID,
		Title:         it.Title,
		URL:           it.CanonicalURL,
		Source:        it.SourceName,
		Type:          it.ContentType,
		Date:          it.PublishedAt,
		Validity:      it.Scores.ValidityConf,
		Credibility:   it.Scores.Credibility,
		Relevance:     it.Scores.Relevance,
		Actionability: it.Scores.Actionability,
		Novelty:       it.Scores.Novelty,
		Overall:       it.Scores.Overall,
		Route:         it.Route,
		DrivePath:     dir,
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 variants written by sources. The second
// return value is false when the string cannot be parsed.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
