// Package classify assigns topic pillars by keyword matching.
package classify

import (
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
)

const maxPillars = 3

// Classifier matches pillar keywords against text first, then key phrases.
type Classifier struct {
	pillars []domain.Pillar
}

var _ ports.PillarClassifier = (*Classifier)(nil)

// New builds a classifier over the configured pillars, in order.
func New(pillars []domain.Pillar) *Classifier {
	return &Classifier{pillars: pillars}
}

// Classify returns at most three pillar names. Text matches rank ahead of
// key phrase matches.
func (c *Classifier) Classify(text string, keyphrases []string) []string {
	hits := make([]string, 0, maxPillars)
	lowered := strings.ToLower(text)
	for _, p := range c.pillars {
		if matches(lowered, p) {
			hits = append(hits, p.Name)
		}
	}

	kp := strings.ToLower(strings.Join(keyphrases, " "))
	for _, p := range c.pillars {
		if contains(hits, p.Name) {
			continue
		}
		if matches(kp, p) {
			hits = append(hits, p.Name)
		}
	}

	if len(hits) > maxPillars {
		hits = hits[:maxPillars]
	}
	return hits
}

func matches(text string, p domain.Pillar) bool {
	if p.Name == "" || text == "" {
		return false
	}
	for _, kw := range p.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
