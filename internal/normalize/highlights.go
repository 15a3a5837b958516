// Package normalize turns candidates into highlights without calling a model.
package normalize

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
)

// DefaultKeywords are always reported as key phrases when present.
var DefaultKeywords = []string{
	"Claude", "Claude Code", "OpenAI", "GPT", "Next.js", "Vercel",
	"Cloudflare", "Cursor", "Agents", "UI", "Tailwind", "Radix",
	"Shadcn", "Release", "Benchmark", "SOTA",
}

const maxKeyphrases = 5

var capsExpr = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9\-/+]{2,}(?:\s+[A-Z][a-zA-Z0-9\-/+]{2,})*)\b`)

// Builder is the heuristic highlights builder.
type Builder struct {
	keywords []string
}

var _ ports.HighlightBuilder = (*Builder)(nil)

// NewBuilder uses DefaultKeywords when keywords is empty.
func NewBuilder(keywords []string) *Builder {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return &Builder{keywords: keywords}
}

// Build never fails; the error is part of the port for model-backed builders.
func (b *Builder) Build(_ context.Context, c domain.Candidate, _ bool) (domain.Highlights, error) {
	desc, _ := PlainText(c.Description)

	source := c.SourceName
	if source == "" {
		source = c.SourceType
	}
	bullets := []string{"Source: " + source, "Title: " + c.Title}
	switch {
	case c.ContentType == domain.ContentRelease:
		bullets = append(bullets, "Type: Release notes")
	case c.SourceType == domain.SourceYouTube:
		bullets = append(bullets, "Type: Video (talk/tutorial)")
	case c.ContentType != "":
		bullets = append(bullets, "Type: "+c.ContentType)
	default:
		bullets = append(bullets, "Type: post")
	}
	if preview := truncate(strings.Join(firstSentences(desc, 2), " "), 240); preview != "" {
		bullets = append(bullets, "Context: "+preview)
	}

	claim := domain.Claim{Claim: "Potential best-practice or tutorial", Pointer: c.URL, Type: "tutorial"}
	if strings.Contains(c.ContentType, domain.ContentRelease) {
		claim = domain.Claim{Claim: "New release announced", Pointer: c.URL, Type: domain.ContentRelease}
	}

	return domain.Highlights{
		SummaryBullets: bullets,
		Keyphrases:     b.Keyphrases(c.Title + "\n" + desc),
		KeyClaims:      []domain.Claim{claim},
		YouTubeQuotes:  []string{},
	}, nil
}

// Keyphrases returns known keywords found in text, topped up with
// capitalised phrases, at most five.
func (b *Builder) Keyphrases(text string) []string {
	if text == "" {
		return []string{}
	}
	lower := strings.ToLower(text)
	found := make([]string, 0, maxKeyphrases)
	for _, k := range b.keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			found = append(found, k)
		}
	}
	for _, m := range capsExpr.FindAllString(text, -1) {
		if len(found) >= maxKeyphrases {
			break
		}
		if !containsString(found, m) {
			found = append(found, m)
		}
	}
	if len(found) > maxKeyphrases {
		found = found[:maxKeyphrases]
	}
	return found
}

// firstSentences splits on terminal punctuation followed by whitespace.
func firstSentences(text string, n int) []string {
	text = strings.TrimSpace(text)
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes) && len(out) < n; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				out = append(out, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if len(out) < n {
		if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
