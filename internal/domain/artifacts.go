package domain

import (
	"strconv"
	"strings"
)

// Claim is a key claim extracted from a candidate.
type Claim struct {
	Claim   string `json:"claim"`
	Pointer string `json:"pointer,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Highlights is the normalised text artifact consumed by both gates.
type Highlights struct {
	SummaryBullets []string `json:"summary_bullets"`
	Keyphrases     []string `json:"keyphrases"`
	KeyClaims      []Claim  `json:"key_claims"`
	YouTubeQuotes  []string `json:"youtube_quotes"`
}

// Verdict is the validity gate decision.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Citation points at the evidence backing a verdict.
type Citation struct {
	Source  string `json:"source"`
	Pointer string `json:"pointer,omitempty"`
	Quote   string `json:"quote,omitempty"`
}

// Evidence is the validity gate output written to evidence.json.
type Evidence struct {
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
	Notes      string     `json:"notes,omitempty"`
}

// Segment is a transcript slice.
type Segment struct {
	TStart float64 `json:"t_start"`
	TEnd   float64 `json:"t_end"`
	Text   string  `json:"text"`
}

// Transcript is written to transcript.json.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Fallback bool      `json:"fallback"`
}

// EvidenceSnippets are the small excerpts handed to the validity model.
type EvidenceSnippets struct {
	Transcript []TranscriptQuote `json:"transcript"`
	Source     []SourceQuote     `json:"source"`
	Repo       []RepoQuote       `json:"repo"`
}

type TranscriptQuote struct {
	T     float64 `json:"t"`
	Quote string  `json:"quote"`
}

type SourceQuote struct {
	Quote string `json:"quote"`
}

type RepoQuote struct {
	File  string `json:"file"`
	Quote string `json:"quote"`
}

// Summary is the structured personalization narrative.
type Summary struct {
	TLDR       []string `json:"tldr"`
	Why        []string `json:"why"`
	Tradeoffs  []string `json:"tradeoffs"`
	ApplySteps []string `json:"apply_steps"`
	Prompts    []string `json:"prompts"`
}

// Empty reports whether the narrative carries no content at all.
func (s Summary) Empty() bool {
	return len(nonBlank(s.TLDR)) == 0 &&
		len(nonBlank(s.Why)) == 0 &&
		len(nonBlank(s.Tradeoffs)) == 0 &&
		len(nonBlank(s.ApplySteps)) == 0 &&
		len(nonBlank(s.Prompts)) == 0
}

// Markdown renders the summary for presentation (summary.md, digests).
func (s Summary) Markdown() string {
	var b strings.Builder
	section := func(title string, lines []string, format func(int, string) string) {
		lines = nonBlank(lines)
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title)
		b.WriteString("\n")
		for i, line := range lines {
			b.WriteString(format(i, line))
			b.WriteString("\n")
		}
	}
	plain := func(_ int, s string) string { return s }
	bullet := func(_ int, s string) string { return "- " + strings.TrimPrefix(s, "- ") }
	numbered := func(i int, s string) string { return strconv.Itoa(i+1) + ") " + s }

	section("TL;DR", s.TLDR, plain)
	section("Why it matters", s.Why, bullet)
	section("Trade-offs", s.Tradeoffs, bullet)
	section("Apply steps", s.ApplySteps, numbered)
	section("Prompt snippets", s.Prompts, bullet)
	return b.String()
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
