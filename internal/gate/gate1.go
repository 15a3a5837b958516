package gate

import (
	"context"
	"log/slog"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
)

// DefaultAuthorities are source names trusted as primary publishers.
var DefaultAuthorities = []string{"anthropic", "openai", "vercel", "cloudflare"}

const gate1System = "You are a rigorous AI research validator. Validate claims using only the provided evidence. " +
	"Return JSON with: verdict ('pass'|'fail'), confidence (0..1), citations [{source, pointer, quote}] and notes."

// Gate1Result is the validity gate outcome.
type Gate1Result struct {
	Evidence domain.Evidence
	Scores   domain.Gate1Scores
	Escalate bool
	Fallback FallbackReason
}

// Gate1 assigns credibility, novelty and validity confidence.
type Gate1 struct {
	completer   ports.Completer
	authorities []string
	logger      *slog.Logger
}

// NewGate1 builds the validity gate. An empty authority list uses DefaultAuthorities.
func NewGate1(completer ports.Completer, authorities []string, logger *slog.Logger) *Gate1 {
	if len(authorities) == 0 {
		authorities = DefaultAuthorities
	}
	lowered := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			lowered = append(lowered, a)
		}
	}
	return &Gate1{completer: completer, authorities: lowered, logger: nopLogger(logger)}
}

// ShouldAlert requires all three signals to be high.
func ShouldAlert(credibility, novelty, confidence float64) bool {
	return credibility >= 0.8 && novelty >= 0.7 && confidence >= 0.7
}

// Credibility is 0.8 for allow-listed sources, otherwise 0.5.
func (g *Gate1) Credibility(sourceName string) float64 {
	source := strings.ToLower(sourceName)
	for _, a := range g.authorities {
		if strings.Contains(source, a) {
			return 0.8
		}
	}
	return 0.5
}

// Evaluate scores c. The model only ever sees snippets, never raw sources.
func (g *Gate1) Evaluate(ctx context.Context, c domain.Candidate, h domain.Highlights, snippets domain.EvidenceSnippets, dryRun bool) Gate1Result {
	credibility := g.Credibility(c.SourceName)
	novelty := 0.5
	if c.ContentType == domain.ContentRelease {
		novelty = 0.7
	}
	confidence := 0.6
	if credibility >= 0.8 {
		confidence = 0.75
	}

	quote := ""
	if len(h.SummaryBullets) > 0 {
		quote = h.SummaryBullets[0]
	}
	res := Gate1Result{
		Evidence: domain.Evidence{
			Verdict:    domain.VerdictPass,
			Confidence: confidence,
			Citations:  []domain.Citation{{Source: c.URL, Pointer: c.URL, Quote: quote}},
			Notes:      "Heuristic baseline; no model refinement.",
		},
		Scores: domain.Gate1Scores{ValidityConf: confidence, Credibility: credibility, Novelty: novelty},
	}

	user := map[string]any{
		"item": map[string]any{
			"title":  c.Title,
			"url":    c.URL,
			"source": c.SourceName,
			"type":   c.ContentType,
		},
		"highlights": h,
		"evidence":   snippets,
	}
	resp, reason := complete(ctx, g.completer, g.logger, "gate1", gate1System, user, 400, dryRun)
	if reason == FallbackNone {
		if evidence, ok := parseEvidence(resp, confidence); ok {
			res.Evidence = evidence
			res.Scores.ValidityConf = evidence.Confidence
		} else {
			reason = FallbackMalformed
		}
	}
	res.Fallback = reason
	res.Escalate = ShouldAlert(res.Scores.Credibility, res.Scores.Novelty, res.Scores.ValidityConf)
	return res
}

// parseEvidence accepts a response carrying at least a verdict or a
// confidence. A missing confidence keeps the baseline.
func parseEvidence(resp map[string]any, baseline float64) (domain.Evidence, bool) {
	rawVerdict := strings.ToLower(text(resp, "verdict"))
	conf, hasConf := number(resp, "confidence")
	if rawVerdict == "" && !hasConf {
		return domain.Evidence{}, false
	}
	if !hasConf {
		conf = baseline
	}
	conf = domain.Clamp01(conf)

	var verdict domain.Verdict
	switch domain.Verdict(rawVerdict) {
	case domain.VerdictPass, domain.VerdictFail:
		verdict = domain.Verdict(rawVerdict)
	default:
		verdict = domain.VerdictFail
		if conf >= 0.5 {
			verdict = domain.VerdictPass
		}
	}

	ev := domain.Evidence{
		Verdict:    verdict,
		Confidence: conf,
		Citations:  []domain.Citation{},
		Notes:      text(resp, "notes"),
	}
	if list, ok := resp["citations"].([]any); ok {
		for _, raw := range list {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ev.Citations = append(ev.Citations, domain.Citation{
				Source:  text(m, "source"),
				Pointer: text(m, "pointer"),
				Quote:   text(m, "quote"),
			})
		}
	}
	return ev, true
}
