package gate

import (
	"context"
	"log/slog"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
)

// Fixed blend weights for the overall score.
const (
	weightRelevance     = 0.35
	weightCredibility   = 0.25
	weightActionability = 0.25
	weightBaseline      = 0.15

	credibilityProxy = 0.6
	baseline         = 0.5

	alertThreshold = 0.7
)

const gate2System = "You are a senior AI engineer. Given highlights and a user profile, produce a concise, actionable brief. " +
	"Return JSON with numeric relevance, actionability, overall (0..1) and the lists tldr (1-2 lines), why (3 bullets), " +
	"tradeoffs (2 bullets), apply_steps (3-5 steps, repo-aware if links are present) and prompts (2-3 prompt snippets)."

// Gate2Result is the personalization gate outcome.
type Gate2Result struct {
	Summary  domain.Summary
	Scores   domain.Gate2Scores
	Route    domain.Route
	Fallback FallbackReason
}

// Gate2 tailors a candidate to the consumer profile.
type Gate2 struct {
	completer ports.Completer
	logger    *slog.Logger
}

// NewGate2 builds the personalization gate.
func NewGate2(completer ports.Completer, logger *slog.Logger) *Gate2 {
	return &Gate2{completer: completer, logger: nopLogger(logger)}
}

// Overall blends relevance and actionability with constant proxies.
func Overall(relevance, actionability float64) float64 {
	return weightRelevance*relevance +
		weightCredibility*credibilityProxy +
		weightActionability*actionability +
		weightBaseline*baseline
}

// RouteFor maps an overall score to a route.
func RouteFor(overall float64) domain.Route {
	if overall >= alertThreshold {
		return domain.RouteAlert
	}
	return domain.RouteWeekly
}

// Evaluate scores c against profile.
func (g *Gate2) Evaluate(ctx context.Context, h domain.Highlights, profile domain.Profile, c domain.Candidate, dryRun bool) Gate2Result {
	relevance := 0.45
	joined := strings.ToLower(strings.Join(h.Keyphrases, " "))
	for _, p := range profile.Priorities {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(joined, p) {
			relevance = 0.6
			break
		}
	}
	actionability := 0.45
	if len(h.KeyClaims) > 0 {
		actionability = 0.6
	}
	heuristic := domain.Gate2Scores{
		Relevance:     relevance,
		Actionability: actionability,
		Overall:       Overall(relevance, actionability),
	}

	user := map[string]any{
		"item": map[string]any{
			"title":  c.Title,
			"url":    c.URL,
			"source": c.SourceName,
			"type":   c.ContentType,
			"links":  c.Links,
		},
		"profile":    profile,
		"highlights": h,
	}
	resp, reason := complete(ctx, g.completer, g.logger, "gate2", gate2System, user, 600, dryRun)
	if reason != FallbackNone {
		return result(heuristicSummary(h, profile, heuristic), heuristic, reason)
	}

	summary := domain.Summary{
		TLDR:       lines(resp, "tldr"),
		Why:        lines(resp, "why"),
		Tradeoffs:  lines(resp, "tradeoffs"),
		ApplySteps: lines(resp, "apply_steps"),
		Prompts:    lines(resp, "prompts"),
	}
	if summary.Empty() {
		return result(minimalSummary(h), heuristic, FallbackMalformed)
	}

	scores := heuristic
	if v, ok := number(resp, "relevance"); ok {
		scores.Relevance = domain.Clamp01(v)
	}
	if v, ok := number(resp, "actionability"); ok {
		scores.Actionability = domain.Clamp01(v)
	}
	if v, ok := number(resp, "overall"); ok {
		scores.Overall = domain.Clamp01(v)
	} else {
		scores.Overall = Overall(scores.Relevance, scores.Actionability)
	}
	return result(summary, scores, FallbackNone)
}

func result(s domain.Summary, scores domain.Gate2Scores, reason FallbackReason) Gate2Result {
	scores.Relevance = domain.Clamp01(scores.Relevance)
	scores.Actionability = domain.Clamp01(scores.Actionability)
	scores.Overall = domain.Clamp01(scores.Overall)
	return Gate2Result{Summary: s, Scores: scores, Route: RouteFor(scores.Overall), Fallback: reason}
}

func heuristicSummary(h domain.Highlights, profile domain.Profile, s domain.Gate2Scores) domain.Summary {
	why := []string{"Potentially relevant to AI app workflows."}
	if s.Relevance >= 0.6 {
		why[0] = "Aligns with profile priorities."
	}
	if s.Actionability >= 0.6 {
		why = append(why, "Contains actionable steps or claimed improvements.")
	} else {
		why = append(why, "May require deeper review for applicability.")
	}

	stack := "our"
	if len(profile.Stack) > 0 {
		stack = "our " + strings.Join(profile.Stack, "/")
	}
	return domain.Summary{
		TLDR:      firstN(h.SummaryBullets, 3),
		Why:       why,
		Tradeoffs: []string{"Requires validation on our stack.", "Risk of churn if ecosystem moves."},
		ApplySteps: []string{
			"Review linked repo/docs (if any) and check compatibility.",
			"Prototype in a scratch branch; add tests or snapshot diffs.",
			"If results are positive, open PR with minimal patch and rationale.",
		},
		Prompts: []string{
			"Claude: Summarize applicability of this insight to " + stack + " stack; propose a minimal patch.",
			"OpenAI: Generate a helper implementing the described best practice with tests.",
		},
	}
}

func minimalSummary(h domain.Highlights) domain.Summary {
	return domain.Summary{
		TLDR:       firstN(h.SummaryBullets, 3),
		Why:        []string{"Potentially valuable.", "Requires validation.", "Low risk to prototype."},
		ApplySteps: []string{"Review links.", "Prototype in branch.", "Open PR."},
	}
}
