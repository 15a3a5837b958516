package recommend

import (
	"fmt"
	"strings"

	"IntelVault/internal/infrastructure/storage/fsutil"
)

// Feedback decisions.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

const (
	feedbackStep  = 0.02
	multiplierMin = -0.2
	multiplierMax = 0.5
)

// Weights are the linear blend coefficients of the combined score.
type Weights struct {
	Sim           float64 `json:"sim"`
	Relevance     float64 `json:"relevance"`
	Actionability float64 `json:"actionability"`
	Credibility   float64 `json:"credibility"`
}

// DefaultWeights favours similarity, then relevance.
func DefaultWeights() Weights {
	return Weights{Sim: 0.5, Relevance: 0.3, Actionability: 0.2, Credibility: 0.1}
}

// Policy is the feedback-tuned ranking policy stored in policy.json. It
// only affects ranking; gate scores are never rewritten.
type Policy struct {
	ScoreWeights      Weights            `json:"score_weights"`
	PillarMultipliers map[string]float64 `json:"pillars_multipliers"`
}

// DefaultPolicy has default weights and no pillar multipliers.
func DefaultPolicy() Policy {
	return Policy{ScoreWeights: DefaultWeights(), PillarMultipliers: map[string]float64{}}
}

// LoadPolicy reads path, falling back to DefaultPolicy when the file is
// missing or unreadable.
func LoadPolicy(path string) Policy {
	p := DefaultPolicy()
	if path == "" || !fsutil.ReadJSON(path, &p) {
		return DefaultPolicy()
	}
	if p.ScoreWeights == (Weights{}) {
		p.ScoreWeights = DefaultWeights()
	}
	if p.PillarMultipliers == nil {
		p.PillarMultipliers = map[string]float64{}
	}
	return p
}

// Save writes the policy atomically.
func (p Policy) Save(path string) error {
	return fsutil.WriteJSON(path, p)
}

// Multiplier sums the policy multipliers of pillars.
func (p Policy) Multiplier(pillars []string) float64 {
	var sum float64
	for _, name := range pillars {
		sum += p.PillarMultipliers[strings.ToLower(name)]
	}
	return sum
}

// Apply nudges the policy toward (accept) or away from (reject) an item with
// the given pillars.
func (p *Policy) Apply(decision string, pillars []string) error {
	var delta float64
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case DecisionAccept:
		delta = feedbackStep
	case DecisionReject:
		delta = -feedbackStep
	default:
		return fmt.Errorf("unknown feedback decision %q", decision)
	}

	w := &p.ScoreWeights
	w.Relevance = clamp(w.Relevance+delta, 0, 1)
	w.Actionability = clamp(w.Actionability+delta, 0, 1)
	if total := w.Sim + w.Relevance + w.Actionability + w.Credibility; total > 0 {
		w.Sim /= total
		w.Relevance /= total
		w.Actionability /= total
		w.Credibility /= total
	}

	if p.PillarMultipliers == nil {
		p.PillarMultipliers = map[string]float64{}
	}
	for _, name := range pillars {
		key := strings.ToLower(name)
		p.PillarMultipliers[key] = clamp(p.PillarMultipliers[key]+delta, multiplierMin, multiplierMax)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
