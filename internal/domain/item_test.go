package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteMergeAcrossGates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		escalate bool
		gate2    Route
		want     Route
	}{
		{name: "neither escalates", gate2: RouteWeekly, want: RouteWeekly},
		{name: "gate 1 escalates below the alert threshold", escalate: true, gate2: RouteWeekly, want: RouteAlert},
		{name: "gate 2 escalates alone", gate2: RouteAlert, want: RouteAlert},
		{name: "both escalate", escalate: true, gate2: RouteAlert, want: RouteAlert},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			it := NewItem("20260101-000000-000001", Candidate{Title: "t", URL: "https://x"})
			it.ApplyGate1(Gate1Scores{ValidityConf: 0.9, Credibility: 0.9, Novelty: 0.9}, tc.escalate)
			it.ApplyGate2(Gate2Scores{Relevance: 0.6, Actionability: 0.6, Overall: 0.585}, tc.gate2)
			assert.Equal(t, tc.want, it.Route)
			assert.Equal(t, 0.585, it.Scores.Overall)
		})
	}
}
