package usecase

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/vault"
	"IntelVault/internal/recommend"
)

func TestFeedbackNudgesItemPillars(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v, err := vault.New(filepath.Join(root, "vault"), nil)
	require.NoError(t, err)
	id, _, err := v.CreateItem(fixedNow)
	require.NoError(t, err)
	_, err = v.InitItem(id, candidate(0, fixedNow))
	require.NoError(t, err)
	require.NoError(t, v.UpdateFields(id, domain.ItemPatch{Pillars: []string{"Agents"}}))

	policyPath := filepath.Join(root, "policy.json")
	fb := NewFeedback(v, policyPath, nil)

	policy, err := fb.Apply(id, recommend.DecisionAccept)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, policy.PillarMultipliers["agents"], 1e-9)

	saved := recommend.LoadPolicy(policyPath)
	assert.Equal(t, policy, saved)
	w := saved.ScoreWeights
	assert.InDelta(t, 1.0, w.Sim+w.Relevance+w.Actionability+w.Credibility, 1e-9)

	_, err = fb.Apply(id, recommend.DecisionReject)
	require.NoError(t, err)
	assert.InDelta(t, 0, recommend.LoadPolicy(policyPath).PillarMultipliers["agents"], 1e-9)
}

func TestFeedbackRejectsUnknownDecision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v, err := vault.New(filepath.Join(root, "vault"), nil)
	require.NoError(t, err)
	policyPath := filepath.Join(root, "policy.json")

	_, err = NewFeedback(v, policyPath, nil).Apply("missing", "maybe")
	require.Error(t, err)
	assert.NoFileExists(t, policyPath)
}
