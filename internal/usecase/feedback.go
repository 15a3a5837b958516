package usecase

import (
	"fmt"
	"log/slog"

	"IntelVault/internal/domain"
	"IntelVault/internal/recommend"
)

// ItemLoader reads item.json.
type ItemLoader interface {
	LoadItem(id string) (domain.Item, bool)
}

// Feedback records accept/reject decisions into the ranking policy.
type Feedback struct {
	items      ItemLoader
	policyPath string
	logger     *slog.Logger
}

func NewFeedback(items ItemLoader, policyPath string, logger *slog.Logger) *Feedback {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Feedback{items: items, policyPath: policyPath, logger: logger}
}

// Apply nudges the policy for itemID and returns the saved policy. An
// unknown item still shifts the score weights, just no pillar multipliers.
func (f *Feedback) Apply(itemID, decision string) (recommend.Policy, error) {
	var pillars []string
	if item, ok := f.items.LoadItem(itemID); ok {
		pillars = item.Pillars
	} else {
		f.logger.Warn("feedback for unknown item", "item_id", itemID)
	}

	policy := recommend.LoadPolicy(f.policyPath)
	if err := policy.Apply(decision, pillars); err != nil {
		return policy, err
	}
	if err := policy.Save(f.policyPath); err != nil {
		return policy, fmt.Errorf("save policy: %w", err)
	}
	f.logger.Info("feedback recorded", "item_id", itemID, "decision", decision, "pillars", pillars)
	return policy, nil
}
