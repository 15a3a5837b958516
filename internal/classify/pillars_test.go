package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"IntelVault/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New([]domain.Pillar{
		{Name: "Agents", Keywords: []string{"agent", "tool use"}},
		{Name: "AI UI/UX", Keywords: []string{"tailwind", "shadcn"}},
		{Name: "Evals", Keywords: []string{"benchmark"}},
		{Name: "Infra", Keywords: []string{"cloudflare"}},
		{Name: "Empty"},
	})

	assert.Equal(t, []string{"Agents"}, c.Classify("Building an Agent loop", nil))
	assert.Equal(t, []string{"Agents", "Evals"}, c.Classify("agent notes", []string{"Benchmark"}),
		"key phrase matches come after text matches")
	assert.Equal(t, []string{"Agents", "AI UI/UX", "Evals"},
		c.Classify("agent with shadcn, a benchmark and cloudflare", nil), "capped at three")
	assert.Empty(t, c.Classify("", nil))
}
