package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	links := ExtractLinks("Code at https://github.com/org/tool.git and docs https://docs.example.com/a?b=1. Also https://github.com/org/tool/tree/main")
	assert.Equal(t, []string{"org/tool"}, links.Repos)
	assert.Equal(t, []string{
		"https://docs.example.com/a?b=1",
		"https://github.com/org/tool.git",
		"https://github.com/org/tool/tree/main",
	}, links.URLs)

	assert.True(t, ExtractLinks("").Empty())
	assert.True(t, ExtractLinks("no links here").Empty())
}

func TestPlainTextStripsHTML(t *testing.T) {
	t.Parallel()

	raw := `<div><p>First   paragraph with <a href="https://github.com/acme/agent">repo</a>.</p>` +
		`<script>alert(1)</script><ul><li>Item one</li><li>Item two</li></ul></div>`
	text, links := PlainText(raw)
	assert.Equal(t, "First paragraph with repo.\nItem one\nItem two", text)
	assert.Equal(t, []string{"acme/agent"}, links.Repos)
	assert.NotContains(t, text, "alert")

	text, links = PlainText("  plain   text https://x.dev  ")
	assert.Equal(t, "plain text https://x.dev", text)
	assert.Equal(t, []string{"https://x.dev"}, links.URLs)
}

func TestBuildHighlightsRelease(t *testing.T) {
	t.Parallel()

	b := NewBuilder(nil)
	c := domain.Candidate{
		Title:       "Claude Code ships Agents SDK",
		URL:         "https://anthropic.com/news/sdk",
		SourceName:  "Anthropic Blog",
		ContentType: domain.ContentRelease,
		Description: "The SDK is out! It adds hooks. A third sentence follows.",
	}
	h, err := b.Build(context.Background(), c, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Source: Anthropic Blog",
		"Title: Claude Code ships Agents SDK",
		"Type: Release notes",
		"Context: The SDK is out! It adds hooks.",
	}, h.SummaryBullets)
	require.Len(t, h.KeyClaims, 1)
	assert.Equal(t, "New release announced", h.KeyClaims[0].Claim)
	assert.Equal(t, c.URL, h.KeyClaims[0].Pointer)
	assert.Contains(t, h.Keyphrases, "Claude Code")
	assert.Contains(t, h.Keyphrases, "Agents")
	assert.LessOrEqual(t, len(h.Keyphrases), 5)
	assert.NotNil(t, h.YouTubeQuotes)
}

func TestBuildHighlightsVideo(t *testing.T) {
	t.Parallel()

	h, err := NewBuilder(nil).Build(context.Background(), domain.Candidate{
		Title:      "talk",
		SourceType: domain.SourceYouTube,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Source: youtube", "Title: talk", "Type: Video (talk/tutorial)"}, h.SummaryBullets)
	assert.Equal(t, "Potential best-practice or tutorial", h.KeyClaims[0].Claim)
	assert.Empty(t, h.Keyphrases)
}

func TestKeyphrasesCustomKeywords(t *testing.T) {
	t.Parallel()

	b := NewBuilder([]string{"pgvector"})
	assert.Equal(t, []string{"pgvector", "Postgres Extension"}, b.Keyphrases("new pgvector release for the Postgres Extension ecosystem"))
}
