package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"IntelVault/internal/domain"
)

// PlainText converts an HTML description into whitespace-normalised text
// and collects the anchors it links to. Plain text passes through.
func PlainText(raw string) (string, domain.Links) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.Links{}
	}
	if !strings.Contains(trimmed, "<") {
		return collapse(trimmed), ExtractLinks(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return collapse(trimmed), ExtractLinks(trimmed)
	}
	doc.Find("script, style, noscript").Remove()

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			hrefs = append(hrefs, href)
		}
	})

	var parts []string
	doc.Find("p, li, h1, h2, h3, h4, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	text := strings.Join(parts, "\n")
	if text == "" {
		text = collapse(doc.Text())
	}

	links := linksFrom(hrefs).Merge(ExtractLinks(text))
	return text, links
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
