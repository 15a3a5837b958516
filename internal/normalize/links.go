package normalize

import (
	"regexp"
	"sort"
	"strings"

	"IntelVault/internal/domain"
)

var (
	githubRepoExpr = regexp.MustCompile(`https?://(?:www\.)?github\.com/([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+)`)
	urlExpr        = regexp.MustCompile(`(?i)https?://[\w./?#%&=+\-:]+`)
)

// ExtractLinks finds URLs in free text and the GitHub repositories among them.
func ExtractLinks(text string) domain.Links {
	if text == "" {
		return domain.Links{}
	}
	return linksFrom(urlExpr.FindAllString(text, -1))
}

func linksFrom(urls []string) domain.Links {
	urlSet := map[string]struct{}{}
	repoSet := map[string]struct{}{}
	for _, u := range urls {
		u = strings.TrimRight(u, ".,:")
		if u == "" {
			continue
		}
		urlSet[u] = struct{}{}
		if m := githubRepoExpr.FindStringSubmatch(u); m != nil {
			repoSet[strings.TrimSuffix(m[1], ".git")] = struct{}{}
		}
	}
	return domain.Links{Repos: sortedKeys(repoSet), URLs: sortedKeys(urlSet)}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
