package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"IntelVault/internal/domain"
	"IntelVault/internal/normalize"
	"IntelVault/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
	userAgent    = "IntelVault/1.0"
	day          = 24 * time.Hour
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner crawls category listings and returns papers announced within
// the requested window (Options["days"], default 1) ending on req.Day.
type ArxivScanner struct {
	client   *http.Client
	pageSize int
	logger   *slog.Logger
}

var _ scanner.Scanner = (*ArxivScanner)(nil)

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ArxivScanner{client: client, pageSize: 200, logger: logger}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks through each category URL, paging until entries older than
// the window show up.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	last := req.Day.UTC().Truncate(day)
	first := last.Add(-time.Duration(req.IntOption(scanner.OptionDays, 1)-1) * day)
	results := make([]domain.Candidate, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			page, shouldContinue := a.extractCandidates(doc, first, last, req.SiteName, cat.Name)
			for _, c := range page {
				if _, ok := seen[c.ExternalID]; ok {
					continue
				}
				seen[c.ExternalID] = struct{}{}
				results = append(results, c)
			}

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
		a.logger.Debug("arxiv category scanned", "site", req.SiteName, "category", cat.Name, "total", len(results))
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractCandidates(doc *goquery.Document, first, last time.Time, siteName, category string) ([]domain.Candidate, bool) {
	var (
		collected    []domain.Candidate
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		c, ok := parseEntry(dt, dd, siteName, category)
		if !ok {
			return true
		}

		entryDay := c.PublishedAt.UTC().Truncate(day)
		if entryDay.Before(first) {
			continueScan = false
			return false
		}
		if !entryDay.After(last) {
			collected = append(collected, c)
		}
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

// parseEntry reads one dt/dd pair. Entries without a parseable date are
// dropped, since their position in the window is unknown.
func parseEntry(dt, dd *goquery.Selection, siteName, category string) (domain.Candidate, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href == "" || id == "" {
		return domain.Candidate{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First()
	summary := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract.Text()), "Abstract:"))
	// Code links in abstracts are anchors or bare URLs.
	abstractHTML, _ := abstract.Html()
	_, links := normalize.PlainText(abstractHTML)

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	publishedAt, err := time.Parse("2 Jan 2006", dateExpr.FindString(dateText))
	if err != nil {
		return domain.Candidate{}, false
	}

	source := siteName
	if category != "" {
		source = fmt.Sprintf("%s/%s", siteName, category)
	}

	return domain.Candidate{
		Title:       title,
		URL:         href,
		SourceType:  domain.SourceArxiv,
		SourceName:  source,
		PublishedAt: publishedAt,
		ContentType: "paper",
		Description: summary,
		Links:       links,
		ExternalID:  id,
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
