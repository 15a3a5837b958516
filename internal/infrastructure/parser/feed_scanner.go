package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"IntelVault/internal/domain"
	"IntelVault/internal/normalize"
	"IntelVault/internal/scanner"
)

const defaultFeedItems = 10

// FeedScanner reads RSS/Atom feeds: vendor blogs, YouTube channel feeds and
// GitHub release feeds. Options select the source type ("vendor" by
// default), the content type and the per-feed item cap.
type FeedScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client for gofeed.
func NewFeedScanner(client *http.Client, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FeedScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// Scan parses every category URL as a feed. A broken feed is logged and
// skipped so one dead blog does not hide the others.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	sourceType := req.Option(scanner.OptionSourceType, domain.SourceVendor)
	contentType := req.Option(scanner.OptionContentType, defaultContentType(sourceType))
	maxItems := req.IntOption(scanner.OptionMaxItems, defaultFeedItems)

	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = userAgent

	var out []domain.Candidate
	failed := 0
	for _, cat := range req.Categories {
		feed, err := parser.ParseURLWithContext(cat.URL, ctx)
		if err != nil {
			failed++
			f.logger.Warn("feed unavailable", "site", req.SiteName, "feed", cat.Name, "error", err)
			continue
		}

		source := cat.Name
		if source == "" {
			source = feed.Title
		}
		for i, item := range feed.Items {
			if i >= maxItems {
				break
			}
			if c, ok := feedCandidate(item, source, sourceType, contentType); ok {
				out = append(out, c)
			}
		}
	}
	if failed == len(req.Categories) {
		return nil, fmt.Errorf("all %d feeds of site %s failed", failed, req.SiteName)
	}
	return out, nil
}

func feedCandidate(item *gofeed.Item, source, sourceType, contentType string) (domain.Candidate, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return domain.Candidate{}, false
	}

	description := item.Description
	if description == "" {
		description = item.Content
	}
	if description == "" {
		description = mediaDescription(item)
	}
	_, links := normalize.PlainText(description)

	c := domain.Candidate{
		Title:       strings.TrimSpace(item.Title),
		URL:         link,
		SourceType:  sourceType,
		SourceName:  source,
		ContentType: contentType,
		Description: description,
		Links:       links,
	}
	switch {
	case item.PublishedParsed != nil:
		c.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		c.PublishedAt = item.UpdatedParsed.UTC()
	}
	if sourceType == domain.SourceYouTube {
		c.ExternalID = domain.YouTubeVideoID(link)
	}
	return c, true
}

// mediaDescription reads media:group/media:description, where YouTube
// channel feeds keep the video description.
func mediaDescription(item *gofeed.Item) string {
	groups := item.Extensions["media"]["group"]
	if len(groups) == 0 {
		return ""
	}
	desc := groups[0].Children["description"]
	if len(desc) == 0 {
		return ""
	}
	return desc[0].Value
}

func defaultContentType(sourceType string) string {
	switch sourceType {
	case domain.SourceYouTube:
		return "talk"
	case domain.SourceGitHub:
		return domain.ContentRelease
	default:
		return "blog"
	}
}
