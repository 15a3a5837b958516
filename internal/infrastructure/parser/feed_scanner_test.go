package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
	"IntelVault/internal/scanner"
)

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Vendor Blog</title>
<item>
  <title>Shipping agents</title>
  <link>https://vendor.example/agents</link>
  <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
  <description>&lt;p&gt;See &lt;a href="https://github.com/acme/agent-kit"&gt;the kit&lt;/a&gt;.&lt;/p&gt;</description>
</item>
<item>
  <title>No link</title>
  <description>dropped</description>
</item>
<item>
  <title>Second post</title>
  <link>https://vendor.example/second</link>
</item>
</channel></rss>`

const youtubeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/" xmlns:yt="http://www.youtube.com/xml/schemas/2015">
  <title>Channel</title>
  <entry>
    <id>yt:video:abc123</id>
    <title>Claude Code tips</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
    <published>2025-11-07T12:00:00+00:00</published>
    <media:group>
      <media:title>Claude Code tips</media:title>
      <media:description>Repo: https://github.com/acme/tips</media:description>
    </media:group>
  </entry>
</feed>`

func TestFeedScannerVendorFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			_, _ = w.Write([]byte(rssFeed))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sc := NewFeedScanner(srv.Client(), nil)
	got, err := sc.Scan(context.Background(), scanner.Request{
		SiteName: "blogs",
		Categories: []scanner.Category{
			{Name: "Vendor", URL: srv.URL + "/rss"},
			{Name: "Dead", URL: srv.URL + "/missing"},
		},
	})
	require.NoError(t, err, "one broken feed does not fail the site")
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "Shipping agents", first.Title)
	assert.Equal(t, domain.SourceVendor, first.SourceType)
	assert.Equal(t, "Vendor", first.SourceName)
	assert.Equal(t, "blog", first.ContentType)
	assert.Equal(t, time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, []string{"acme/agent-kit"}, first.Links.Repos)
	assert.True(t, got[1].PublishedAt.IsZero())
}

func TestFeedScannerYouTubeFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(youtubeFeed))
	}))
	defer srv.Close()

	got, err := NewFeedScanner(srv.Client(), nil).Scan(context.Background(), scanner.Request{
		SiteName:   "yt",
		Categories: []scanner.Category{{URL: srv.URL}},
		Options:    map[string]string{scanner.OptionSourceType: domain.SourceYouTube},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Channel", c.SourceName, "feed title stands in for a missing category name")
	assert.Equal(t, "talk", c.ContentType)
	assert.Equal(t, "abc123", c.ExternalID)
	assert.Equal(t, "yt:abc123", c.UID())
	assert.Contains(t, c.Description, "github.com/acme/tips")
	assert.Equal(t, []string{"acme/tips"}, c.Links.Repos)
}

func TestFeedScannerAllFeedsFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewFeedScanner(srv.Client(), nil).Scan(context.Background(), scanner.Request{
		SiteName:   "dead",
		Categories: []scanner.Category{{Name: "x", URL: srv.URL}},
	})
	assert.Error(t, err)
}

func TestFeedScannerMaxItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	got, err := NewFeedScanner(srv.Client(), nil).Scan(context.Background(), scanner.Request{
		SiteName:   "blogs",
		Categories: []scanner.Category{{Name: "Vendor", URL: srv.URL}},
		Options:    map[string]string{scanner.OptionMaxItems: "1", scanner.OptionSourceType: domain.SourceGitHub},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ContentRelease, got[0].ContentType)
}
