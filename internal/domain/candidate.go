package domain

import (
	"strings"
	"time"
)

// Source types recognised by the UID derivation and the transcript stage.
const (
	SourceYouTube = "youtube"
	SourceGitHub  = "github"
	SourceArxiv   = "arxiv"
	SourceVendor  = "vendor"
)

// Content types with scoring significance.
const (
	ContentRelease     = "release"
	ContentApplication = "application"
)

// Links groups references extracted from a candidate's description.
type Links struct {
	Repos []string `json:"repos,omitempty"`
	URLs  []string `json:"urls,omitempty"`
}

// Empty reports whether no link was extracted.
func (l Links) Empty() bool {
	return len(l.Repos) == 0 && len(l.URLs) == 0
}

// Merge returns the sorted union of both link sets.
func (l Links) Merge(other Links) Links {
	return Links{
		Repos: unionSorted(l.Repos, other.Repos),
		URLs:  unionSorted(l.URLs, other.URLs),
	}
}

// Candidate is a fetched but not yet persisted content reference.
type Candidate struct {
	Title           string
	URL             string
	SourceType      string
	SourceName      string
	PublishedAt     time.Time
	ContentType     string
	Description     string
	Links           Links
	// DurationSeconds is the video length, 0 when unknown. The feed and arXiv
	// scanners leave it 0 since YouTube channel feeds do not carry a length;
	// it is set by scanners that query video metadata. Paid transcription
	// never runs without it.
	DurationSeconds int
	// ExternalID is the source-native identifier (arXiv id, video id), when known.
	ExternalID string
}

// UID derives the source-stable identity key used for dedup alongside the URL.
func (c Candidate) UID() string {
	switch {
	case c.SourceType == SourceYouTube:
		if vid := YouTubeVideoID(c.URL); vid != "" {
			return "yt:" + vid
		}
	case c.SourceType == SourceGitHub && c.ContentType == ContentApplication:
		return "repo:" + c.URL
	case c.SourceType == SourceArxiv && c.ExternalID != "":
		return "arxiv:" + strings.TrimPrefix(c.ExternalID, "arXiv:")
	}
	return c.URL
}

// PublishedString renders the publish timestamp the way it is stored in the vault and index.
func (c Candidate) PublishedString() string {
	if c.PublishedAt.IsZero() {
		return ""
	}
	return c.PublishedAt.UTC().Format(time.RFC3339)
}

// YouTubeVideoID extracts the id from watch?v= and youtu.be links.
func YouTubeVideoID(url string) string {
	if i := strings.Index(url, "watch?v="); i >= 0 {
		id := url[i+len("watch?v="):]
		if j := strings.IndexByte(id, '&'); j >= 0 {
			id = id[:j]
		}
		return id
	}
	if i := strings.Index(url, "youtu.be/"); i >= 0 {
		id := url[i+len("youtu.be/"):]
		if j := strings.IndexByte(id, '?'); j >= 0 {
			id = id[:j]
		}
		return id
	}
	return ""
}
