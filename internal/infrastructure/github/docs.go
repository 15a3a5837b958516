// Package github fetches repository documents used as validity evidence.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when a repository has no such document.
var ErrNotFound = errors.New("document not found")

var changelogNames = []string{"CHANGELOG.md", "ChangeLog.md", "changelog.md", "CHANGES.md"}

// DocsClient reads README and CHANGELOG files through the contents API.
type DocsClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewDocsClient targets endpoint (https://api.github.com by default).
func NewDocsClient(endpoint, token string) *DocsClient {
	if endpoint == "" {
		endpoint = "https://api.github.com"
	}
	return &DocsClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Readme returns the decoded README of owner/repo.
func (c *DocsClient) Readme(ctx context.Context, repo string) (string, error) {
	return c.content(ctx, fmt.Sprintf("%s/repos/%s/readme", c.endpoint, repo))
}

// Changelog tries the common changelog file names in order.
func (c *DocsClient) Changelog(ctx context.Context, repo string) (string, error) {
	for _, name := range changelogNames {
		text, err := c.content(ctx, fmt.Sprintf("%s/repos/%s/contents/%s", c.endpoint, repo, name))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return text, err
	}
	return "", ErrNotFound
}

func (c *DocsClient) content(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("github returned %s", resp.Status)
	}

	var body struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Content == "" {
		return "", ErrNotFound
	}
	if body.Encoding != "" && body.Encoding != "base64" {
		return body.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}
