// Package ml talks to embedding services.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"IntelVault/internal/config"
	"IntelVault/internal/ports"
)

// Client calls an OpenAI-compatible /embeddings endpoint. Single-text
// requests (recommendation queries, novelty checks) are cached.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
	cache    *lru.Cache[string, []float32]
}

var _ ports.Embedder = (*Client)(nil)

// NewClient creates a reusable HTTP client. A non-positive cacheSize
// disables the query cache.
func NewClient(cfg config.EmbeddingsConfig) (*Client, error) {
	c := &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Embed returns one vector per text in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("embeddings: %w", ports.ErrUnavailable)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) == 1 && c.cache != nil {
		if v, ok := c.cache.Get(texts[0]); ok {
			return [][]float32{slices.Clone(v)}, nil
		}
	}

	payload := map[string]any{
		"model": c.model,
		"input": texts,
	}
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if len(texts) == 1 && c.cache != nil {
		c.cache.Add(texts[0], slices.Clone(out[0]))
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
