package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"IntelVault/internal/config"
	"IntelVault/internal/ports"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient implements ports.Completer over the Messages API.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg config.ProviderConfig) *AnthropicClient {
	return &AnthropicClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CompleteJSON sends one user turn and parses the text blocks as JSON.
func (c *AnthropicClient) CompleteJSON(ctx context.Context, system string, user any, maxTokens int) (map[string]any, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("anthropic: %w", ports.ErrUnavailable)
	}

	prompt, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic prompt: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"system":      system + " Always return strict JSON only.",
		"messages": []map[string]string{
			{"role": "user", "content": string(prompt)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := doJSON(c.httpClient, req, "anthropic", &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ExtractJSON(text.String())
}
