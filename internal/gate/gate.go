// Package gate scores candidates in two stages: validity (Gate1) and
// personalization (Gate2). Both degrade to heuristics when the generative
// step is disabled, unavailable or returns something unusable, and report
// which of those happened.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"IntelVault/internal/ports"
)

// FallbackReason records why a gate used its heuristic path.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackDryRun      FallbackReason = "dry_run"
	FallbackUnavailable FallbackReason = "unavailable"
	FallbackError       FallbackReason = "error"
	FallbackMalformed   FallbackReason = "malformed"
)

// complete calls the completer and classifies failures. A nil response
// always comes with a non-empty reason.
func complete(ctx context.Context, completer ports.Completer, logger *slog.Logger, gate, system string, user any, maxTokens int, dryRun bool) (map[string]any, FallbackReason) {
	if dryRun {
		return nil, FallbackDryRun
	}
	if completer == nil {
		return nil, FallbackUnavailable
	}

	resp, err := completer.CompleteJSON(ctx, system, user, maxTokens)
	switch {
	case errors.Is(err, ports.ErrUnavailable):
		return nil, FallbackUnavailable
	case err != nil:
		logger.Warn("generative step failed, using heuristics", "gate", gate, "error", err)
		return nil, FallbackError
	case resp == nil:
		return nil, FallbackMalformed
	}
	return resp, FallbackNone
}

// number reads a numeric field that may arrive as a JSON number or a string.
func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func text(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// lines accepts either a list of strings or a newline separated string.
func lines(m map[string]any, key string) []string {
	var raw []string
	switch v := m[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, "\n")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstN(in []string, n int) []string {
	if len(in) > n {
		in = in[:n]
	}
	return append([]string(nil), in...)
}

func nopLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}
