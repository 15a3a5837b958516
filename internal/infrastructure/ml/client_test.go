package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/config"
	"IntelVault/internal/infrastructure/storage/vectors"
	"IntelVault/internal/ports"
)

func TestClientEmbedOrdersByIndexAndCaches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "emb", req.Model)
		if len(req.Input) == 2 {
			_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingsConfig{Endpoint: srv.URL, Model: "emb", APIKey: "k", CacheSize: 4})
	require.NoError(t, err)

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	for range 3 {
		vecs, err = c.Embed(context.Background(), []string{"query"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.5, 0.5}}, vecs)
	}
	assert.EqualValues(t, 2, calls.Load(), "repeated single-text queries hit the cache")
}

func TestClientCacheIsolatesCallers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingsConfig{Endpoint: srv.URL, Model: "emb", APIKey: "k", CacheSize: 4})
	require.NoError(t, err)

	first, err := c.Embed(context.Background(), []string{"query"})
	require.NoError(t, err)
	first[0][0] = 99

	second, err := c.Embed(context.Background(), []string{"query"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, second[0])
	second[0][1] = -1

	third, err := c.Embed(context.Background(), []string{"query"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, third[0])
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientCountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.EmbeddingsConfig{Endpoint: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestClientWithoutKey(t *testing.T) {
	t.Parallel()

	c, err := NewClient(config.EmbeddingsConfig{Endpoint: "http://unused"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ports.ErrUnavailable)
}

func TestHashEmbedder(t *testing.T) {
	t.Parallel()

	h := NewHashEmbedder(64)
	vecs, err := h.Embed(context.Background(), []string{
		"Claude Code agents",
		"claude code, AGENTS!",
		"kubernetes operators",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Len(t, vecs[0], 64)

	assert.InDelta(t, 1.0, vectors.Cosine(vecs[0], vecs[1]), 1e-6, "case and punctuation are ignored")
	assert.Less(t, vectors.Cosine(vecs[0], vecs[2]), 0.9)
	assert.Zero(t, vectors.Cosine(vecs[0], vecs[3]))
}
