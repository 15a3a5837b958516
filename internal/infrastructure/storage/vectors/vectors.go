// Package vectors stores the embedding corpus as a NumPy matrix
// (embeddings.npy) with a row-aligned metadata file (meta.jsonl), and answers
// cosine top-k queries over it.
package vectors

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/fsutil"
)

const (
	EmbeddingsFile = "embeddings.npy"
	MetaFile       = "meta.jsonl"

	epsilon = 1e-9
)

// ErrMismatch reports a corpus whose row count differs from its metadata.
var ErrMismatch = errors.New("embedding rows and metadata differ")

// Corpus is an in-memory copy of the exported embeddings.
type Corpus struct {
	vectors [][]float32
	norms   []float64
	meta    []domain.ChunkMeta
	dim     int
}

// Hit is one search result.
type Hit struct {
	Row   int
	Score float64
	Meta  domain.ChunkMeta
}

// Len returns the number of rows.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.vectors)
}

// Dim returns the vector dimension.
func (c *Corpus) Dim() int {
	if c == nil {
		return 0
	}
	return c.dim
}

// Meta returns the metadata of row i.
func (c *Corpus) Meta(i int) domain.ChunkMeta {
	return c.meta[i]
}

// Write stores records under dir: the matrix first, then the metadata, both
// replaced atomically.
func Write(dir string, records []domain.EmbeddingRecord) error {
	rows := make([][]float32, len(records))
	var meta bytes.Buffer
	enc := json.NewEncoder(&meta)
	enc.SetEscapeHTML(false)
	for i, r := range records {
		rows[i] = r.Vector
		if err := enc.Encode(r.Meta); err != nil {
			return fmt.Errorf("encode meta row %d: %w", i, err)
		}
	}

	data, err := encodeNpy(rows)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, EmbeddingsFile), data, 0o644); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, MetaFile), meta.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Load reads the corpus from dir. Missing files yield an empty corpus. A
// corpus whose row count disagrees with its metadata is returned empty
// together with ErrMismatch.
func Load(dir string) (*Corpus, error) {
	empty := &Corpus{}

	f, err := os.Open(filepath.Join(dir, EmbeddingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return empty, fmt.Errorf("stat embeddings: %w", err)
	}
	rows, dim, err := decodeNpy(f, info.Size())
	if err != nil {
		return empty, err
	}

	meta, err := readMeta(filepath.Join(dir, MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}
	if len(rows) != len(meta) {
		return empty, fmt.Errorf("%w: %d vectors, %d metadata lines", ErrMismatch, len(rows), len(meta))
	}

	return New(rows, meta, dim), nil
}

// New builds a corpus from aligned rows and metadata.
func New(rows [][]float32, meta []domain.ChunkMeta, dim int) *Corpus {
	norms := make([]float64, len(rows))
	for i, r := range rows {
		norms[i] = norm(r)
	}
	return &Corpus{vectors: rows, norms: norms, meta: meta, dim: dim}
}

func readMeta(path string) ([]domain.ChunkMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []domain.ChunkMeta
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m domain.ChunkMeta
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, fmt.Errorf("decode meta line %d: %w", len(out)+1, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan meta: %w", err)
	}
	return out, nil
}

// Search returns the k rows most similar to query. Equal scores keep row order.
func (c *Corpus) Search(query []float32, k int) []Hit {
	if c.Len() == 0 || k <= 0 {
		return nil
	}
	qn := norm(query)
	hits := make([]Hit, 0, len(c.vectors))
	for i, v := range c.vectors {
		hits = append(hits, Hit{Row: i, Score: cosine(query, qn, v, c.norms[i]), Meta: c.meta[i]})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Cosine is the similarity used by Search.
func Cosine(a, b []float32) float64 {
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / ((an + epsilon) * (bn + epsilon))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
