package vectors

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IntelVault/internal/domain"
)

func record(id string, v ...float32) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{Vector: v, Meta: domain.ChunkMeta{ID: id + "#highlights", ItemID: id, Type: domain.ChunkHighlights}}
}

func TestNpyLayout(t *testing.T) {
	t.Parallel()

	data, err := encodeNpy([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x93NUMPY\x01\x00")))

	headerLen := int(data[8]) | int(data[9])<<8
	assert.Zero(t, (10+headerLen)%64, "data is 64-byte aligned")
	header := string(data[10 : 10+headerLen])
	assert.Contains(t, header, "'descr': '<f4'")
	assert.Contains(t, header, "'shape': (2, 3)")
	assert.Equal(t, byte('\n'), header[len(header)-1])
	assert.Len(t, data, 10+headerLen+2*3*4)

	rows, dim, err := decodeNpy(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, rows)
}

func TestNpyRejectsRaggedRows(t *testing.T) {
	t.Parallel()

	_, err := encodeNpy([][]float32{{1, 2}, {3}})
	require.Error(t, err)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Write(dir, []domain.EmbeddingRecord{record("a", 1, 0), record("b", 0, 1)}))

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Dim())
	assert.Equal(t, "b", c.Meta(1).ItemID)
}

func TestEmptyCorpusShape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Write(dir, nil))

	data, err := os.ReadFile(filepath.Join(dir, EmbeddingsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "'shape': (0, 1)")

	meta, err := os.ReadFile(filepath.Join(dir, MetaFile))
	require.NoError(t, err)
	assert.Empty(t, meta)

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Nil(t, c.Search([]float32{1}, 3))
}

func TestMissingCorpusIsEmpty(t *testing.T) {
	t.Parallel()

	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestMismatchMeansAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Write(dir, []domain.EmbeddingRecord{record("a", 1, 0), record("b", 0, 1)}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), []byte(`{"item_id":"a"}`+"\n"), 0o644))

	c, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
	assert.Zero(t, c.Len())
}

func TestSearchOrdersByCosineWithStableTies(t *testing.T) {
	t.Parallel()

	c := New(
		[][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 1}},
		[]domain.ChunkMeta{{ItemID: "up"}, {ItemID: "x1"}, {ItemID: "x2"}, {ItemID: "diag"}},
		2,
	)
	hits := c.Search([]float32{3, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "x1", hits[0].Meta.ItemID)
	assert.Equal(t, "x2", hits[1].Meta.ItemID, "ties keep row order")
	assert.Equal(t, "diag", hits[2].Meta.ItemID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, hits[2].Score, 1e-3)
}

func TestCosineZeroVector(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
}

// rawNpy builds a version 1.0 file with the given shape text and data length.
func rawNpy(shape string, dataBytes int) []byte {
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': " + shape + ", }\n"
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	buf.WriteByte(byte(len(header)))
	buf.WriteByte(byte(len(header) >> 8))
	buf.WriteString(header)
	buf.Write(make([]byte, dataBytes))
	return buf.Bytes()
}

func TestNpyRejectsShapesLargerThanData(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"overflowing count": rawNpy("(99999999999999999999, 4)", 16),
		"huge rows":         rawNpy("(1000000000, 4)", 16),
		"huge product":      rawNpy("(4294967296, 4294967296)", 16),
		"truncated data":    rawNpy("(2, 3)", 12),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := decodeNpy(bytes.NewReader(data), int64(len(data)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadNpy)
		})
	}

	exact := rawNpy("(2, 3)", 24)
	rows, dim, err := decodeNpy(bytes.NewReader(exact), int64(len(exact)))
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Len(t, rows, 2)
}

func TestCorruptEmbeddingsLoadEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EmbeddingsFile), rawNpy("(99999999999999999999, 4)", 16), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), []byte(`{"item_id":"a"}`+"\n"), 0o644))

	c, err := Load(dir)
	require.ErrorIs(t, err, ErrBadNpy)
	assert.Zero(t, c.Len())
}
