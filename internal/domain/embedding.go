package domain

// Chunk types produced by the exporter.
const (
	ChunkHighlights = "highlights"
	ChunkClaims     = "claims"
	ChunkSummary    = "summary"
)

// ChunkMeta describes one exported text chunk and, once embedded, one row
// of the vector corpus.
type ChunkMeta struct {
	ID      string   `json:"id"`
	ItemID  string   `json:"item_id"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Date    string   `json:"date"`
	Path    string   `json:"path"`
	Pillars []string `json:"pillars"`
}

// EmbeddingRecord pairs a vector with the metadata at the same row offset.
type EmbeddingRecord struct {
	Vector []float32
	Meta   ChunkMeta
}
