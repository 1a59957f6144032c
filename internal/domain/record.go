package domain

import "time"

// VectorRecord is the persisted unit in pgvector: a chunk together with its
// embedding vector. Records are created during indexing, read during
// retrieval, and never mutated in place.
type VectorRecord struct {
	ID        string    `json:"id"          db:"id"`
	Source    string    `json:"source"      db:"source"`
	Page      int       `json:"page"        db:"page"`
	Index     int       `json:"chunk_index" db:"chunk_index"`
	Content   string    `json:"content"     db:"content"`
	Vector    []float32 `json:"-"           db:"embedding"`
	CreatedAt time.Time `json:"created_at"  db:"created_at"`
}

// Chunk rebuilds the chunk view of a stored record.
func (r VectorRecord) Chunk() Chunk {
	return Chunk{Source: r.Source, Page: r.Page, Index: r.Index, Text: r.Content}
}

// RetrievalResult is a retrieved record with its similarity score, most
// similar first. Transient, never persisted.
type RetrievalResult struct {
	VectorRecord
	Similarity float64 `json:"similarity"`
}

// Answer is the result of a chat call: the generated text plus the chunks it
// was grounded on.
type Answer struct {
	Text    string            `json:"answer"`
	Sources []RetrievalResult `json:"sources,omitempty"`
}

// CollectionInfo is a read-only diagnostic over a collection.
type CollectionInfo struct {
	Name        string `json:"collection_name"`
	Dimension   int    `json:"dimension"`
	Metric      string `json:"metric"`
	RecordCount int    `json:"record_count"`
}

// IndexReport summarizes an indexing run.
type IndexReport struct {
	Source        string `json:"source"`
	Pages         int    `json:"pages"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Skipped       bool   `json:"skipped"`
}
