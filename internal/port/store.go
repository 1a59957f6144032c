package port

import (
	"context"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
)

// VectorStore persists vector records in a named collection and answers
// similarity queries over it. All operations are scoped to one collection;
// the distance metric is fixed when the collection is created.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist yet.
	// Calling it against an existing collection is a no-op, unless the
	// dimension or metric disagree with what was recorded at creation,
	// which fails with ErrStorage.
	EnsureCollection(ctx context.Context) error

	// Add inserts records. Safe to call repeatedly for incremental indexing;
	// it does not deduplicate by content. A vector whose length differs from
	// the collection dimension is rejected with ErrStorage before any SQL.
	Add(ctx context.Context, records []domain.VectorRecord) error

	// SimilaritySearch returns the k records closest to vector under the
	// collection's metric, most similar first, ties broken by insertion
	// order. Fewer than k stored records returns all of them; an empty
	// collection returns an empty result and no error.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error)

	// CountBySource returns how many records were indexed from the given
	// source path.
	CountBySource(ctx context.Context, source string) (int, error)

	// DeleteBySource removes every record indexed from the given source
	// path and reports how many were removed.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Info returns a read-only diagnostic of the collection.
	Info(ctx context.Context) (domain.CollectionInfo, error)
}
