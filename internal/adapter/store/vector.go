package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// Metric names accepted for a collection. The metric is recorded when the
// collection is created and may never change afterwards.
const (
	MetricCosine       = "cosine"
	MetricInnerProduct = "inner_product"
)

// VectorStore handles pgvector operations scoped to one collection.
// It implements port.VectorStore.
type VectorStore struct {
	store     *PostgresStore
	name      string
	dimension int
	metric    string

	mu           sync.Mutex
	collectionID string // cached after first lookup
}

// NewVectorStore creates a vector store over the named collection.
func NewVectorStore(store *PostgresStore, name string, dimension int, metric string) (*VectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", port.ErrConfig, dimension)
	}
	switch metric {
	case MetricCosine, MetricInnerProduct:
	default:
		return nil, fmt.Errorf("%w: unknown distance metric %q", port.ErrConfig, metric)
	}
	if !collectionNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid collection name %q", port.ErrConfig, name)
	}
	return &VectorStore{store: store, name: name, dimension: dimension, metric: metric}, nil
}

// EnsureCollection creates the collection if absent. Creating an existing
// collection is a no-op; an existing collection with a different dimension
// or metric is a storage error, never a silent override.
func (v *VectorStore) EnsureCollection(ctx context.Context) error {
	id, dim, metric, err := v.lookup(ctx)
	if err == nil {
		if dim != v.dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, configured %d",
				port.ErrStorage, v.name, dim, v.dimension)
		}
		if metric != v.metric {
			return fmt.Errorf("%w: collection %q uses metric %q, configured %q",
				port.ErrStorage, v.name, metric, v.metric)
		}
		v.setCollectionID(id)
		return nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return err
	}

	// Concurrent creators race here; ON CONFLICT makes the loser a no-op
	// and the re-lookup below picks up whichever row won.
	_, err = v.store.db.ExecContext(ctx,
		`INSERT INTO rag_collections (id, name, dimension, metric)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), v.name, v.dimension, v.metric,
	)
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", port.ErrStorage, err)
	}

	if err := v.ensureSearchIndex(ctx); err != nil {
		return err
	}

	id, dim, metric, err = v.lookup(ctx)
	if err != nil {
		return err
	}
	if dim != v.dimension || metric != v.metric {
		return fmt.Errorf("%w: collection %q was created concurrently with dimension %d and metric %q",
			port.ErrStorage, v.name, dim, metric)
	}
	v.setCollectionID(id)
	return nil
}

// ensureSearchIndex builds a partial HNSW index for this collection. The
// shared embeddings table has no column-level dimension, so the index casts
// to the collection's fixed dimension.
func (v *VectorStore) ensureSearchIndex(ctx context.Context) error {
	opclass := "vector_cosine_ops"
	if v.metric == MetricInnerProduct {
		opclass = "vector_ip_ops"
	}
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON rag_embeddings
		 USING hnsw ((embedding::vector(%d)) %s)
		 WHERE collection_id = (SELECT id FROM rag_collections WHERE name = '%s')`,
		v.indexName(), v.dimension, opclass, v.name,
	)
	if _, err := v.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: create search index: %v", port.ErrStorage, err)
	}
	return nil
}

var (
	collectionNameRe   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	indexNameSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)
)

func (v *VectorStore) indexName() string {
	return "rag_embeddings_" + indexNameSanitizer.ReplaceAllString(v.name, "_") + "_hnsw"
}

// Add inserts records in one transaction with a prepared statement.
// A single-row insert is the atomicity unit; arrival order is not
// semantically significant.
func (v *VectorStore) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != v.dimension {
			return fmt.Errorf("%w: vector for chunk %d of %s has dimension %d, collection expects %d",
				port.ErrStorage, r.Index, r.Source, len(r.Vector), v.dimension)
		}
	}

	collectionID, err := v.collectionIDFor(ctx)
	if err != nil {
		return err
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", port.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rag_embeddings (collection_id, source, page, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", port.ErrStorage, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			collectionID, r.Source, r.Page, r.Index, r.Content, pgvector.NewVector(r.Vector),
		); err != nil {
			return fmt.Errorf("%w: insert record: %v", port.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", port.ErrStorage, err)
	}
	return nil
}

// SimilaritySearch returns the k records closest to vector, most similar
// first. Ties are broken by insertion order so repeated calls against the
// same collection state return the same ordering. A missing or empty
// collection yields an empty result, not an error.
func (v *VectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be a positive integer, got %d", port.ErrConfig, k)
	}
	if len(vector) != v.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d",
			port.ErrStorage, len(vector), v.dimension)
	}

	collectionID, err := v.collectionIDFor(ctx)
	if errors.Is(err, port.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// <=> is cosine distance, <#> negative inner product. Both order
	// ascending for "most similar first"; similarity is normalized so
	// callers always see "higher is better".
	distance, similarity := "embedding <=> $1", "1 - (embedding <=> $1)"
	if v.metric == MetricInnerProduct {
		distance, similarity = "embedding <#> $1", "-(embedding <#> $1)"
	}

	query := fmt.Sprintf(
		`SELECT id, source, page, chunk_index, content, created_at, %s AS similarity
		 FROM rag_embeddings
		 WHERE collection_id = $2
		 ORDER BY %s, id
		 LIMIT $3`, similarity, distance)

	rows, err := v.store.db.QueryContext(ctx, query, pgvector.NewVector(vector), collectionID, k)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", port.ErrStorage, err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(&r.ID, &r.Source, &r.Page, &r.Index, &r.Content, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan result: %v", port.ErrStorage, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", port.ErrStorage, err)
	}
	return results, nil
}

// CountBySource returns how many records were indexed from the given source.
func (v *VectorStore) CountBySource(ctx context.Context, source string) (int, error) {
	collectionID, err := v.collectionIDFor(ctx)
	if errors.Is(err, port.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var count int
	err = v.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rag_embeddings WHERE collection_id = $1 AND source = $2`,
		collectionID, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count by source: %v", port.ErrStorage, err)
	}
	return count, nil
}

// DeleteBySource removes every record indexed from the given source.
func (v *VectorStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	collectionID, err := v.collectionIDFor(ctx)
	if errors.Is(err, port.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	res, err := v.store.db.ExecContext(ctx,
		`DELETE FROM rag_embeddings WHERE collection_id = $1 AND source = $2`,
		collectionID, source,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by source: %v", port.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Info returns a read-only diagnostic of the collection.
func (v *VectorStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: v.name, Dimension: v.dimension, Metric: v.metric}

	collectionID, err := v.collectionIDFor(ctx)
	if errors.Is(err, port.ErrNotFound) {
		return info, fmt.Errorf("%w: collection %q does not exist", port.ErrNotFound, v.name)
	}
	if err != nil {
		return info, err
	}

	err = v.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rag_embeddings WHERE collection_id = $1`,
		collectionID,
	).Scan(&info.RecordCount)
	if err != nil {
		return info, fmt.Errorf("%w: collection info: %v", port.ErrStorage, err)
	}
	return info, nil
}

func (v *VectorStore) setCollectionID(id string) {
	v.mu.Lock()
	v.collectionID = id
	v.mu.Unlock()
}

// collectionIDFor resolves and caches the collection row id.
func (v *VectorStore) collectionIDFor(ctx context.Context) (string, error) {
	v.mu.Lock()
	cached := v.collectionID
	v.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	id, _, _, err := v.lookup(ctx)
	if err != nil {
		return "", err
	}
	v.setCollectionID(id)
	return id, nil
}

func (v *VectorStore) lookup(ctx context.Context) (id string, dimension int, metric string, err error) {
	err = v.store.db.QueryRowContext(ctx,
		`SELECT id, dimension, metric FROM rag_collections WHERE name = $1`, v.name,
	).Scan(&id, &dimension, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, "", fmt.Errorf("%w: collection %q", port.ErrNotFound, v.name)
	}
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: lookup collection: %v", port.ErrStorage, err)
	}
	return id, dimension, metric, nil
}
