package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

const testCollectionID = "4f5b7a52-9c31-4c1b-9a93-0a4f2f6f2d11"

func newTestStore(t *testing.T) (*VectorStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	vs, err := NewVectorStore(NewPostgresStoreFromDB(db), "docs_pdf", 3, MetricCosine)
	require.NoError(t, err)
	return vs, mock
}

func collectionRow(dimension int, metric string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "dimension", "metric"}).
		AddRow(testCollectionID, dimension, metric)
}

func TestNewVectorStoreValidatesConfig(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	pg := NewPostgresStoreFromDB(db)

	_, err = NewVectorStore(pg, "docs", 0, MetricCosine)
	assert.True(t, errors.Is(err, port.ErrConfig))

	_, err = NewVectorStore(pg, "docs", 3, "euclidean")
	assert.True(t, errors.Is(err, port.ErrConfig))

	_, err = NewVectorStore(pg, "bad name;drop", 3, MetricCosine)
	assert.True(t, errors.Is(err, port.ErrConfig))
}

func TestEnsureCollectionCreatesOnce(t *testing.T) {
	vs, mock := newTestStore(t)

	// First call: collection absent, insert + index + re-lookup.
	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "dimension", "metric"}))
	mock.ExpectExec(`INSERT INTO rag_collections`).
		WithArgs(sqlmock.AnyArg(), "docs_pdf", 3, MetricCosine).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS rag_embeddings_docs_pdf_hnsw`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))

	require.NoError(t, vs.EnsureCollection(context.Background()))

	// Second call: collection exists, lookup only, no insert.
	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))

	require.NoError(t, vs.EnsureCollection(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCollectionRejectsDimensionDrift(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(1536, MetricCosine))

	err := vs.EnsureCollection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRejectsDimensionMismatchBeforeSQL(t *testing.T) {
	vs, mock := newTestStore(t)

	err := vs.Add(context.Background(), []domain.VectorRecord{
		{Source: "doc.pdf", Index: 0, Content: "x", Vector: []float32{1, 2}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL expected for rejected input")
}

func TestAddInsertsInOneTransaction(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))
	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO rag_embeddings`)
	mock.ExpectExec(`INSERT INTO rag_embeddings`).
		WithArgs(testCollectionID, "doc.pdf", 1, 0, "first", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO rag_embeddings`).
		WithArgs(testCollectionID, "doc.pdf", 1, 1, "second", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := vs.Add(context.Background(), []domain.VectorRecord{
		{Source: "doc.pdf", Page: 1, Index: 0, Content: "first", Vector: []float32{1, 2, 3}},
		{Source: "doc.pdf", Page: 1, Index: 1, Content: "second", Vector: []float32{4, 5, 6}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilaritySearchOrdersByDistanceThenInsertion(t *testing.T) {
	vs, mock := newTestStore(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))
	// The tie-break on id is part of the statement, making repeated calls
	// against the same state deterministic.
	mock.ExpectQuery(`ORDER BY embedding <=> \$1, id`).
		WithArgs(sqlmock.AnyArg(), testCollectionID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "page", "chunk_index", "content", "created_at", "similarity"}).
			AddRow("1", "doc.pdf", 1, 0, "closest", now, 0.93).
			AddRow("2", "doc.pdf", 2, 5, "second", now, 0.81))

	results, err := vs.SimilaritySearch(context.Background(), []float32{1, 2, 3}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "closest", results[0].Content)
	assert.InDelta(t, 0.93, results[0].Similarity, 1e-9)
	assert.Equal(t, 2, results[1].Page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilaritySearchFewerThanK(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))
	mock.ExpectQuery(`ORDER BY embedding <=> \$1, id`).
		WithArgs(sqlmock.AnyArg(), testCollectionID, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "page", "chunk_index", "content", "created_at", "similarity"}).
			AddRow("1", "doc.pdf", 1, 0, "only one", time.Now(), 0.5))

	results, err := vs.SimilaritySearch(context.Background(), []float32{1, 2, 3}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSimilaritySearchMissingCollectionIsEmptyNotError(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "dimension", "metric"}))

	results, err := vs.SimilaritySearch(context.Background(), []float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSimilaritySearchRejectsInvalidInput(t *testing.T) {
	vs, _ := newTestStore(t)

	_, err := vs.SimilaritySearch(context.Background(), []float32{1, 2, 3}, 0)
	assert.True(t, errors.Is(err, port.ErrConfig))

	_, err = vs.SimilaritySearch(context.Background(), []float32{1, 2}, 3)
	assert.True(t, errors.Is(err, port.ErrStorage))
}

func TestDeleteBySourceReportsCount(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))
	mock.ExpectExec(`DELETE FROM rag_embeddings`).
		WithArgs(testCollectionID, "doc.pdf").
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := vs.DeleteBySource(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 7, removed)
}

func TestInfoReportsCollectionState(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(collectionRow(3, MetricCosine))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rag_embeddings`).
		WithArgs(testCollectionID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	info, err := vs.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionInfo{Name: "docs_pdf", Dimension: 3, Metric: MetricCosine, RecordCount: 42}, info)
}

func TestInfoOnMissingCollection(t *testing.T) {
	vs, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, dimension, metric FROM rag_collections`).
		WithArgs("docs_pdf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "dimension", "metric"}))

	_, err := vs.Info(context.Background())
	assert.True(t, errors.Is(err, port.ErrNotFound))
}
