package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Collection: "documents",
		Dimension:  testDimension,
	}, nil)
	require.NoError(t, err)
	return store
}

// unitVector returns a normalized vector pointing mostly along one axis.
func unitVector(axis int) []float32 {
	v := make([]float32, testDimension)
	v[axis] = 1
	return v
}

func testRecord(documentID string, chunkIndex int, vector []float32) Record {
	return Record{
		PointID:    documentID + "-" + string(rune('a'+chunkIndex)),
		Vector:     vector,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Text:       "chunk text",
		Filename:   "doc.txt",
		UploadedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestChromemUpsertAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx))

	t.Run("empty records rejected", func(t *testing.T) {
		assert.ErrorIs(t, store.Upsert(ctx, nil), ErrEmptyRecords)
	})

	t.Run("wrong dimension rejected", func(t *testing.T) {
		bad := testRecord("doc-1", 0, make([]float32, testDimension+1))
		var mismatch *SchemaMismatchError
		assert.ErrorAs(t, store.Upsert(ctx, []Record{bad}), &mismatch)
	})

	t.Run("upsert is idempotent on point id", func(t *testing.T) {
		rec := testRecord("doc-1", 0, unitVector(0))
		require.NoError(t, store.Upsert(ctx, []Record{rec}))
		require.NoError(t, store.Upsert(ctx, []Record{rec}))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestChromemSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx))

	records := []Record{
		testRecord("doc-1", 0, unitVector(0)),
		testRecord("doc-1", 1, unitVector(1)),
		testRecord("doc-2", 0, unitVector(2)),
	}
	require.NoError(t, store.Upsert(ctx, records))

	t.Run("most similar first", func(t *testing.T) {
		results, err := store.Search(ctx, unitVector(1), 3, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "doc-1", results[0].DocumentID)
		assert.Equal(t, 1, results[0].ChunkIndex)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("payload round-trips", func(t *testing.T) {
		results, err := store.Search(ctx, unitVector(0), 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, "chunk text", results[0].Text)
		assert.Equal(t, "doc.txt", results[0].Filename)
		assert.Equal(t, time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC), results[0].UploadedAt)
	})

	t.Run("k larger than stored count returns all", func(t *testing.T) {
		results, err := store.Search(ctx, unitVector(0), 50, nil)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("document filter", func(t *testing.T) {
		results, err := store.Search(ctx, unitVector(0), 10, &Filter{DocumentID: "doc-2"})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, "doc-2", r.DocumentID)
		}
	})

	t.Run("wrong query dimension", func(t *testing.T) {
		_, err := store.Search(ctx, make([]float32, testDimension-1), 3, nil)
		var mismatch *SchemaMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("empty store returns nothing", func(t *testing.T) {
		empty := newTestStore(t)
		results, err := empty.Search(ctx, unitVector(0), 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestChromemDeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx))

	require.NoError(t, store.Upsert(ctx, []Record{
		testRecord("doc-1", 0, unitVector(0)),
		testRecord("doc-1", 1, unitVector(1)),
		testRecord("doc-2", 0, unitVector(2)),
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.Search(ctx, unitVector(0), 10, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "doc-2", r.DocumentID)
	}

	t.Run("unknown document is a no-op", func(t *testing.T) {
		assert.NoError(t, store.DeleteDocument(ctx, "missing"))
	})

	t.Run("empty id rejected", func(t *testing.T) {
		assert.Error(t, store.DeleteDocument(ctx, ""))
	})
}

func TestChromemConfigValidate(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Collection: "documents"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
