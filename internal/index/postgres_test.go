package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/testutil"
)

const testDims = 768

func unitVector(hot int) []float32 {
	v := make([]float32, testDims)
	v[hot] = 1
	return v
}

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	idx := index.NewPostgres(db.Pool, testDims, log.NewNop())

	t.Run("empty search", func(t *testing.T) {
		hits, err := idx.Search(ctx, unitVector(0), 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		err := idx.Insert(ctx, []index.Entry{{ChunkID: "bad", DocumentID: "d0", Vector: []float32{1, 0}}})
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)

		_, err = idx.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)
	})

	t.Run("insert and search ordering", func(t *testing.T) {
		require.NoError(t, idx.Insert(ctx, []index.Entry{
			{ChunkID: "c-far", DocumentID: "d1", Vector: unitVector(1)},
			{ChunkID: "c-near", DocumentID: "d1", Vector: unitVector(0)},
		}))

		hits, err := idx.Search(ctx, unitVector(0), 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "c-near", hits[0].ChunkID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("delete by document", func(t *testing.T) {
		require.NoError(t, idx.Insert(ctx, []index.Entry{
			{ChunkID: "c-other", DocumentID: "d2", Vector: unitVector(2)},
		}))

		require.NoError(t, idx.Delete(ctx, "d1"))

		n, err := idx.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, idx.Reset(ctx))
		n, err := idx.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
