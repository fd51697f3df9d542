package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"toonloop/internal/opencv/memory"
	"toonloop/internal/opencv/safe"
)

func TestPoolReusesReturnedMat(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()

	first, err := pool.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	require.True(t, pool.Put(first))

	second, err := pool.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer pool.Put(second)

	assert.Equal(t, first.ID(), second.ID(), "same shape must hand back the pooled buffer")

	hits, misses := pool.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestPoolShapeIsPartOfTheKey(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()

	small, err := pool.Get(8, 8, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	require.True(t, pool.Put(small))

	large, err := pool.Get(32, 32, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer pool.Put(large)

	assert.NotEqual(t, small.ID(), large.ID())
	assert.Equal(t, 32, large.Rows())
}

func TestPoolFullBucketClosesMat(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(0)

	m, err := safe.NewMat(8, 8, gocv.MatTypeCV8UC1)
	require.NoError(t, err)

	assert.False(t, pool.Put(m))
	assert.False(t, m.IsValid(), "a declined Mat must be closed, not leaked")
}

func TestPoolRejectsUnusableMat(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()

	assert.False(t, pool.Put(nil))

	m, err := safe.NewMat(8, 8, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	m.Close()
	assert.False(t, pool.Put(m))
}

func TestPoolCleanupClosesEverything(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)

	var pooled []*safe.Mat
	for i := 0; i < 3; i++ {
		m, err := pool.Get(8+i, 8+i, gocv.MatTypeCV8UC1)
		require.NoError(t, err)
		pooled = append(pooled, m)
	}
	for _, m := range pooled {
		require.True(t, pool.Put(m))
	}

	assert.Equal(t, 3, pool.Cleanup())
	for _, m := range pooled {
		assert.False(t, m.IsValid())
	}
	assert.Zero(t, pool.Cleanup())
}

func TestScopeReleaseReturnsToPool(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()

	scope := pool.NewScope()
	m, err := scope.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	scope.Release()

	assert.True(t, m.IsValid(), "released scratch goes back to the pool, still usable")

	reused, err := pool.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer pool.Put(reused)
	assert.Equal(t, m.ID(), reused.ID())
}

func TestScopeDetachTransfersOwnership(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(0) // zero capacity: anything Put is closed

	scope := pool.NewScope()
	kept, err := scope.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	scrapped, err := scope.Get(16, 16, gocv.MatTypeCV8UC3)
	require.NoError(t, err)

	scope.Detach(kept)
	scope.Release()

	assert.True(t, kept.IsValid(), "detached Mat must survive scope release")
	assert.False(t, scrapped.IsValid())
	kept.Close()
}

func TestScopeTrackAdoptsExternalMat(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(0)
	scope := pool.NewScope()

	m, err := safe.NewMat(8, 8, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	assert.Same(t, m, scope.Track(m))

	scope.Release()
	assert.False(t, m.IsValid())
}

func TestScopeReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(1)
	defer pool.Cleanup()

	scope := pool.NewScope()
	_, err := scope.Get(8, 8, gocv.MatTypeCV8UC1)
	require.NoError(t, err)

	scope.Release()
	scope.Release()

	hits, misses := pool.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)
}
