package memory

import (
	"sync"

	"gocv.io/x/gocv"

	"toonloop/internal/opencv/safe"
)

// PoolKey identifies buffers that are interchangeable for reuse.
type PoolKey struct {
	Rows    int
	Cols    int
	MatType gocv.MatType
}

// Pool recycles Mats between ticks so steady-state processing allocates
// nothing once the working set of sizes has been seen. Reused buffers are
// returned with stale contents; every consumer overwrites its destination
// in full.
type Pool struct {
	mats      map[PoolKey][]*safe.Mat
	maxPerKey int
	hits      int64
	misses    int64
	mu        sync.Mutex
}

func NewPool(maxPerKey int) *Pool {
	return &Pool{
		mats:      make(map[PoolKey][]*safe.Mat),
		maxPerKey: maxPerKey,
	}
}

// Get returns a pooled Mat of the requested shape or allocates a new one.
func (p *Pool) Get(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	key := PoolKey{Rows: rows, Cols: cols, MatType: matType}

	p.mu.Lock()
	if stack := p.mats[key]; len(stack) > 0 {
		mat := stack[len(stack)-1]
		p.mats[key] = stack[:len(stack)-1]

		if mat.IsValid() && !mat.Empty() {
			p.hits++
			p.mu.Unlock()
			return mat, nil
		}
		mat.Close()
	}
	p.misses++
	p.mu.Unlock()

	return safe.NewMat(rows, cols, matType)
}

// Put offers a Mat back for reuse. Returns false when the Mat was closed
// instead (unusable, or the bucket is full).
func (p *Pool) Put(mat *safe.Mat) bool {
	if mat == nil || !mat.IsValid() || mat.Empty() {
		return false
	}

	key := PoolKey{Rows: mat.Rows(), Cols: mat.Cols(), MatType: mat.Type()}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.mats[key]) >= p.maxPerKey {
		mat.Close()
		return false
	}

	p.mats[key] = append(p.mats[key], mat)
	return true
}

// Stats reports reuse counters since creation.
func (p *Pool) Stats() (hits, misses int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Cleanup closes every pooled Mat and reports how many were released.
func (p *Pool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for key, stack := range p.mats {
		for _, mat := range stack {
			mat.Close()
			count++
		}
		delete(p.mats, key)
	}
	return count
}
