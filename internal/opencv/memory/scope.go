package memory

import (
	"gocv.io/x/gocv"

	"toonloop/internal/opencv/safe"
)

// Scope tracks every scratch Mat created during one unit of work and hands
// all of them back to the pool when the work ends. A single deferred
// Release covers success, early return and fallback paths alike, which
// bounds peak memory per tick regardless of which branch ran.
//
// Scopes are not safe for concurrent use; each belongs to exactly one tick.
type Scope struct {
	pool *Pool
	mats []*safe.Mat
}

func (p *Pool) NewScope() *Scope {
	return &Scope{pool: p}
}

// Get allocates (or reuses) a Mat owned by this scope.
func (s *Scope) Get(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	mat, err := s.pool.Get(rows, cols, matType)
	if err != nil {
		return nil, err
	}
	s.mats = append(s.mats, mat)
	return mat, nil
}

// Track adopts an externally created Mat into the scope.
func (s *Scope) Track(mat *safe.Mat) *safe.Mat {
	if mat != nil {
		s.mats = append(s.mats, mat)
	}
	return mat
}

// Detach removes a Mat from the scope without releasing it, transferring
// ownership to the caller. Used for the one buffer that outlives the tick.
func (s *Scope) Detach(mat *safe.Mat) *safe.Mat {
	for i, m := range s.mats {
		if m == mat {
			s.mats = append(s.mats[:i], s.mats[i+1:]...)
			break
		}
	}
	return mat
}

// Release returns every tracked Mat to the pool (closing those the pool
// declines) and empties the scope. Safe to call more than once.
func (s *Scope) Release() {
	for _, mat := range s.mats {
		s.pool.Put(mat)
	}
	s.mats = s.mats[:0]
}
