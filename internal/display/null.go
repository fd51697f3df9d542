package display

import (
	"sync/atomic"

	"toonloop/internal/opencv/safe"
)

// Null discards frames while counting them. Used for headless runs.
type Null struct {
	presented uint64
}

func NewNull() *Null {
	return &Null{}
}

func (n *Null) Present(_ *safe.Mat) {
	atomic.AddUint64(&n.presented, 1)
}

func (n *Null) Presented() uint64 {
	return atomic.LoadUint64(&n.presented)
}
