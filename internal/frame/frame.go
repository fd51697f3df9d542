// Package frame defines the unit of work flowing through the pipeline.
package frame

import (
	"time"

	"toonloop/internal/opencv/safe"
)

// Frame is one captured video frame. It is owned exclusively by the cycle
// that captured it and must be released before that cycle ends; stale
// frames are never reused.
type Frame struct {
	Mat       *safe.Mat
	Width     int
	Height    int
	Timestamp time.Time
	Seq       uint64
}

// Release frees the underlying buffer. Safe to call on a nil frame or
// more than once.
func (f *Frame) Release() {
	if f == nil || f.Mat == nil {
		return
	}
	f.Mat.Close()
	f.Mat = nil
}
