package loop

import (
	"time"

	"toonloop/internal/frame"
	"toonloop/internal/opencv/safe"
)

// Source produces the next decodable video frame on demand. Poll must not
// block: "not ready" is a valid transient result, reported as (nil, false).
// A returned frame is owned by the calling cycle.
type Source interface {
	Poll() (*frame.Frame, bool)
}

// Renderer draws a buffer to a display surface. Present is fire-and-forget
// from the loop's perspective; the buffer is only valid for the duration of
// the call.
type Renderer interface {
	Present(m *safe.Mat)
}

// Publisher consumes per-cycle state signals for display. Implementations
// must not block the loop.
type Publisher interface {
	PublishCycle(s Sample)
}

// Sample is the state signal emitted after each processed cycle.
type Sample struct {
	Seq       uint64    `json:"seq"`
	ElapsedMs float64   `json:"elapsed_ms"`
	AverageMs float64   `json:"average_ms"`
	Tier      string    `json:"tier"`
	FrameSkip int       `json:"frame_skip"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}
