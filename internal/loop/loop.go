// Package loop drives the real-time cycle: poll a frame, apply skip and
// tier decisions, run the cartoonize stage, rescale, present, and feed the
// measured cost back into the quality controller.
package loop

import (
	"context"
	"sync"
	"time"

	"toonloop/internal/cartoon"
	"toonloop/internal/frame"
	"toonloop/internal/logger"
	"toonloop/internal/opencv/memory"
	"toonloop/internal/quality"
	"toonloop/internal/vision"
)

// State names the loop's position in its cycle, mostly for logging and
// tests. Transitions happen only on the loop goroutine.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateSkipping
	StateProcessing
	StateRendering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSkipping:
		return "skipping"
	case StateProcessing:
		return "processing"
	case StateRendering:
		return "rendering"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop is the single-threaded cooperatively scheduled frame driver.
// Exactly one cycle is ever in flight: Tick runs a whole cycle before
// returning control to the scheduler. External inputs (parameters, tier
// requests) are buffered and consumed only at tick start, so nothing
// changes mid-cycle.
type Loop struct {
	source     Source
	renderer   Renderer
	stage      *cartoon.Stage
	controller *quality.Controller
	prims      vision.Primitives
	pool       *memory.Pool
	publisher  Publisher
	logger     logger.Logger

	state     State
	skipCount int
	outputW   int
	outputH   int
	params    cartoon.FilterParameters

	// pending inputs, set from other goroutines, consumed at tick start
	mu            sync.Mutex
	pendingParams cartoon.FilterParameters
	tierRequests  int

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func New(
	source Source,
	renderer Renderer,
	stage *cartoon.Stage,
	controller *quality.Controller,
	prims vision.Primitives,
	pool *memory.Pool,
	publisher Publisher,
	params cartoon.FilterParameters,
	log logger.Logger,
) *Loop {
	return &Loop{
		source:        source,
		renderer:      renderer,
		stage:         stage,
		controller:    controller,
		prims:         prims,
		pool:          pool,
		publisher:     publisher,
		params:        params,
		pendingParams: params,
		logger:        log,
		state:         StateIdle,
	}
}

// SetParameters replaces the filter parameters used from the next tick on.
func (l *Loop) SetParameters(p cartoon.FilterParameters) {
	l.mu.Lock()
	l.pendingParams = p
	l.mu.Unlock()
}

// RequestTierCycle files an explicit quality-tier change, applied between
// cycles.
func (l *Loop) RequestTierCycle() {
	l.mu.Lock()
	l.tierRequests++
	l.mu.Unlock()
}

func (l *Loop) State() State {
	return l.state
}

// Run drives ticks at the given interval until ctx is cancelled. The
// pending tick is cancelled with it; no cycle continues after cancellation.
func (l *Loop) Run(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelMu.Lock()
	l.cancel = cancel
	l.cancelMu.Unlock()

	l.state = StatePolling
	l.logger.Info("FrameLoop", "loop started", map[string]interface{}{
		"tick_interval": interval.String(),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stop()
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Shutdown withdraws the loop: the pending tick is cancelled and the loop
// transitions to Stopped. Also used when the source is torn down.
func (l *Loop) Shutdown() {
	l.cancelMu.Lock()
	cancel := l.cancel
	l.cancelMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (l *Loop) stop() {
	l.state = StateStopped
	l.logger.Info("FrameLoop", "loop stopped", nil)
}

// Tick runs one scheduling opportunity: at most one full cycle. All
// scratch buffers created here are released before it returns, on every
// branch.
func (l *Loop) Tick() {
	if l.state == StateStopped {
		return
	}

	l.consumePending()

	f, ready := l.source.Poll()
	if !ready || f == nil {
		l.state = StatePolling
		return
	}
	defer f.Release()

	// Degenerate dimensions are a transient source condition, not an error.
	if f.Width <= 0 || f.Height <= 0 {
		l.state = StatePolling
		return
	}

	l.skipCount++
	if l.skipCount < l.controller.FrameSkip() {
		l.state = StateSkipping
		return
	}
	l.skipCount = 0

	// Output resolution tracks the source's native resolution.
	if f.Width != l.outputW || f.Height != l.outputH {
		if l.outputW != 0 || l.outputH != 0 {
			l.logger.Info("FrameLoop", "source resolution changed", map[string]interface{}{
				"width":  f.Width,
				"height": f.Height,
			})
		}
		l.outputW = f.Width
		l.outputH = f.Height
	}

	scope := l.pool.NewScope()
	defer scope.Release()

	l.state = StateProcessing

	work := f.Mat
	procW, procH := f.Width, f.Height
	scale := l.controller.Tier().Scale()
	if scale != 1.0 {
		procW = int(float64(f.Width) * scale)
		procH = int(float64(f.Height) * scale)
		if procW < 1 || procH < 1 {
			l.state = StatePolling
			return
		}

		down, err := l.prims.Resize(f.Mat, procW, procH)
		if err != nil {
			// Allocation failure is fatal for this cycle only.
			l.logger.Error("FrameLoop", err, map[string]interface{}{
				"step": "downsample",
			})
			l.state = StatePolling
			return
		}
		work = scope.Track(down)
	}

	params := l.controller.ScaleParams(l.params)

	start := time.Now()
	styled, err := l.stage.Apply(work, params)
	elapsed := time.Since(start)
	if err != nil {
		l.logger.Error("FrameLoop", err, map[string]interface{}{
			"step": "cartoonize",
		})
		l.state = StatePolling
		return
	}
	scope.Track(styled)

	// The timing sample covers the stage only; a passthrough fallback still
	// feeds its (cheaper) cost into the controller.
	l.controller.RecordCycle(elapsed)

	out := styled
	if procW != l.outputW || procH != l.outputH {
		up, err := l.prims.Resize(styled, l.outputW, l.outputH)
		if err != nil {
			l.logger.Error("FrameLoop", err, map[string]interface{}{
				"step": "upsample",
			})
			l.state = StatePolling
			return
		}
		out = scope.Track(up)
	}

	l.state = StateRendering
	l.renderer.Present(out)

	if l.publisher != nil {
		stats := l.controller.Stats()
		l.publisher.PublishCycle(Sample{
			Seq:       f.Seq,
			ElapsedMs: stats.LastMs,
			AverageMs: stats.AverageMs(),
			Tier:      l.controller.Tier().String(),
			FrameSkip: l.controller.FrameSkip(),
			Width:     l.outputW,
			Height:    l.outputH,
			Timestamp: f.Timestamp,
		})
	}

	l.state = StatePolling
}

// consumePending applies externally filed inputs strictly between cycles.
func (l *Loop) consumePending() {
	l.mu.Lock()
	params := l.pendingParams
	requests := l.tierRequests
	l.tierRequests = 0
	l.mu.Unlock()

	l.params = params
	for i := 0; i < requests; i++ {
		l.controller.CycleTier()
	}
}
