// Package quality holds the closed-loop controller that trades image
// resolution and frame coverage for throughput based on measured
// processing latency.
package quality

import (
	"time"

	"toonloop/internal/cartoon"
	"toonloop/internal/logger"
)

const (
	// Latency thresholds steering the frame-skip lever.
	highLatencyMs = 100.0
	lowLatencyMs  = 50.0

	minFrameSkip = 1
	maxFrameSkip = 4

	historySize = 8
)

// CycleStats is the rolling latency record behind skip decisions. Mutated
// once per completed cycle, read by nothing inside the stage itself.
type CycleStats struct {
	LastMs  float64
	history [historySize]float64
	count   int
	next    int
}

func (cs *CycleStats) record(ms float64) {
	cs.LastMs = ms
	cs.history[cs.next] = ms
	cs.next = (cs.next + 1) % historySize
	if cs.count < historySize {
		cs.count++
	}
}

// AverageMs reports the mean latency over the rolling window.
func (cs *CycleStats) AverageMs() float64 {
	if cs.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < cs.count; i++ {
		sum += cs.history[i]
	}
	return sum / float64(cs.count)
}

// Controller owns the current quality tier and frame-skip counter and
// adjusts them from per-cycle latency samples.
//
// It is deliberately unsynchronized: all mutation happens on the loop
// goroutine strictly between cycles, so tier and skip are stable for the
// whole of any one cycle.
type Controller struct {
	tier        Tier
	skip        int
	constrained bool
	stats       CycleStats
	logger      logger.Logger
}

// NewController seeds the tier from the device class: constrained contexts
// (mobile-class hardware) start at low quality, everything else at high.
// Seeding happens once; after this the tier moves only on explicit request.
func NewController(constrained bool, log logger.Logger) *Controller {
	tier := TierHigh
	if constrained {
		tier = TierLow
	}

	return &Controller{
		tier:        tier,
		skip:        minFrameSkip,
		constrained: constrained,
		logger:      log,
	}
}

// RecordCycle feeds one measured processing latency into the control loop.
// Frame skip is the primary lever: it grows under sustained high latency
// on constrained devices and shrinks again once cycles run fast. The tier
// itself never changes automatically.
func (c *Controller) RecordCycle(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	c.stats.record(ms)

	switch {
	case c.constrained && ms > highLatencyMs:
		if c.skip < maxFrameSkip {
			c.skip++
			c.logger.Debug("QualityController", "frame skip increased", map[string]interface{}{
				"elapsed_ms": ms,
				"frame_skip": c.skip,
			})
		}
	case ms < lowLatencyMs && c.skip > minFrameSkip:
		c.skip--
		c.logger.Debug("QualityController", "frame skip decreased", map[string]interface{}{
			"elapsed_ms": ms,
			"frame_skip": c.skip,
		})
	}
}

// CycleTier advances the tier on explicit external request and returns the
// new value. Must only be invoked between cycles.
func (c *Controller) CycleTier() Tier {
	c.tier = c.tier.Next()
	c.logger.Info("QualityController", "quality tier changed", map[string]interface{}{
		"tier": c.tier.String(),
	})
	return c.tier
}

func (c *Controller) Tier() Tier {
	return c.tier
}

func (c *Controller) FrameSkip() int {
	return c.skip
}

func (c *Controller) Stats() CycleStats {
	return c.stats
}

// ScaleParams derives the stage parameters for the current tier: lower
// tiers shrink kernel sizes proportionally, the adaptive block size is
// additionally halved at low tier. Sigmas and intensity pass through.
func (c *Controller) ScaleParams(p cartoon.FilterParameters) cartoon.FilterParameters {
	if c.tier == TierHigh {
		return p
	}

	factor := c.tier.Scale()
	p.SmoothDiameter = scaleKernel(p.SmoothDiameter, factor)
	p.DenoiseKernel = scaleKernel(p.DenoiseKernel, factor)
	if c.tier == TierLow {
		p.BlockSize = scaleKernel(p.BlockSize, 0.5)
	}
	return p
}

// scaleKernel shrinks a kernel size while keeping it odd and >= 3, so no
// scaled parameter is ever degenerate where OpenCV requires odd sizes.
func scaleKernel(k int, factor float64) int {
	v := int(float64(k) * factor)
	if v%2 == 0 {
		v--
	}
	if v < 3 {
		v = 3
	}
	return v
}
