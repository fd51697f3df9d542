// Package cartoon implements the per-frame stylization pass: a fixed
// composition of edge-preserving smoothing, luminance edge masking and
// blending that turns a video frame into its cartoonized counterpart.
package cartoon

import (
	"fmt"

	"toonloop/internal/logger"
	"toonloop/internal/opencv/memory"
	"toonloop/internal/opencv/safe"
	"toonloop/internal/vision"
)

// Stage runs one full pipeline pass over one frame buffer. It is stateless
// between invocations: identical input and parameters produce identical
// output (subject to the primitives' own determinism).
type Stage struct {
	prims  vision.Primitives
	pool   *memory.Pool
	logger logger.Logger
}

func NewStage(prims vision.Primitives, pool *memory.Pool, log logger.Logger) *Stage {
	return &Stage{
		prims:  prims,
		pool:   pool,
		logger: log,
	}
}

// Apply returns a new stylized buffer with the same dimensions as input.
// The input is never mutated and never retained.
//
// A primitive failure is recoverable: the stage logs it and returns an
// unmodified copy of the input instead, so the surrounding cycle still
// completes. The returned error is non-nil only when even that fallback
// copy could not be allocated. Every intermediate buffer is released
// before returning on all paths.
func (s *Stage) Apply(input *safe.Mat, params FilterParameters) (*safe.Mat, error) {
	scope := s.pool.NewScope()
	defer scope.Release()

	color, err := s.prims.ToColor3(input)
	if err != nil {
		return s.passthrough(input, "to_color3", err)
	}
	scope.Track(color)

	// Explicit short-circuit: zero intensity means no stylization work at
	// all, not a blend with weight zero.
	if params.Intensity == 0 {
		return scope.Detach(color), nil
	}

	smoothed, err := s.prims.EdgePreserveSmooth(color, params.SmoothDiameter, params.SigmaColor, params.SigmaSpace)
	if err != nil {
		return s.passthrough(input, "edge_preserve_smooth", err)
	}
	scope.Track(smoothed)

	gray, err := s.prims.ToGray(color)
	if err != nil {
		return s.passthrough(input, "to_gray", err)
	}
	scope.Track(gray)

	denoised, err := s.prims.Denoise(gray, params.DenoiseKernel)
	if err != nil {
		return s.passthrough(input, "denoise", err)
	}
	scope.Track(denoised)

	mask, err := s.prims.AdaptiveBinarize(denoised, params.BlockSize, params.ThresholdC)
	if err != nil {
		return s.passthrough(input, "adaptive_binarize", err)
	}
	scope.Track(mask)

	edges, err := s.prims.GrayToColor3(mask)
	if err != nil {
		return s.passthrough(input, "gray_to_color3", err)
	}
	scope.Track(edges)

	toon, err := s.prims.BitwiseAnd(smoothed, edges)
	if err != nil {
		return s.passthrough(input, "bitwise_and", err)
	}
	scope.Track(toon)

	if params.Intensity >= 1.0 {
		return scope.Detach(toon), nil
	}

	// The blend deliberately mixes the original normalized color, not the
	// smoothed buffer: low intensities keep fine detail.
	blended, err := s.prims.WeightedBlend(color, toon, 1.0-params.Intensity, params.Intensity)
	if err != nil {
		return s.passthrough(input, "weighted_blend", err)
	}
	scope.Track(blended)

	return scope.Detach(blended), nil
}

// passthrough is the recovery path: a copy of the unfiltered input keeps
// the stream alive instead of freezing or blanking the display.
func (s *Stage) passthrough(input *safe.Mat, op string, cause error) (*safe.Mat, error) {
	s.logger.Warning("CartoonizeStage", "primitive failed, returning passthrough frame", map[string]interface{}{
		"operation": op,
		"cause":     cause.Error(),
	})

	clone, err := input.Clone()
	if err != nil {
		return nil, fmt.Errorf("passthrough copy after %s failure: %w", op, err)
	}
	return clone, nil
}
