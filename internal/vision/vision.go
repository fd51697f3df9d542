// Package vision supplies the stateless pixel-buffer operations consumed by
// the cartoonize stage and the frame loop. The interface exists so the
// pipeline can be exercised against test doubles without OpenCV semantics.
package vision

import (
	"toonloop/internal/opencv/safe"
)

// Primitives is the capability set the pipeline composes. Every operation
// returns a freshly allocated buffer and reports failure through a non-nil
// error rather than a partially written result, so callers can fall back
// cleanly. Inputs are never mutated.
type Primitives interface {
	// ToColor3 normalizes any supported channel layout to 3-channel BGR.
	ToColor3(src *safe.Mat) (*safe.Mat, error)

	// EdgePreserveSmooth flattens color regions while keeping edges sharp.
	EdgePreserveSmooth(src *safe.Mat, diameter int, sigmaColor, sigmaSpace float64) (*safe.Mat, error)

	// ToGray derives a single-channel luminance buffer from 3-channel color.
	ToGray(src *safe.Mat) (*safe.Mat, error)

	// Denoise applies a median-style pass with the given odd kernel size.
	Denoise(src *safe.Mat, kernelSize int) (*safe.Mat, error)

	// AdaptiveBinarize thresholds against a locally computed mean.
	AdaptiveBinarize(src *safe.Mat, blockSize int, c float64) (*safe.Mat, error)

	// GrayToColor3 expands a single-channel mask back to 3 channels.
	GrayToColor3(src *safe.Mat) (*safe.Mat, error)

	// BitwiseAnd combines two buffers of identical shape per-pixel.
	BitwiseAnd(a, b *safe.Mat) (*safe.Mat, error)

	// Resize scales to the target dimensions with linear interpolation.
	Resize(src *safe.Mat, width, height int) (*safe.Mat, error)

	// WeightedBlend mixes two buffers as weightA*a + weightB*b.
	WeightedBlend(a, b *safe.Mat, weightA, weightB float64) (*safe.Mat, error)
}
