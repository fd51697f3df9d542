package cartoon_test

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"toonloop/internal/cartoon"
	"toonloop/internal/logger"
	"toonloop/internal/opencv/memory"
	"toonloop/internal/opencv/safe"
	"toonloop/internal/vision"
)

func discardLogger() logger.Logger {
	return logger.NewZerolog(io.Discard, zerolog.Disabled)
}

// fakePrims clones inputs for every operation so the pipeline's data flow
// can be observed without OpenCV semantics. One operation can be told to
// fail to exercise the fallback path.
type fakePrims struct {
	calls      map[string]int
	failOn     string
	created    []*safe.Mat
	color3ID   uint64
	smoothedID uint64
	blendAID   uint64
	blendWA    float64
	blendWB    float64
}

func newFakePrims(failOn string) *fakePrims {
	return &fakePrims{
		calls:  make(map[string]int),
		failOn: failOn,
	}
}

func (f *fakePrims) op(name string, src *safe.Mat) (*safe.Mat, error) {
	f.calls[name]++
	if f.failOn == name {
		return nil, errors.New(name + " rejected input")
	}

	m, err := src.Clone()
	if err != nil {
		return nil, err
	}
	f.created = append(f.created, m)
	return m, nil
}

func (f *fakePrims) ToColor3(src *safe.Mat) (*safe.Mat, error) {
	m, err := f.op("to_color3", src)
	if err == nil {
		f.color3ID = m.ID()
	}
	return m, err
}

func (f *fakePrims) EdgePreserveSmooth(src *safe.Mat, _ int, _, _ float64) (*safe.Mat, error) {
	m, err := f.op("edge_preserve_smooth", src)
	if err == nil {
		f.smoothedID = m.ID()
	}
	return m, err
}

func (f *fakePrims) ToGray(src *safe.Mat) (*safe.Mat, error) {
	return f.op("to_gray", src)
}

func (f *fakePrims) Denoise(src *safe.Mat, _ int) (*safe.Mat, error) {
	return f.op("denoise", src)
}

func (f *fakePrims) AdaptiveBinarize(src *safe.Mat, _ int, _ float64) (*safe.Mat, error) {
	return f.op("adaptive_binarize", src)
}

func (f *fakePrims) GrayToColor3(src *safe.Mat) (*safe.Mat, error) {
	return f.op("gray_to_color3", src)
}

func (f *fakePrims) BitwiseAnd(a, _ *safe.Mat) (*safe.Mat, error) {
	return f.op("bitwise_and", a)
}

func (f *fakePrims) Resize(src *safe.Mat, _, _ int) (*safe.Mat, error) {
	return f.op("resize", src)
}

func (f *fakePrims) WeightedBlend(a, _ *safe.Mat, weightA, weightB float64) (*safe.Mat, error) {
	f.blendAID = a.ID()
	f.blendWA = weightA
	f.blendWB = weightB
	return f.op("weighted_blend", a)
}

func newColorMat(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()

	m, err := safe.NewMat(rows, cols, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// newEdgeMat builds a frame whose left half is dark and right half bright,
// guaranteeing at least one strong gradient.
func newEdgeMat(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()

	m := newColorMat(t, rows, cols)
	for y := 0; y < rows; y++ {
		for x := cols / 2; x < cols; x++ {
			for ch := 0; ch < 3; ch++ {
				require.NoError(t, m.SetUCharAt3(y, x, ch, 230))
			}
		}
	}
	return m
}

func newUniformMat(t *testing.T, rows, cols int, value uint8) *safe.Mat {
	t.Helper()

	m := newColorMat(t, rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for ch := 0; ch < 3; ch++ {
				require.NoError(t, m.SetUCharAt3(y, x, ch, value))
			}
		}
	}
	return m
}

func TestApplyIntensityZeroShortCircuits(t *testing.T) {
	t.Parallel()

	prims := newFakePrims("")
	pool := memory.NewPool(0)
	stage := cartoon.NewStage(prims, pool, discardLogger())

	input := newColorMat(t, 8, 8)
	params := cartoon.DefaultParameters()
	params.Intensity = 0

	result, err := stage.Apply(input, params)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 1, prims.calls["to_color3"])
	assert.Zero(t, prims.calls["edge_preserve_smooth"])
	assert.Zero(t, prims.calls["to_gray"])
	assert.Zero(t, prims.calls["denoise"])
	assert.Zero(t, prims.calls["adaptive_binarize"])
	assert.Zero(t, prims.calls["bitwise_and"])
	assert.Zero(t, prims.calls["weighted_blend"])

	assert.Equal(t, input.Rows(), result.Rows())
	assert.Equal(t, input.Cols(), result.Cols())
	assert.NotEqual(t, input.ID(), result.ID(), "passthrough must be a copy, not the input")
}

func TestApplyFallsBackOnPrimitiveFailure(t *testing.T) {
	t.Parallel()

	prims := newFakePrims("denoise")
	pool := memory.NewPool(0)
	stage := cartoon.NewStage(prims, pool, discardLogger())

	input := newUniformMat(t, 8, 8, 40)

	result, err := stage.Apply(input, cartoon.DefaultParameters())
	require.NoError(t, err)
	defer result.Close()

	// Fallback returns an unmodified copy of the original input.
	assert.Equal(t, input.Rows(), result.Rows())
	assert.Equal(t, input.Cols(), result.Cols())
	v, err := result.GetUCharAt3(4, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(40), v)

	assert.Equal(t, 1, prims.calls["denoise"])
	assert.Zero(t, prims.calls["adaptive_binarize"], "stages after the failure must not run")

	// With a zero-capacity pool, scope release closes every intermediate.
	for _, m := range prims.created {
		assert.False(t, m.IsValid(), "intermediate Mat leaked past Apply")
	}
	assert.True(t, result.IsValid())
}

func TestApplyBlendsAgainstOriginalColor(t *testing.T) {
	t.Parallel()

	prims := newFakePrims("")
	pool := memory.NewPool(0)
	stage := cartoon.NewStage(prims, pool, discardLogger())

	input := newColorMat(t, 8, 8)
	params := cartoon.DefaultParameters()
	params.Intensity = 0.25

	result, err := stage.Apply(input, params)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 1, prims.calls["weighted_blend"])
	assert.Equal(t, prims.color3ID, prims.blendAID,
		"blend must mix the original normalized color, not the smoothed buffer")
	assert.NotEqual(t, prims.smoothedID, prims.blendAID)
	assert.InDelta(t, 0.75, prims.blendWA, 1e-9)
	assert.InDelta(t, 0.25, prims.blendWB, 1e-9)
}

func TestApplyFullIntensitySkipsBlend(t *testing.T) {
	t.Parallel()

	prims := newFakePrims("")
	pool := memory.NewPool(0)
	stage := cartoon.NewStage(prims, pool, discardLogger())

	input := newColorMat(t, 8, 8)

	result, err := stage.Apply(input, cartoon.DefaultParameters())
	require.NoError(t, err)
	defer result.Close()

	assert.Zero(t, prims.calls["weighted_blend"])
	assert.Equal(t, 1, prims.calls["bitwise_and"])
}

func TestApplyPreservesDimensionsAndStylizes(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()
	stage := cartoon.NewStage(vision.NewOpenCV(pool), pool, discardLogger())

	input := newEdgeMat(t, 48, 64)

	result, err := stage.Apply(input, cartoon.DefaultParameters())
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 48, result.Rows())
	assert.Equal(t, 64, result.Cols())
	assert.Equal(t, 3, result.Channels())

	// An input with a strong edge must not come back as a passthrough.
	diff := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			in, err := input.GetUCharAt3(y, x, 0)
			require.NoError(t, err)
			out, err := result.GetUCharAt3(y, x, 0)
			require.NoError(t, err)
			if in != out {
				diff++
			}
		}
	}
	assert.Positive(t, diff, "stylized output is pixel-identical to the input")
}

func TestApplyUniformFrameTracksSmoothedColor(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()
	stage := cartoon.NewStage(vision.NewOpenCV(pool), pool, discardLogger())

	input := newUniformMat(t, 100, 100, 128)

	result, err := stage.Apply(input, cartoon.DefaultParameters())
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 100, result.Rows())
	assert.Equal(t, 100, result.Cols())

	// No gradients means an (almost) fully open edge mask, so the output
	// closely tracks the smoothed color buffer, which is itself uniform.
	for _, p := range [][2]int{{50, 50}, {10, 10}, {90, 90}, {0, 0}, {99, 99}} {
		v, err := result.GetUCharAt3(p[0], p[1], 1)
		require.NoError(t, err)
		assert.InDelta(t, 128, float64(v), 8, "pixel (%d,%d)", p[0], p[1])
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	pool := memory.NewPool(4)
	defer pool.Cleanup()
	stage := cartoon.NewStage(vision.NewOpenCV(pool), pool, discardLogger())

	input := newEdgeMat(t, 32, 32)
	before, err := input.Clone()
	require.NoError(t, err)
	defer before.Close()

	result, err := stage.Apply(input, cartoon.DefaultParameters())
	require.NoError(t, err)
	result.Close()

	for y := 0; y < 32; y += 7 {
		for x := 0; x < 32; x += 7 {
			want, err := before.GetUCharAt3(y, x, 2)
			require.NoError(t, err)
			got, err := input.GetUCharAt3(y, x, 2)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestParametersValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(*cartoon.FilterParameters)
		wantErr bool
	}{
		"defaults are valid": {
			mutate:  func(*cartoon.FilterParameters) {},
			wantErr: false,
		},
		"intensity above one": {
			mutate:  func(p *cartoon.FilterParameters) { p.Intensity = 1.2 },
			wantErr: true,
		},
		"negative intensity": {
			mutate:  func(p *cartoon.FilterParameters) { p.Intensity = -0.1 },
			wantErr: true,
		},
		"even smoothing diameter": {
			mutate:  func(p *cartoon.FilterParameters) { p.SmoothDiameter = 6 },
			wantErr: true,
		},
		"denoise kernel too small": {
			mutate:  func(p *cartoon.FilterParameters) { p.DenoiseKernel = 1 },
			wantErr: true,
		},
		"even block size": {
			mutate:  func(p *cartoon.FilterParameters) { p.BlockSize = 8 },
			wantErr: true,
		},
		"zero sigma": {
			mutate:  func(p *cartoon.FilterParameters) { p.SigmaColor = 0 },
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			params := cartoon.DefaultParameters()
			tc.mutate(&params)

			err := params.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
