package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"toonloop/internal/opencv/memory"
	"toonloop/internal/opencv/safe"
)

// OpenCV implements Primitives over gocv. Destination buffers come from the
// shared pool; callers own the results and release them through their scope.
type OpenCV struct {
	pool *memory.Pool
}

func NewOpenCV(pool *memory.Pool) *OpenCV {
	return &OpenCV{pool: pool}
}

func validateInput(src *safe.Mat, op string) error {
	if src == nil || !src.IsValid() || src.Empty() {
		return fmt.Errorf("%s: input Mat is empty or invalid", op)
	}
	return nil
}

func (o *OpenCV) ToColor3(src *safe.Mat) (*safe.Mat, error) {
	if err := validateInput(src, "to_color3"); err != nil {
		return nil, err
	}

	if src.Channels() == 3 {
		return src.Clone()
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, fmt.Errorf("to_color3: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()

	switch src.Channels() {
	case 1:
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRAToBGR)
	default:
		o.pool.Put(dst)
		return nil, fmt.Errorf("to_color3: unsupported channel count %d", src.Channels())
	}

	return dst, nil
}

func (o *OpenCV) EdgePreserveSmooth(src *safe.Mat, diameter int, sigmaColor, sigmaSpace float64) (*safe.Mat, error) {
	if err := validateInput(src, "edge_preserve_smooth"); err != nil {
		return nil, err
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		return nil, fmt.Errorf("edge_preserve_smooth: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.BilateralFilter(srcMat, &dstMat, diameter, sigmaColor, sigmaSpace)

	if dstMat.Empty() {
		o.pool.Put(dst)
		return nil, fmt.Errorf("edge_preserve_smooth: produced empty result")
	}

	return dst, nil
}

func (o *OpenCV) ToGray(src *safe.Mat) (*safe.Mat, error) {
	if err := validateInput(src, "to_gray"); err != nil {
		return nil, err
	}

	if src.Channels() == 1 {
		return src.Clone()
	}

	if src.Channels() != 3 {
		return nil, fmt.Errorf("to_gray: unsupported channel count %d", src.Channels())
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, fmt.Errorf("to_gray: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToGray)

	return dst, nil
}

func (o *OpenCV) Denoise(src *safe.Mat, kernelSize int) (*safe.Mat, error) {
	if err := validateInput(src, "denoise"); err != nil {
		return nil, err
	}

	if kernelSize < 3 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("denoise: kernel size must be odd and >= 3, got %d", kernelSize)
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		return nil, fmt.Errorf("denoise: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.MedianBlur(srcMat, &dstMat, kernelSize)

	return dst, nil
}

func (o *OpenCV) AdaptiveBinarize(src *safe.Mat, blockSize int, c float64) (*safe.Mat, error) {
	if err := validateInput(src, "adaptive_binarize"); err != nil {
		return nil, err
	}

	if src.Channels() != 1 {
		return nil, fmt.Errorf("adaptive_binarize: requires single-channel input, got %d channels", src.Channels())
	}

	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("adaptive_binarize: block size must be odd and >= 3, got %d", blockSize)
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, fmt.Errorf("adaptive_binarize: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.AdaptiveThreshold(srcMat, &dstMat, 255,
		gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, blockSize, float32(c))

	return dst, nil
}

func (o *OpenCV) GrayToColor3(src *safe.Mat) (*safe.Mat, error) {
	if err := validateInput(src, "gray_to_color3"); err != nil {
		return nil, err
	}

	if src.Channels() != 1 {
		return nil, fmt.Errorf("gray_to_color3: requires single-channel input, got %d channels", src.Channels())
	}

	dst, err := o.pool.Get(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, fmt.Errorf("gray_to_color3: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)

	return dst, nil
}

func (o *OpenCV) BitwiseAnd(a, b *safe.Mat) (*safe.Mat, error) {
	if err := validateInput(a, "bitwise_and"); err != nil {
		return nil, err
	}
	if err := validateInput(b, "bitwise_and"); err != nil {
		return nil, err
	}

	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return nil, fmt.Errorf("bitwise_and: shape mismatch %dx%d/%v vs %dx%d/%v",
			a.Cols(), a.Rows(), a.Type(), b.Cols(), b.Rows(), b.Type())
	}

	dst, err := o.pool.Get(a.Rows(), a.Cols(), a.Type())
	if err != nil {
		return nil, fmt.Errorf("bitwise_and: %w", err)
	}

	aMat := a.GetMat()
	bMat := b.GetMat()
	dstMat := dst.GetMat()
	gocv.BitwiseAnd(aMat, bMat, &dstMat)

	return dst, nil
}

func (o *OpenCV) Resize(src *safe.Mat, width, height int) (*safe.Mat, error) {
	if err := validateInput(src, "resize"); err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resize: invalid target dimensions %dx%d", width, height)
	}

	dst, err := o.pool.Get(height, width, src.Type())
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.Resize(srcMat, &dstMat, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)

	return dst, nil
}

func (o *OpenCV) WeightedBlend(a, b *safe.Mat, weightA, weightB float64) (*safe.Mat, error) {
	if err := validateInput(a, "weighted_blend"); err != nil {
		return nil, err
	}
	if err := validateInput(b, "weighted_blend"); err != nil {
		return nil, err
	}

	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return nil, fmt.Errorf("weighted_blend: shape mismatch %dx%d/%v vs %dx%d/%v",
			a.Cols(), a.Rows(), a.Type(), b.Cols(), b.Rows(), b.Type())
	}

	dst, err := o.pool.Get(a.Rows(), a.Cols(), a.Type())
	if err != nil {
		return nil, fmt.Errorf("weighted_blend: %w", err)
	}

	aMat := a.GetMat()
	bMat := b.GetMat()
	dstMat := dst.GetMat()
	gocv.AddWeighted(aMat, weightA, bMat, weightB, 0, &dstMat)

	return dst, nil
}
