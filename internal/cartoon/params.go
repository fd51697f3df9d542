package cartoon

import "fmt"

// FilterParameters is the immutable per-cycle snapshot of the stylization
// recipe. It may change between cycles via external configuration but never
// mid-cycle; the loop snapshots it at tick start.
type FilterParameters struct {
	// SmoothDiameter is the pixel neighborhood diameter of the
	// edge-preserving smoothing pass. Odd, >= 3.
	SmoothDiameter int `yaml:"smooth_diameter"`

	// SigmaColor and SigmaSpace parameterize how aggressively the
	// smoothing pass flattens color regions.
	SigmaColor float64 `yaml:"sigma_color"`
	SigmaSpace float64 `yaml:"sigma_space"`

	// DenoiseKernel is the median-pass kernel size. Odd, >= 3.
	DenoiseKernel int `yaml:"denoise_kernel"`

	// BlockSize and ThresholdC parameterize the adaptive binarization
	// that produces the edge mask. BlockSize odd, >= 3.
	BlockSize  int     `yaml:"block_size"`
	ThresholdC float64 `yaml:"threshold_c"`

	// Intensity in [0,1] mixes the original color with the cartoon
	// result. 0 is a pure passthrough, 1 is the full effect.
	Intensity float64 `yaml:"intensity"`
}

func DefaultParameters() FilterParameters {
	return FilterParameters{
		SmoothDiameter: 7,
		SigmaColor:     75,
		SigmaSpace:     75,
		DenoiseKernel:  7,
		BlockSize:      9,
		ThresholdC:     2,
		Intensity:      1.0,
	}
}

func (p FilterParameters) Validate() error {
	if p.Intensity < 0 || p.Intensity > 1 {
		return fmt.Errorf("intensity must be in [0,1], got %v", p.Intensity)
	}

	for _, k := range []struct {
		name  string
		value int
	}{
		{"smooth_diameter", p.SmoothDiameter},
		{"denoise_kernel", p.DenoiseKernel},
		{"block_size", p.BlockSize},
	} {
		if k.value < 3 || k.value%2 == 0 {
			return fmt.Errorf("%s must be odd and >= 3, got %d", k.name, k.value)
		}
	}

	if p.SigmaColor <= 0 || p.SigmaSpace <= 0 {
		return fmt.Errorf("sigma_color and sigma_space must be positive, got %v/%v",
			p.SigmaColor, p.SigmaSpace)
	}

	return nil
}
