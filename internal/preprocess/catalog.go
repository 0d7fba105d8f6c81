// Package preprocess supplies the ordered catalog of image transforms the
// detection pipeline falls back through, plus the pixel-level primitives the
// strategies are built from.
package preprocess

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/qrlens/internal/raster"
	"github.com/disintegration/imaging"
)

// Strategy is one named, parameterized transform of the shared grayscale
// base image. ScaleFactor records the forward scale a resizing strategy
// applies, so detections can be mapped back to the original geometry.
type Strategy struct {
	Name        string
	ScaleFactor float64

	// Applies gates the strategy on the original image dimensions.
	// A nil Applies means the strategy always runs.
	Applies func(width, height int) bool

	// Apply derives a new image from the grayscale base; it never mutates
	// its input.
	Apply func(base *image.Gray) image.Image
}

// Tuning shared by the catalog. The values follow common CV practice for
// small-symbol binarization.
const (
	claheClipLimit = 3.0
	claheTiles     = 8

	adaptiveOffset = 2.0

	// Upscaling is only worth an attempt below this smaller-dimension size.
	UpscaleMinDimension = 800

	morphKernelSize = 3
	sharpenSigma    = 1.0
)

var (
	adaptiveBlockSizes = []int{11, 15, 21, 31, 51}
	gammaValues        = []float64{0.5, 0.7, 1.5, 2.0}
)

// Catalog returns the ordered fallback strategies. Order encodes which
// degradation mode is most likely; the orchestrator stops at the first
// success. The first DetectStages entries also serve detect-only mode.
func Catalog() []Strategy {
	strategies := []Strategy{
		{
			Name:        "grayscale",
			ScaleFactor: 1.0,
			Apply:       func(base *image.Gray) image.Image { return base },
		},
		{
			Name:        "clahe",
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return CLAHE(base, claheClipLimit, claheTiles)
			},
		},
	}

	for _, block := range adaptiveBlockSizes {
		strategies = append(strategies, Strategy{
			Name:        fmt.Sprintf("adaptive_threshold_%d", block),
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return AdaptiveThreshold(base, block, adaptiveOffset)
			},
		})
	}

	strategies = append(strategies,
		Strategy{
			Name:        "otsu",
			ScaleFactor: 1.0,
			Apply:       func(base *image.Gray) image.Image { return OtsuThreshold(base, false) },
		},
		Strategy{
			Name:        "otsu_inverted",
			ScaleFactor: 1.0,
			Apply:       func(base *image.Gray) image.Image { return OtsuThreshold(base, true) },
		},
		Strategy{
			Name:        "denoise_adaptive",
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return AdaptiveThreshold(Median3(base), 15, adaptiveOffset)
			},
		},
		Strategy{
			Name:        "morph_close",
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return MorphClose(OtsuThreshold(base, false), morphKernelSize)
			},
		},
		Strategy{
			Name:        "sharpen",
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return imaging.Sharpen(base, sharpenSigma)
			},
		},
		Strategy{
			Name:        "upscale_2x",
			ScaleFactor: 2.0,
			Applies: func(width, height int) bool {
				return min(width, height) < UpscaleMinDimension
			},
			Apply: func(base *image.Gray) image.Image {
				b := base.Bounds()
				return imaging.Resize(base, b.Dx()*2, b.Dy()*2, imaging.Lanczos)
			},
		},
	)

	for _, gamma := range gammaValues {
		strategies = append(strategies, Strategy{
			Name:        fmt.Sprintf("gamma_%.1f", gamma),
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				return imaging.AdjustGamma(base, gamma)
			},
		})
	}

	strategies = append(strategies,
		Strategy{
			Name:        "equalize",
			ScaleFactor: 1.0,
			Apply:       func(base *image.Gray) image.Image { return Equalize(base) },
		},
		Strategy{
			Name:        "clahe_denoise_adaptive",
			ScaleFactor: 1.0,
			Apply: func(base *image.Gray) image.Image {
				enhanced := CLAHE(base, claheClipLimit, claheTiles)
				return AdaptiveThreshold(Median3(enhanced), 31, adaptiveOffset)
			},
		},
		Strategy{
			Name:        "upscale_1.5x_clahe",
			ScaleFactor: 1.5,
			Apply: func(base *image.Gray) image.Image {
				b := base.Bounds()
				up := imaging.Resize(base, b.Dx()*3/2, b.Dy()*3/2, imaging.Lanczos)
				return CLAHE(raster.ToGray(up), claheClipLimit, claheTiles)
			},
		},
	)

	return strategies
}

// DetectStages is the number of leading catalog strategies used in
// detect-only mode. The fast detect operation makes deeper fallback
// unprofitable, so only the grayscale base and CLAHE run.
const DetectStages = 2

// Grayscale computes the shared grayscale base for the catalog.
func Grayscale(img image.Image) *image.Gray {
	return raster.ToGray(img)
}
