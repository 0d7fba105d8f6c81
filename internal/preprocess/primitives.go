package preprocess

import (
	"image"
	"math"
)

// newGray allocates a zero-origin grayscale image.
func newGray(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// grayAt reads a pixel honoring the source stride.
func grayAt(img *image.Gray, x, y int) uint8 {
	return img.Pix[y*img.Stride+x]
}

// gaussianKernel builds a normalized 1D Gaussian kernel with the given sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// gaussianBlurGray applies a separable Gaussian blur with edge clamping.
func gaussianBlurGray(src *image.Gray, sigma float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				sx := x + k
				if sx < 0 {
					sx = 0
				} else if sx >= w {
					sx = w - 1
				}
				acc += float64(grayAt(src, sx, y)) * kernel[k+radius]
			}
			tmp[y*w+x] = acc
		}
	}

	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				sy := y + k
				if sy < 0 {
					sy = 0
				} else if sy >= h {
					sy = h - 1
				}
				acc += tmp[sy*w+x] * kernel[k+radius]
			}
			v := int(acc + 0.5)
			if v > 255 {
				v = 255
			}
			dst.Pix[y*dst.Stride+x] = uint8(v) //nolint:gosec // G115: clamped above
		}
	}
	return dst
}

// AdaptiveThreshold binarizes using a Gaussian-weighted local mean. A pixel
// becomes white when it exceeds the local mean minus the constant offset.
// blockSize must be odd.
func AdaptiveThreshold(src *image.Gray, blockSize int, offset float64) *image.Gray {
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	// Sigma choice follows the common CV convention for a given block size.
	sigma := 0.3*(float64(blockSize-1)*0.5-1) + 0.8
	local := gaussianBlurGray(src, sigma)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			thresh := float64(grayAt(local, x, y)) - offset
			if float64(grayAt(src, x, y)) > thresh {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// histogram computes the 256-bin intensity histogram.
func histogram(src *image.Gray) [256]int {
	var hist [256]int
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			hist[grayAt(src, x, y)]++
		}
	}
	return hist
}

// otsuLevel selects the global threshold maximizing between-class variance.
func otsuLevel(hist [256]int, total int) int {
	if total == 0 {
		return 128
	}
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumB float64
	var wB int
	var maxVariance float64
	best := 0
	for t, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(n)
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return best
}

// OtsuThreshold binarizes with a global Otsu threshold. When inverted is set
// the polarity flips, which recovers light-on-dark symbols.
func OtsuThreshold(src *image.Gray, inverted bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	level := otsuLevel(histogram(src), w*h)

	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			above := int(grayAt(src, x, y)) > level
			if above != inverted {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// Equalize applies global histogram equalization.
func Equalize(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	hist := histogram(src)

	var lut [256]uint8
	total := w * h
	var cum, cdfMin int
	seenMin := false
	for i, n := range hist {
		cum += n
		if !seenMin && cum > 0 {
			cdfMin = cum
			seenMin = true
		}
		if total > cdfMin {
			v := float64(cum-cdfMin) / float64(total-cdfMin) * 255
			lut[i] = uint8(math.Round(v)) //nolint:gosec // G115: v is in [0,255]
		} else {
			lut[i] = uint8(i) //nolint:gosec // G115: index is in [0,255]
		}
	}

	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[y*dst.Stride+x] = lut[grayAt(src, x, y)]
		}
	}
	return dst
}

// CLAHE performs contrast-limited adaptive histogram equalization over a
// tiles x tiles grid with bilinear interpolation between tile mappings.
// clipLimit is relative to the uniform bin height (typical values 2-4).
func CLAHE(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if tiles < 1 {
		tiles = 1
	}
	if w < tiles || h < tiles {
		return Equalize(src)
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles
	luts := make([][256]uint8, tiles*tiles)

	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := x0+tileW, y0+tileH
			if x1 > w {
				x1 = w
			}
			if y1 > h {
				y1 = h
			}

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[grayAt(src, x, y)]++
				}
			}
			n := (x1 - x0) * (y1 - y0)
			luts[ty*tiles+tx] = clippedCDF(hist, n, clipLimit)
		}
	}

	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := grayAt(src, x, y)

			// Position relative to tile centers.
			fx := (float64(x) - float64(tileW)/2) / float64(tileW)
			fy := (float64(y) - float64(tileH)/2) / float64(tileH)
			tx0 := int(math.Floor(fx))
			ty0 := int(math.Floor(fy))
			wx := fx - float64(tx0)
			wy := fy - float64(ty0)

			tx1 := clampInt(tx0+1, 0, tiles-1)
			ty1 := clampInt(ty0+1, 0, tiles-1)
			tx0 = clampInt(tx0, 0, tiles-1)
			ty0 = clampInt(ty0, 0, tiles-1)

			v00 := float64(luts[ty0*tiles+tx0][v])
			v01 := float64(luts[ty0*tiles+tx1][v])
			v10 := float64(luts[ty1*tiles+tx0][v])
			v11 := float64(luts[ty1*tiles+tx1][v])
			top := v00*(1-wx) + v01*wx
			bot := v10*(1-wx) + v11*wx
			out := top*(1-wy) + bot*wy
			dst.Pix[y*dst.Stride+x] = uint8(clampInt(int(out+0.5), 0, 255)) //nolint:gosec // G115: clamped
		}
	}
	return dst
}

// clippedCDF builds an equalization LUT from a clipped histogram, with the
// clipped excess redistributed uniformly.
func clippedCDF(hist [256]int, n int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i) //nolint:gosec // G115: index is in [0,255]
		}
		return lut
	}

	limit := int(clipLimit * float64(n) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	scale := 255.0 / float64(n)
	cum := 0
	for i, c := range hist {
		cum += c
		lut[i] = uint8(clampInt(int(float64(cum)*scale+0.5), 0, 255)) //nolint:gosec // G115: clamped
	}
	return lut
}

// Median3 applies a 3x3 median filter. It smooths speckle noise while
// keeping module edges sharp, unlike a Gaussian blur.
func Median3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := newGray(w, h)
	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx := clampInt(x+kx, 0, w-1)
					sy := clampInt(y+ky, 0, h-1)
					window[i] = grayAt(src, sx, sy)
					i++
				}
			}
			dst.Pix[y*dst.Stride+x] = median9(window)
		}
	}
	return dst
}

// median9 finds the median of nine values with insertion sort.
func median9(v [9]uint8) uint8 {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
	return v[4]
}

// MorphClose performs a morphological closing (dilate then erode) with a
// square kernel. On binarized symbols this fills small gaps in the module
// pattern.
func MorphClose(src *image.Gray, kernelSize int) *image.Gray {
	if kernelSize <= 1 {
		return src
	}
	return erodeGray(dilateGray(src, kernelSize), kernelSize)
}

// dilateGray expands bright regions with a square max filter.
func dilateGray(src *image.Gray, kernelSize int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := newGray(w, h)
	half := kernelSize / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var maxVal uint8
			for ky := -half; ky <= half; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						if v := grayAt(src, nx, ny); v > maxVal {
							maxVal = v
						}
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = maxVal
		}
	}
	return dst
}

// erodeGray shrinks bright regions with a square min filter.
func erodeGray(src *image.Gray, kernelSize int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := newGray(w, h)
	half := kernelSize / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			minVal := uint8(255)
			for ky := -half; ky <= half; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						if v := grayAt(src, nx, ny); v < minVal {
							minVal = v
						}
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = minVal
		}
	}
	return dst
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
