package pipeline

import (
	"errors"
	"image"
	"math"

	"github.com/MeKo-Tech/qrlens/internal/datauri"
	"github.com/MeKo-Tech/qrlens/internal/qr"
	"github.com/MeKo-Tech/qrlens/internal/raster"
	"github.com/disintegration/imaging"
)

// boundingBox computes the axis-aligned rectangle enclosing the corner
// points, expands it by pad on each side, and clamps it to the image
// dimensions. The result never extends outside [0,width) x [0,height).
func boundingBox(points []qr.Point, pad, width, height int) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	x := int(math.Floor(minX))
	y := int(math.Floor(minY))
	w := int(math.Ceil(maxX)) - x
	h := int(math.Ceil(maxY)) - y

	x = max(0, x-pad)
	y = max(0, y-pad)
	w = min(width-x, w+2*pad)
	h = min(height-y, h+2*pad)
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	return image.Rect(x, y, x+w, y+h)
}

// extractRegion crops the padded bounding box of the (already remapped)
// corners from the original color raster and returns it as a PNG data URI.
// The crop reflects true image content, never a preprocessed intermediate.
func (p *Pipeline) extractRegion(original image.Image, corners []qr.Point) (string, error) {
	b := original.Bounds()
	box := boundingBox(corners, p.cfg.RegionPadding, b.Dx(), b.Dy())
	if box.Empty() {
		return "", errors.New("empty region after clamping")
	}

	crop := imaging.Crop(original, box.Add(b.Min))
	pngBytes, err := raster.EncodePNG(crop)
	if err != nil {
		return "", err
	}
	return datauri.PNG(pngBytes), nil
}
