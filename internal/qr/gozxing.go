package qr

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/detector"
)

// GozxingReader implements Reader on top of the gozxing QR decoder. It is
// stateless; a fresh zero value is valid.
type GozxingReader struct{}

// NewGozxingReader returns the default production reader.
func NewGozxingReader() *GozxingReader { return &GozxingReader{} }

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// DetectAndDecode locates and decodes a QR symbol.
func (r *GozxingReader) DetectAndDecode(img image.Image) (string, []Point, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", nil, fmt.Errorf("build binary bitmap: %w", err)
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		if isNotFound(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("qr decode: %w", err)
	}

	return result.GetText(), completeQuad(toPoints(result.GetResultPoints())), nil
}

// Detect locates a QR symbol without decoding it.
func (r *GozxingReader) Detect(img image.Image) ([]Point, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("build binary bitmap: %w", err)
	}
	matrix, err := bmp.GetBlackMatrix()
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	res, err := detector.NewDetector(matrix).Detect(decodeHints)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("qr detect: %w", err)
	}

	return completeQuad(toPoints(res.GetPoints())), nil
}

// isNotFound reports whether err is a reader exception, i.e. "no decodable
// symbol here" rather than a genuine fault.
func isNotFound(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

func toPoints(pts []gozxing.ResultPoint) []Point {
	if len(pts) == 0 {
		return nil
	}
	points := make([]Point, 0, len(pts))
	for _, p := range pts {
		if p == nil {
			continue
		}
		points = append(points, Point{X: p.GetX(), Y: p.GetY()})
	}
	return points
}

// completeQuad appends the fourth corner when the reader reports only the
// three finder-pattern points (bottom-left, top-left, top-right). The
// missing corner is the parallelogram completion; the reported order is
// left untouched.
func completeQuad(points []Point) []Point {
	if len(points) != 3 {
		return points
	}
	bl, tl, tr := points[0], points[1], points[2]
	return append(points, Point{
		X: bl.X + tr.X - tl.X,
		Y: bl.Y + tr.Y - tl.Y,
	})
}
