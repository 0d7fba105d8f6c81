// Package raster loads encoded images into color rasters and encodes
// crops back to PNG bytes for export.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidInput indicates the caller passed something that is neither a
// file path nor an encoded byte buffer.
var ErrInvalidInput = errors.New("input must be a file path or an image byte buffer")

// DecodeError wraps codec failures (corrupt bytes, unsupported format,
// missing file).
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image from %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Load resolves an arbitrary input into a decoded color image. Accepted
// input kinds are a path (string) and encoded bytes ([]byte); anything else
// fails with ErrInvalidInput before any decode work.
func Load(src any) (image.Image, error) {
	switch v := src.(type) {
	case string:
		return LoadFile(v)
	case []byte:
		return Decode(v)
	case nil:
		return nil, fmt.Errorf("no input provided: %w", ErrInvalidInput)
	default:
		return nil, fmt.Errorf("unsupported input type %T: %w", src, ErrInvalidInput)
	}
}

// LoadFile opens and decodes an image file.
func LoadFile(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", ErrInvalidInput)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	img, err := Decode(data)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}
	return img, nil
}

// Decode decodes an encoded image buffer into a color raster.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Source: "buffer", Err: errors.New("empty buffer")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Source: "buffer", Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Source: "buffer", Err: errors.New("empty raster")}
	}
	return img, nil
}

// EncodePNG encodes an image to PNG bytes with best compression, matching
// the export path used for extracted regions.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToGray converts an image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
