package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

// GenerateQR renders a QR code carrying text as a size x size image with the
// default quiet zone.
func GenerateQR(t *testing.T, text string, size int) image.Image {
	t.Helper()

	q, err := qrcode.New(text, qrcode.Medium)
	require.NoError(t, err, "Failed to build QR code for %q", text)

	return q.Image(size)
}

// GenerateQRPNG returns the PNG bytes of a QR code carrying text.
func GenerateQRPNG(t *testing.T, text string, size int) []byte {
	t.Helper()

	data, err := qrcode.Encode(text, qrcode.Medium, size)
	require.NoError(t, err, "Failed to encode QR code for %q", text)

	return data
}

// EmbedOnCanvas places img on a larger background canvas at the given offset.
// Useful for testing region extraction against known symbol positions.
func EmbedOnCanvas(img image.Image, width, height, offsetX, offsetY int, background color.Color) image.Image {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	target := img.Bounds().Add(image.Pt(offsetX, offsetY).Sub(img.Bounds().Min))
	draw.Draw(canvas, target, img, img.Bounds().Min, draw.Over)
	return canvas
}

// ReduceContrast compresses the luminance range of img into [low, high],
// simulating a washed-out photo that defeats a plain decode attempt.
func ReduceContrast(img image.Image, low, high uint8) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	span := float64(high) - float64(low)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			v := float64(low) + float64(g.Y)/255.0*span
			out.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return out
}

// AddSaltPepper flips roughly fraction of the pixels to pure black or white.
// The seed keeps fixtures deterministic across runs.
func AddSaltPepper(img image.Image, fraction float64, seed int64) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	rng := rand.New(rand.NewSource(seed))
	total := bounds.Dx() * bounds.Dy()
	hits := int(float64(total) * fraction)
	for i := 0; i < hits; i++ {
		x := bounds.Min.X + rng.Intn(bounds.Dx())
		y := bounds.Min.Y + rng.Intn(bounds.Dy())
		v := uint8(0)
		if rng.Intn(2) == 1 {
			v = 255
		}
		out.SetGray(x, y, color.Gray{Y: v})
	}
	return out
}

// Invert flips the luminance of every pixel, producing a white-on-black
// symbol.
func Invert(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.SetGray(x, y, color.Gray{Y: 255 - g.Y})
		}
	}
	return out
}

// Downscale shrinks img to the given width, preserving aspect ratio.
func Downscale(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}
