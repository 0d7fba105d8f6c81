package qr

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/MeKo-Tech/qrlens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGozxingReader_DetectAndDecode(t *testing.T) {
	img := testutil.GenerateQR(t, "hello world", 256)

	reader := NewGozxingReader()
	text, corners, err := reader.DetectAndDecode(img)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	require.GreaterOrEqual(t, len(corners), 4, "expected a full corner quad")

	b := img.Bounds()
	for _, c := range corners {
		assert.GreaterOrEqual(t, c.X, 0.0)
		assert.GreaterOrEqual(t, c.Y, 0.0)
		assert.LessOrEqual(t, c.X, float64(b.Dx()))
		assert.LessOrEqual(t, c.Y, float64(b.Dy()))
	}
}

func TestGozxingReader_Detect(t *testing.T) {
	img := testutil.GenerateQR(t, "detect me", 256)

	reader := NewGozxingReader()
	corners, err := reader.Detect(img)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(corners), 4)
}

func TestGozxingReader_NothingFoundIsNotAnError(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 128, 128))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	reader := NewGozxingReader()

	text, corners, err := reader.DetectAndDecode(blank)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, corners)

	corners, err = reader.Detect(blank)
	require.NoError(t, err)
	assert.Empty(t, corners)
}

func TestCompleteQuad(t *testing.T) {
	t.Run("three finder points gain a fourth", func(t *testing.T) {
		// bottom-left, top-left, top-right of an axis-aligned square.
		points := []Point{{X: 10, Y: 90}, {X: 10, Y: 10}, {X: 90, Y: 10}}
		quad := completeQuad(points)
		require.Len(t, quad, 4)
		assert.Equal(t, Point{X: 90, Y: 90}, quad[3])
		// Order of the reported points is preserved.
		assert.Equal(t, points[0], quad[0])
		assert.Equal(t, points[1], quad[1])
		assert.Equal(t, points[2], quad[2])
	})

	t.Run("skewed parallelogram", func(t *testing.T) {
		quad := completeQuad([]Point{{X: 5, Y: 80}, {X: 12, Y: 8}, {X: 95, Y: 16}})
		require.Len(t, quad, 4)
		assert.InDelta(t, 88.0, quad[3].X, 1e-9)
		assert.InDelta(t, 88.0, quad[3].Y, 1e-9)
	})

	t.Run("other counts pass through", func(t *testing.T) {
		assert.Nil(t, completeQuad(nil))
		assert.Len(t, completeQuad([]Point{{X: 1, Y: 1}}), 1)
		assert.Len(t, completeQuad([]Point{{}, {}, {}, {}}), 4)
	})
}
