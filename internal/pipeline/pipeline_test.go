package pipeline

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrlens/internal/preprocess"
	"github.com/MeKo-Tech/qrlens/internal/qr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReader drives the cascade from tests without a real decoder.
type stubReader struct {
	decode func(img image.Image) (string, []qr.Point, error)
	detect func(img image.Image) ([]qr.Point, error)
}

func (s *stubReader) DetectAndDecode(img image.Image) (string, []qr.Point, error) {
	if s.decode == nil {
		return "", nil, nil
	}
	return s.decode(img)
}

func (s *stubReader) Detect(img image.Image) ([]qr.Point, error) {
	if s.detect == nil {
		return nil, nil
	}
	return s.detect(img)
}

func whiteImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	return img
}

func quad(x0, y0, x1, y1 float64) []qr.Point {
	return []qr.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}}
}

func buildPipeline(r qr.Reader) *Pipeline {
	return NewBuilder().WithReader(r).Build()
}

func TestDetectAndDecode_OriginalSucceeds(t *testing.T) {
	reader := &stubReader{
		decode: func(image.Image) (string, []qr.Point, error) {
			return "payload", quad(20, 20, 80, 80), nil
		},
	}
	p := buildPipeline(reader)

	res, err := p.DetectAndDecode(whiteImage(100, 100))
	require.NoError(t, err)

	assert.True(t, res.Detected)
	require.NotNil(t, res.Data)
	assert.Equal(t, "payload", *res.Data)
	assert.Equal(t, "original", res.Strategy)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, quad(20, 20, 80, 80), res.Corners)
	assert.True(t, strings.HasPrefix(res.QRCodeImage, "data:image/png;base64,"))
}

func TestDetectAndDecode_StopsAtFirstSuccess(t *testing.T) {
	calls := 0
	reader := &stubReader{
		decode: func(image.Image) (string, []qr.Point, error) {
			calls++
			if calls == 3 {
				return "late", quad(10, 10, 40, 40), nil
			}
			return "", nil, nil
		},
	}
	p := buildPipeline(reader)

	res, err := p.DetectAndDecode(whiteImage(64, 64))
	require.NoError(t, err)

	assert.True(t, res.Detected)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls, "cascade must stop after the winning attempt")
	// Attempt 1 is the raw image, attempt 2 the grayscale base, attempt 3 CLAHE.
	assert.Equal(t, "clahe", res.Strategy)
}

func TestDetectAndDecode_RemapsScaledCorners(t *testing.T) {
	base := whiteImage(64, 64)
	reader := &stubReader{
		decode: func(img image.Image) (string, []qr.Point, error) {
			// Succeed only on the 2x upscaled intermediate.
			if img.Bounds().Dx() == 128 {
				return "scaled", quad(20, 20, 100, 100), nil
			}
			return "", nil, nil
		},
	}
	p := buildPipeline(reader)

	res, err := p.DetectAndDecode(base)
	require.NoError(t, err)

	require.True(t, res.Detected)
	assert.Equal(t, "upscale_2x", res.Strategy)
	assert.Equal(t, quad(10, 10, 50, 50), res.Corners, "corners must land in original pixel space")
}

func TestDetectAndDecode_ExhaustedCatalogIsNotAnError(t *testing.T) {
	calls := 0
	reader := &stubReader{
		decode: func(image.Image) (string, []qr.Point, error) {
			calls++
			return "", nil, nil
		},
	}
	p := buildPipeline(reader)

	res, err := p.DetectAndDecode(whiteImage(64, 64))
	require.NoError(t, err)

	assert.False(t, res.Detected)
	assert.Nil(t, res.Data)
	assert.Empty(t, res.Corners)
	assert.Empty(t, res.QRCodeImage)
	// One raw attempt plus every catalog strategy (all apply at this size).
	assert.Equal(t, 1+len(preprocess.Catalog()), res.Attempts)
	assert.Equal(t, res.Attempts, calls)
}

func TestDetectAndDecode_ReaderFaultAborts(t *testing.T) {
	sentinel := errors.New("backend exploded")

	t.Run("on the raw image", func(t *testing.T) {
		reader := &stubReader{
			decode: func(image.Image) (string, []qr.Point, error) {
				return "", nil, sentinel
			},
		}
		_, err := buildPipeline(reader).DetectAndDecode(whiteImage(32, 32))

		var ce *CapabilityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "original", ce.Strategy)
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("mid-cascade", func(t *testing.T) {
		calls := 0
		reader := &stubReader{
			decode: func(image.Image) (string, []qr.Point, error) {
				calls++
				if calls == 2 {
					return "", nil, sentinel
				}
				return "", nil, nil
			},
		}
		_, err := buildPipeline(reader).DetectAndDecode(whiteImage(32, 32))

		var ce *CapabilityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "grayscale", ce.Strategy)
		assert.Equal(t, 2, calls, "the fault must stop the cascade")
	})
}

func TestDetectAndDecode_NoRegionWithoutFullQuad(t *testing.T) {
	reader := &stubReader{
		decode: func(image.Image) (string, []qr.Point, error) {
			return "partial", []qr.Point{{X: 10, Y: 10}, {X: 40, Y: 10}, {X: 10, Y: 40}}, nil
		},
	}
	res, err := buildPipeline(reader).DetectAndDecode(whiteImage(64, 64))
	require.NoError(t, err)

	assert.True(t, res.Detected)
	assert.Len(t, res.Corners, 3)
	assert.Empty(t, res.QRCodeImage, "crop export needs at least four corners")
}

func TestDetectAndDecode_ResultJSONShape(t *testing.T) {
	reader := &stubReader{}
	res, err := buildPipeline(reader).DetectAndDecode(whiteImage(32, 32))
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	// The data field is present and explicitly null when nothing was found.
	assert.Contains(t, string(data), `"data":null`)
	assert.Contains(t, string(data), `"detected":false`)
	assert.NotContains(t, string(data), "corners")
}

func TestDetectAndDecodeMultiple(t *testing.T) {
	t.Run("nothing found", func(t *testing.T) {
		res, err := buildPipeline(&stubReader{}).DetectAndDecodeMultiple(whiteImage(32, 32))
		require.NoError(t, err)

		assert.False(t, res.Detected)
		assert.Equal(t, 0, res.Count)
		require.NotNil(t, res.QRCodes)
		assert.Empty(t, res.QRCodes)

		data, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"qrCodes":[]`)
	})

	t.Run("single symbol", func(t *testing.T) {
		reader := &stubReader{
			decode: func(image.Image) (string, []qr.Point, error) {
				return "multi", quad(10, 10, 50, 50), nil
			},
		}
		res, err := buildPipeline(reader).DetectAndDecodeMultiple(whiteImage(64, 64))
		require.NoError(t, err)

		assert.True(t, res.Detected)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.QRCodes, 1)
		assert.Equal(t, "multi", res.QRCodes[0].Data)
		assert.Equal(t, quad(10, 10, 50, 50), res.QRCodes[0].Corners)
		assert.True(t, strings.HasPrefix(res.QRCodes[0].QRCodeImage, "data:image/png;base64,"))
		assert.Equal(t, "original", res.Strategy)
	})

	t.Run("fault propagates", func(t *testing.T) {
		reader := &stubReader{
			decode: func(image.Image) (string, []qr.Point, error) {
				return "", nil, errors.New("boom")
			},
		}
		_, err := buildPipeline(reader).DetectAndDecodeMultiple(whiteImage(32, 32))
		var ce *CapabilityError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestHasQRCode(t *testing.T) {
	t.Run("found on raw image", func(t *testing.T) {
		reader := &stubReader{
			detect: func(image.Image) ([]qr.Point, error) {
				return quad(5, 5, 25, 25), nil
			},
		}
		res, err := buildPipeline(reader).HasQRCode(whiteImage(32, 32))
		require.NoError(t, err)

		assert.True(t, res.HasQRCode)
		assert.Equal(t, "original", res.Strategy)
		assert.Equal(t, 1, res.Attempts)
		assert.Len(t, res.Corners, 4)
	})

	t.Run("found on a fallback stage", func(t *testing.T) {
		calls := 0
		reader := &stubReader{
			detect: func(image.Image) ([]qr.Point, error) {
				calls++
				if calls == 2 {
					return quad(5, 5, 25, 25), nil
				}
				return nil, nil
			},
		}
		res, err := buildPipeline(reader).HasQRCode(whiteImage(32, 32))
		require.NoError(t, err)

		assert.True(t, res.HasQRCode)
		assert.Equal(t, "grayscale", res.Strategy)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("exhausts only the leading stages", func(t *testing.T) {
		calls := 0
		reader := &stubReader{
			detect: func(image.Image) ([]qr.Point, error) {
				calls++
				return nil, nil
			},
		}
		res, err := buildPipeline(reader).HasQRCode(whiteImage(32, 32))
		require.NoError(t, err)

		assert.False(t, res.HasQRCode)
		assert.Equal(t, 1+preprocess.DetectStages, res.Attempts)
		assert.Equal(t, res.Attempts, calls)
	})

	t.Run("fault aborts", func(t *testing.T) {
		reader := &stubReader{
			detect: func(image.Image) ([]qr.Point, error) {
				return nil, errors.New("boom")
			},
		}
		_, err := buildPipeline(reader).HasQRCode(whiteImage(32, 32))
		var ce *CapabilityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "original", ce.Strategy)
	})
}

func TestInputVariants_RejectUnsupportedInput(t *testing.T) {
	p := buildPipeline(&stubReader{})

	_, err := p.DetectAndDecodeInput(12.5)
	assert.Error(t, err)

	_, err = p.DetectAndDecodeMultipleInput(nil)
	assert.Error(t, err)

	_, err = p.HasQRCodeInput(struct{}{})
	assert.Error(t, err)
}

func TestRemapPoints(t *testing.T) {
	pts := []qr.Point{{X: 30, Y: 60}, {X: 90, Y: 15}}

	t.Run("identity scale copies", func(t *testing.T) {
		out := remapPoints(pts, 1.0)
		assert.Equal(t, pts, out)
		assert.NotSame(t, &pts[0], &out[0])
	})

	t.Run("zero scale treated as identity", func(t *testing.T) {
		assert.Equal(t, pts, remapPoints(pts, 0))
	})

	t.Run("division by the scale factor", func(t *testing.T) {
		out := remapPoints(pts, 1.5)
		assert.InDelta(t, 20.0, out[0].X, 1e-9)
		assert.InDelta(t, 40.0, out[0].Y, 1e-9)
		assert.InDelta(t, 60.0, out[1].X, 1e-9)
		assert.InDelta(t, 10.0, out[1].Y, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, remapPoints(nil, 2.0))
	})
}

func TestBuilder(t *testing.T) {
	p := NewBuilder().WithRegionPadding(25).Build()
	assert.Equal(t, 25, p.Config().RegionPadding)

	// Negative padding is ignored.
	p = NewBuilder().WithRegionPadding(-1).Build()
	assert.Equal(t, DefaultConfig().RegionPadding, p.Config().RegionPadding)

	// A nil reader keeps the default.
	p = NewBuilder().WithReader(nil).Build()
	assert.NotNil(t, p.reader)

	assert.Equal(t, 10, DefaultConfig().RegionPadding)
	assert.NotNil(t, New())
}
