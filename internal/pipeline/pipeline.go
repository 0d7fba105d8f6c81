// Package pipeline drives the adaptive multi-strategy QR detection cascade:
// it retries the reading capability across an ordered catalog of image
// transforms, remaps coordinates back to the original geometry, extracts the
// matched region, and assembles the public result shapes.
package pipeline

import (
	"image"

	"github.com/MeKo-Tech/qrlens/internal/preprocess"
	"github.com/MeKo-Tech/qrlens/internal/qr"
	"github.com/MeKo-Tech/qrlens/internal/raster"
)

// Config holds pipeline tuning.
type Config struct {
	// RegionPadding is the extra margin, in original-image pixels, around
	// the symbol's bounding box in the exported crop.
	RegionPadding int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{RegionPadding: 10}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	reader qr.Reader
}

// NewBuilder creates a builder with defaults and the production reader.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), reader: qr.NewGozxingReader()}
}

// WithReader injects a reading capability (used by tests and alternative
// backends).
func (b *Builder) WithReader(r qr.Reader) *Builder {
	if r != nil {
		b.reader = r
	}
	return b
}

// WithRegionPadding overrides the exported-region padding.
func (b *Builder) WithRegionPadding(px int) *Builder {
	if px >= 0 {
		b.cfg.RegionPadding = px
	}
	return b
}

// Build assembles the pipeline. The catalog is fixed at build time so every
// call walks the same deterministic strategy order.
func (b *Builder) Build() *Pipeline {
	return &Pipeline{cfg: b.cfg, reader: b.reader, catalog: preprocess.Catalog()}
}

// Pipeline is a stateless-per-call detection cascade. A single instance may
// serve concurrent calls; every invocation owns its own derived rasters.
type Pipeline struct {
	cfg     Config
	reader  qr.Reader
	catalog []preprocess.Strategy
}

// New returns a pipeline with default configuration and the production
// reader.
func New() *Pipeline { return NewBuilder().Build() }

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// DetectAndDecode runs the full decode cascade on a decoded raster.
func (p *Pipeline) DetectAndDecode(img image.Image) (*DecodeResult, error) {
	win, attempts, err := p.runDecodeCascade(img)
	if err != nil {
		return nil, err
	}
	if win == nil {
		return &DecodeResult{Detected: false, Data: nil, Attempts: attempts}, nil
	}

	corners := remapPoints(win.corners, win.scaleFactor)
	res := &DecodeResult{
		Detected: true,
		Data:     &win.text,
		Corners:  corners,
		Strategy: win.strategy,
		Attempts: attempts,
	}
	if len(corners) >= 4 {
		uri, err := p.extractRegion(img, corners)
		if err != nil {
			return nil, &CapabilityError{Strategy: win.strategy, Err: err}
		}
		res.QRCodeImage = uri
	}
	return res, nil
}

// DetectAndDecodeMultiple runs the decode cascade and reports the result in
// the multi-symbol shape. The reader yields at most one symbol, so the
// count is 0 or 1.
func (p *Pipeline) DetectAndDecodeMultiple(img image.Image) (*MultiResult, error) {
	single, err := p.DetectAndDecode(img)
	if err != nil {
		return nil, err
	}
	if !single.Detected {
		return &MultiResult{Detected: false, Count: 0, QRCodes: []QRCode{}, Attempts: single.Attempts}, nil
	}
	return &MultiResult{
		Detected: true,
		Count:    1,
		QRCodes: []QRCode{{
			Data:        *single.Data,
			Corners:     single.Corners,
			QRCodeImage: single.QRCodeImage,
		}},
		Strategy: single.Strategy,
		Attempts: single.Attempts,
	}, nil
}

// HasQRCode runs the fast detect-only cascade: the raw image, then only the
// leading catalog strategies. No decoding or region extraction happens.
func (p *Pipeline) HasQRCode(img image.Image) (*DetectResult, error) {
	attempts := 0

	corners, err := p.reader.Detect(img)
	attempts++
	if err != nil {
		return nil, &CapabilityError{Strategy: "original", Err: err}
	}
	if len(corners) > 0 {
		return &DetectResult{HasQRCode: true, Corners: corners, Strategy: "original", Attempts: attempts}, nil
	}

	b := img.Bounds()
	base := preprocess.Grayscale(img)
	for _, s := range p.catalog[:preprocess.DetectStages] {
		if s.Applies != nil && !s.Applies(b.Dx(), b.Dy()) {
			continue
		}
		candidate := s.Apply(base)
		attempts++
		corners, err = p.reader.Detect(candidate)
		if err != nil {
			return nil, &CapabilityError{Strategy: s.Name, Err: err}
		}
		if len(corners) > 0 {
			return &DetectResult{
				HasQRCode: true,
				Corners:   remapPoints(corners, s.ScaleFactor),
				Strategy:  s.Name,
				Attempts:  attempts,
			}, nil
		}
	}

	return &DetectResult{HasQRCode: false, Attempts: attempts}, nil
}

// DetectAndDecodeInput loads a path or byte buffer and decodes it.
func (p *Pipeline) DetectAndDecodeInput(src any) (*DecodeResult, error) {
	img, err := raster.Load(src)
	if err != nil {
		return nil, err
	}
	return p.DetectAndDecode(img)
}

// DetectAndDecodeMultipleInput loads a path or byte buffer and decodes it in
// the multi-symbol shape.
func (p *Pipeline) DetectAndDecodeMultipleInput(src any) (*MultiResult, error) {
	img, err := raster.Load(src)
	if err != nil {
		return nil, err
	}
	return p.DetectAndDecodeMultiple(img)
}

// HasQRCodeInput loads a path or byte buffer and checks for symbol presence.
func (p *Pipeline) HasQRCodeInput(src any) (*DetectResult, error) {
	img, err := raster.Load(src)
	if err != nil {
		return nil, err
	}
	return p.HasQRCode(img)
}

// runDecodeCascade tries the raw image first, then every applicable catalog
// strategy in order, stopping at the first non-empty decoded text. A nil
// winning attempt with a nil error means the catalog was exhausted.
func (p *Pipeline) runDecodeCascade(img image.Image) (*attempt, int, error) {
	attempts := 0

	text, corners, err := p.reader.DetectAndDecode(img)
	attempts++
	if err != nil {
		return nil, attempts, &CapabilityError{Strategy: "original", Err: err}
	}
	if text != "" {
		return &attempt{strategy: "original", text: text, corners: corners, scaleFactor: 1.0}, attempts, nil
	}

	b := img.Bounds()
	base := preprocess.Grayscale(img)
	for _, s := range p.catalog {
		if s.Applies != nil && !s.Applies(b.Dx(), b.Dy()) {
			continue
		}
		candidate := s.Apply(base)
		attempts++
		text, corners, err = p.reader.DetectAndDecode(candidate)
		if err != nil {
			return nil, attempts, &CapabilityError{Strategy: s.Name, Err: err}
		}
		if text != "" {
			return &attempt{strategy: s.Name, text: text, corners: corners, scaleFactor: s.ScaleFactor}, attempts, nil
		}
	}

	return nil, attempts, nil
}

// remapPoints maps corners detected in a scaled intermediate back to the
// original image's pixel space. Downstream consumers only ever see
// original-space coordinates.
func remapPoints(points []qr.Point, scaleFactor float64) []qr.Point {
	if len(points) == 0 {
		return nil
	}
	if scaleFactor == 1.0 || scaleFactor == 0 {
		out := make([]qr.Point, len(points))
		copy(out, points)
		return out
	}
	out := make([]qr.Point, len(points))
	for i, pt := range points {
		out[i] = qr.Point{X: pt.X / scaleFactor, Y: pt.Y / scaleFactor}
	}
	return out
}
