// Package qr wraps the QR symbol reading capability behind a small
// interface so the detection pipeline can be driven against fakes.
package qr

import "image"

// Point is a corner coordinate in the pixel space of the image that was
// handed to the reader.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reader locates and decodes a single QR symbol in an image.
//
// Both operations report "nothing found" as empty results with a nil error;
// a non-nil error always means the capability itself faulted. Corner order
// is reader-defined and must be passed through unchanged.
type Reader interface {
	// Detect locates a symbol without decoding it.
	Detect(img image.Image) ([]Point, error)

	// DetectAndDecode locates and decodes a symbol, returning the decoded
	// text and its corners.
	DetectAndDecode(img image.Image) (string, []Point, error)
}
