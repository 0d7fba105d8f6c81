package pipeline

import (
	"fmt"

	"github.com/MeKo-Tech/qrlens/internal/qr"
)

// DecodeResult is the single-symbol decode outcome. Corners are always in
// the coordinate space of the original input image. QRCodeImage is a
// data:image/png;base64 URI of the padded crop around the symbol, present
// only when at least four corners were obtained.
type DecodeResult struct {
	Detected    bool       `json:"detected"`
	Data        *string    `json:"data"`
	Corners     []qr.Point `json:"corners,omitempty"`
	QRCodeImage string     `json:"qrCodeImage,omitempty"`
	Strategy    string     `json:"strategy,omitempty"`
	Attempts    int        `json:"attempts"`
}

// QRCode is one decoded symbol inside a MultiResult.
type QRCode struct {
	Data        string     `json:"data"`
	Corners     []qr.Point `json:"corners,omitempty"`
	QRCodeImage string     `json:"qrCodeImage,omitempty"`
}

// MultiResult is the multi-symbol decode outcome. The underlying reader
// reports at most one symbol per image, so Count is 0 or 1; the slice shape
// leaves room for a multi-capable reader.
type MultiResult struct {
	Detected bool     `json:"detected"`
	Count    int      `json:"count"`
	QRCodes  []QRCode `json:"qrCodes"`
	Strategy string   `json:"strategy,omitempty"`
	Attempts int      `json:"attempts"`
}

// DetectResult is the detect-only outcome; no decoding, no region export.
type DetectResult struct {
	HasQRCode bool       `json:"hasQRCode"`
	Corners   []qr.Point `json:"corners,omitempty"`
	Strategy  string     `json:"strategy,omitempty"`
	Attempts  int        `json:"attempts"`
}

// CapabilityError reports a fault inside the reading capability or a
// transform during a specific strategy attempt. It aborts the whole call;
// it is never used for the ordinary "no symbol found" outcome.
type CapabilityError struct {
	Strategy string
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability failure during strategy %q: %v", e.Strategy, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// attempt is the transient record of one cascade step.
type attempt struct {
	strategy    string
	text        string
	corners     []qr.Point
	scaleFactor float64
}
