package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/raster"
	"github.com/MeKo-Tech/qrlens/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// decodeHandler runs the single-symbol decode cascade on an uploaded image.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.parseImageUpload(w, r, "decode")
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.pipeline.DetectAndDecode(img)
	if err != nil {
		qrRequestsTotal.WithLabelValues("decode", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.recordRequest("decode", res.Detected, res.Attempts, time.Since(start))
	writeJSON(w, res)
}

// decodeMultiHandler runs the decode cascade in the multi-symbol shape.
func (s *Server) decodeMultiHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.parseImageUpload(w, r, "decode_multi")
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.pipeline.DetectAndDecodeMultiple(img)
	if err != nil {
		qrRequestsTotal.WithLabelValues("decode_multi", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.recordRequest("decode_multi", res.Detected, res.Attempts, time.Since(start))
	writeJSON(w, res)
}

// detectHandler runs the fast presence check on an uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	img, ok := s.parseImageUpload(w, r, "detect")
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.pipeline.HasQRCode(img)
	if err != nil {
		qrRequestsTotal.WithLabelValues("detect", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.recordRequest("detect", res.HasQRCode, res.Attempts, time.Since(start))
	writeJSON(w, res)
}

// parseImageUpload validates the request and decodes the uploaded image.
// On failure it writes the error response and returns ok=false.
func (s *Server) parseImageUpload(w http.ResponseWriter, r *http.Request, endpoint string) (image.Image, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		qrRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		qrRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		qrRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		qrRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}

	img, err := raster.Decode(data)
	if err != nil {
		qrRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		var de *raster.DecodeError
		if errors.As(err, &de) {
			s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		} else {
			s.writeErrorResponse(w, "Failed to load image", http.StatusBadRequest)
		}
		return nil, false
	}

	return img, true
}

// recordRequest updates the per-endpoint metrics after a successful call.
func (s *Server) recordRequest(endpoint string, detected bool, attempts int, duration time.Duration) {
	outcome := "not_found"
	if detected {
		outcome = "found"
	}
	qrRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	qrProcessingDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	qrStrategyAttempts.WithLabelValues(endpoint).Observe(float64(attempts))
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Success: false, Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
