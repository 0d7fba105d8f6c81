// Package server exposes the detection pipeline over HTTP: multipart image
// uploads in, the pipeline's result shapes out, plus health, metrics and a
// websocket stream.
package server

import (
	"image"
	"net/http"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

// pipelineInterface is the subset of the pipeline the server needs; tests
// substitute a stub.
type pipelineInterface interface {
	DetectAndDecode(img image.Image) (*pipeline.DecodeResult, error)
	DetectAndDecodeMultiple(img image.Image) (*pipeline.MultiResult, error)
	HasQRCode(img image.Image) (*pipeline.DetectResult, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    pipelineInterface
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server around a freshly built pipeline.
func NewServer(config Config) (*Server, error) {
	pl := pipeline.NewBuilder().
		WithRegionPadding(config.PipelineConfig.RegionPadding).
		Build()

	return &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/qr/decode", s.corsMiddleware(s.decodeHandler))
	mux.HandleFunc("/qr/decode-multi", s.corsMiddleware(s.decodeMultiHandler))
	mux.HandleFunc("/qr/detect", s.corsMiddleware(s.detectHandler))
	mux.HandleFunc("/qr/stream", s.streamHandler)
}
