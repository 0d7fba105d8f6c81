package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/raster"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the CORS configuration of the
		// deployment; the stream endpoint accepts any origin.
		return true
	},
}

// StreamRequest is one frame sent by a streaming client. Image carries the
// encoded image bytes (base64 via JSON); Mode selects the operation.
type StreamRequest struct {
	Mode      string `json:"mode"` // "decode", "decode-multi" or "detect"
	Image     []byte `json:"image"`
	RequestID string `json:"request_id,omitempty"`
}

// StreamResponse wraps one detection result or error.
type StreamResponse struct {
	Status    string `json:"status"` // "completed" or "error"
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// streamHandler upgrades the connection and answers detection requests
// frame by frame until the client disconnects.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep-alive pings.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleStreamMessage(conn, data)
		}
	}
}

// handleStreamMessage processes one request frame.
func (s *Server) handleStreamMessage(conn *websocket.Conn, data []byte) {
	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendStreamResponse(conn, StreamResponse{
			Status: "error",
			Error:  fmt.Sprintf("Failed to parse request: %v", err),
		})
		return
	}

	if len(req.Image) == 0 {
		s.sendStreamResponse(conn, StreamResponse{
			Status:    "error",
			Error:     "No image data provided",
			RequestID: req.RequestID,
		})
		return
	}

	img, err := raster.Decode(req.Image)
	if err != nil {
		s.sendStreamResponse(conn, StreamResponse{
			Status:    "error",
			Error:     fmt.Sprintf("Failed to decode image: %v", err),
			RequestID: req.RequestID,
		})
		return
	}

	var result any
	switch req.Mode {
	case "", "decode":
		result, err = s.pipeline.DetectAndDecode(img)
	case "decode-multi":
		result, err = s.pipeline.DetectAndDecodeMultiple(img)
	case "detect":
		result, err = s.pipeline.HasQRCode(img)
	default:
		s.sendStreamResponse(conn, StreamResponse{
			Status:    "error",
			Error:     "Unsupported mode: " + req.Mode,
			RequestID: req.RequestID,
		})
		return
	}
	if err != nil {
		s.sendStreamResponse(conn, StreamResponse{
			Status:    "error",
			Error:     fmt.Sprintf("Detection failed: %v", err),
			RequestID: req.RequestID,
		})
		return
	}

	s.sendStreamResponse(conn, StreamResponse{
		Status:    "completed",
		Result:    result,
		RequestID: req.RequestID,
	})
}

func (s *Server) sendStreamResponse(conn *websocket.Conn, response StreamResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
