package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(srv.streamHandler))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/qr/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func roundTrip(t *testing.T, conn *websocket.Conn, req StreamRequest) StreamResponse {
	t.Helper()

	payload, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp StreamResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestStreamHandler_Decode(t *testing.T) {
	text := "streamed"
	srv := newTestServer(&stubPipeline{
		decodeResult: &pipeline.DecodeResult{Detected: true, Data: &text, Attempts: 1},
	})
	conn := dialStream(t, srv)

	resp := roundTrip(t, conn, StreamRequest{
		Mode:      "decode",
		Image:     encodedPNG(t),
		RequestID: "req-1",
	})

	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Result)
}

func TestStreamHandler_DetectMode(t *testing.T) {
	srv := newTestServer(&stubPipeline{
		detectResult: &pipeline.DetectResult{HasQRCode: false, Attempts: 3},
	})
	conn := dialStream(t, srv)

	resp := roundTrip(t, conn, StreamRequest{Mode: "detect", Image: encodedPNG(t)})
	assert.Equal(t, "completed", resp.Status)
}

func TestStreamHandler_DefaultsToDecode(t *testing.T) {
	text := "default mode"
	srv := newTestServer(&stubPipeline{
		decodeResult: &pipeline.DecodeResult{Detected: true, Data: &text, Attempts: 1},
	})
	conn := dialStream(t, srv)

	resp := roundTrip(t, conn, StreamRequest{Image: encodedPNG(t)})
	assert.Equal(t, "completed", resp.Status)
}

func TestStreamHandler_Errors(t *testing.T) {
	srv := newTestServer(&stubPipeline{})
	conn := dialStream(t, srv)

	t.Run("missing image", func(t *testing.T) {
		resp := roundTrip(t, conn, StreamRequest{Mode: "decode", RequestID: "empty"})
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "empty", resp.RequestID)
		assert.Contains(t, resp.Error, "No image data")
	})

	t.Run("corrupt image", func(t *testing.T) {
		resp := roundTrip(t, conn, StreamRequest{Mode: "decode", Image: []byte("junk")})
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.Error, "decode image")
	})

	t.Run("unsupported mode", func(t *testing.T) {
		resp := roundTrip(t, conn, StreamRequest{Mode: "teleport", Image: encodedPNG(t)})
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.Error, "Unsupported mode")
	})
}
