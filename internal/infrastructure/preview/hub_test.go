package preview

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"photo-studio/internal/domain"
	"photo-studio/internal/infrastructure/raster"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

func startHub(t *testing.T, options Options) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(raster.NewJPEGEncoder(), nopLogger{}, options)
	srv := httptest.NewServer(hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		require.NoError(t, hub.Close())
		srv.Close()
	})

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return hub, conn
}

func frame(n int, ts time.Time) domain.VideoFrame {
	return domain.VideoFrame{
		Image:     image.NewRGBA(image.Rect(0, 0, 32, 24)),
		Number:    n,
		Facing:    domain.FacingFront,
		Timestamp: ts,
	}
}

func TestHub_BroadcastsJPEGFrames(t *testing.T) {
	hub, conn := startHub(t, Options{Quality: 0.7})

	hub.PublishFrame(frame(1, time.Now()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 24, cfg.Height)
	assert.Equal(t, uint64(1), hub.Stats().Published)
}

func TestHub_ThrottlesByMaxFPS(t *testing.T) {
	hub, _ := startHub(t, Options{MaxFPS: 10, Quality: 0.5})

	base := time.Now()
	hub.PublishFrame(frame(1, base))
	hub.PublishFrame(frame(2, base.Add(20*time.Millisecond)))
	hub.PublishFrame(frame(3, base.Add(120*time.Millisecond)))

	stats := hub.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Skipped)
}

func TestHub_SkipsEncodingWithoutClients(t *testing.T) {
	hub := NewHub(raster.NewJPEGEncoder(), nopLogger{}, Options{})
	defer hub.Close()

	hub.PublishFrame(frame(1, time.Now()))
	assert.Equal(t, uint64(0), hub.Stats().Published)
	assert.Equal(t, uint64(1), hub.Stats().Skipped)
}

func TestHub_PublishStatus(t *testing.T) {
	hub, conn := startHub(t, Options{})

	require.NoError(t, hub.PublishStatus(domain.CaptureStatus{State: domain.StateStreaming, Facing: domain.FacingBack}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var msg struct {
		Type   string `json:"type"`
		Status struct {
			State  string `json:"state"`
			Facing string `json:"facing"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, "streaming", msg.Status.State)
	assert.Equal(t, "back", msg.Status.Facing)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, conn := startHub(t, Options{})

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(raster.NewJPEGEncoder(), nopLogger{}, Options{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// Новые подключения после Close отклоняются
	late, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer late.Close()
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
