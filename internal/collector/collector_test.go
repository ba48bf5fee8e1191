package collector

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-streamer/internal/infrastructure/logger"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func startCollector(t *testing.T, onFrame func(FrameInfo)) (*Collector, *httptest.Server) {
	t.Helper()
	base, _ := test.NewNullLogger()
	c := New(logger.FromEntry(logrus.NewEntry(base)), onFrame)

	mux := http.NewServeMux()
	mux.Handle("/stream", c)
	mux.Handle("/", c.StatusHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return c, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func TestCollectorInspectsFrames(t *testing.T) {
	var (
		mutex sync.Mutex
		infos []FrameInfo
	)
	c, srv := startCollector(t, func(info FrameInfo) {
		mutex.Lock()
		infos = append(infos, info)
		mutex.Unlock()
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodeJPEG(t, 256, 144)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodeJPEG(t, 64, 48)))

	require.Eventually(t, func() bool { return c.Stats().Frames == 3 }, 2*time.Second, 5*time.Millisecond)

	mutex.Lock()
	require.Len(t, infos, 3)
	assert.Equal(t, 256, infos[0].Width)
	assert.Equal(t, 144, infos[0].Height)
	assert.Equal(t, "jpeg", infos[0].Format)
	assert.Error(t, infos[1].Err)
	assert.Equal(t, 64, infos[2].Width)
	mutex.Unlock()

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.InvalidFrames)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 48, stats.LastFrame.Height)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	require.Eventually(t, func() bool { return c.Stats().ActiveSessions == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestCollectorCountsSessions(t *testing.T) {
	c, srv := startCollector(t, nil)

	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodeJPEG(t, 8, 8)))
		conn.Close()
	}

	require.Eventually(t, func() bool {
		s := c.Stats()
		return s.Sessions == 3 && s.Frames == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCollectorStatusPage(t *testing.T) {
	_, srv := startCollector(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Принято кадров: 0")
}

func TestCollectorRejectsPlainHTTP(t *testing.T) {
	_, srv := startCollector(t, nil)

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
