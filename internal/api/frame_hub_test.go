package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err, "resp=%v", resp)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) FrameEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event FrameEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHubStreamsFrames(t *testing.T) {
	hub := NewFrameHub()
	uc, clock := newTestUseCase(t, hub)
	server := httptest.NewServer(NewServer(uc, nil, hub))
	defer server.Close()

	conn := dialHub(t, server)

	first := readEvent(t, conn)
	assert.Equal(t, "frame", first.Type)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, frameImagePath(0, uc.Snapshot().Frames[0]), first.Image)
	assert.Equal(t, 1, hub.Clients())

	clock.Fire()
	next := readEvent(t, conn)
	assert.Equal(t, 1, next.Index)
	assert.Equal(t, "2023년 12월 31일 20시 15분", next.Label)

	require.NoError(t, uc.Seek(47))
	last := readEvent(t, conn)
	assert.Equal(t, 47, last.Index)
	assert.Contains(t, last.Locator, "tm=20240101000500")
}

func TestHubDropsDisconnectedViewers(t *testing.T) {
	hub := NewFrameHub()
	uc, _ := newTestUseCase(t, hub)
	server := httptest.NewServer(NewServer(uc, nil, hub))
	defer server.Close()

	conn := dialHub(t, server)
	readEvent(t, conn)
	require.Equal(t, 1, hub.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
