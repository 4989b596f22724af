package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/timeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// FrameEvent is sent to viewers every time a frame is displayed
type FrameEvent struct {
	Type      string    `json:"type"`
	Index     int       `json:"index"`
	Locator   string    `json:"locator"`
	Image     string    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan FrameEvent
}

// FrameHub broadcasts displayed frames to websocket viewers.
// It implements playback.Sink.
type FrameHub struct {
	mu      sync.Mutex
	clients map[string]*hubClient
	last    *FrameEvent
}

// NewFrameHub creates an empty hub
func NewFrameHub() *FrameHub {
	return &FrameHub{clients: make(map[string]*hubClient)}
}

// ShowFrame queues the frame for every connected viewer.
// Viewers that fall behind miss frames instead of blocking playback.
func (h *FrameHub) ShowFrame(index int, frame entities.FrameDescriptor) {
	event := FrameEvent{
		Type:      "frame",
		Index:     index,
		Locator:   frame.Locator,
		Image:     frameImagePath(index, frame),
		Timestamp: frame.Timestamp,
		Label:     timeline.FormatDisplay(frame.Timestamp),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &event
	for _, c := range h.clients {
		select {
		case c.send <- event:
		default:
		}
	}
}

// Clients returns the number of connected viewers
func (h *FrameHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frame events until the viewer disconnects
func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &hubClient{id: uuid.New().String(), conn: conn, send: make(chan FrameEvent, 8)}
	h.mu.Lock()
	h.clients[client.id] = client
	if h.last != nil {
		client.send <- *h.last
	}
	h.mu.Unlock()
	log.Printf("Viewer %s connected", client.id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		conn.Close()
		log.Printf("Viewer %s disconnected", client.id)
	}()

	for {
		select {
		case <-done:
			return
		case event := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Error sending frame to viewer %s: %v", client.id, err)
				return
			}
		}
	}
}
