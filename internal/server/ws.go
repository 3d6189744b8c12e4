package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/gorilla/websocket"
)

const (
	// streamBuffer is the per-connection queue of tick results. A client that
	// falls further behind misses ticks.
	streamBuffer = 8
	writeWait    = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// TickMessage is one frame of the live stream.
type TickMessage struct {
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	Events    []gesture.Event `json:"events"`
	Snapshot  *field.Snapshot `json:"snapshot,omitempty"`
}

// StreamHandler pushes every published tick to WebSocket clients. Clients
// may pass ?every=N to receive the mesh only on every Nth tick; events are
// always delivered.
type StreamHandler struct {
	publisher *app.Publisher
}

// NewStreamHandler creates a StreamHandler fed by p.
func NewStreamHandler(p *app.Publisher) *StreamHandler {
	return &StreamHandler{publisher: p}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	every := 1
	if v := r.URL.Query().Get("every"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "every must be a positive integer", http.StatusBadRequest)
			return
		}
		every = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	results, unsubscribe := h.publisher.Subscribe(streamBuffer)
	defer unsubscribe()

	// The read loop only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case res, ok := <-results:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newTickMessage(res, every)); err != nil {
				return
			}
		}
	}
}

func newTickMessage(res *engine.TickResult, every int) TickMessage {
	msg := TickMessage{
		Seq:       res.Seq,
		Timestamp: res.Timestamp,
		Events:    res.Events,
	}
	if msg.Events == nil {
		msg.Events = []gesture.Event{}
	}
	if res.Seq%uint64(every) == 0 {
		snap := res.Snapshot
		msg.Snapshot = &snap
	}
	return msg
}
