package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
)

const wsWriteTimeout = 5 * time.Second

// wsClient is a single WebSocket connection managed by a Hub.
type wsClient struct {
	id   string
	mode layout.Mode
	send chan refresh.Snapshot
}

// Hub manages the WebSocket clients and fans every scheduler snapshot out
// to them. Each client renders the heatmap in its own mode.
type Hub struct {
	sched Scheduler
	log   *slog.Logger

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	count      atomic.Int64
}

// NewHub creates a new Hub fed by sched.
func NewHub(sched Scheduler, log *slog.Logger) *Hub {
	return &Hub{
		sched:      sched,
		log:        log.With("component", "ws"),
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Run is the Hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	subID, snaps := h.sched.Subscribe(16)
	defer h.sched.Unsubscribe(subID)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.count.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Info("client connected", "id", c.id, "mode", c.mode.String(), "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int64(len(h.clients)))
				h.log.Info("client disconnected", "id", c.id, "clients", len(h.clients))
			}
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			for c := range h.clients {
				select {
				case c.send <- snap:
				default:
					// Slow client, drop it.
					close(c.send)
					delete(h.clients, c)
					h.count.Store(int64(len(h.clients)))
					h.log.Warn("dropping slow client", "id", c.id)
				}
			}
		}
	}
}

// ServeHTTP accepts a WebSocket, registers it, sends the current heatmap,
// then pushes a new one for every later snapshot. The optional "mode" query
// parameter selects the layout mode.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mode, err := layout.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	c := &wsClient{id: uuid.NewString(), mode: mode, send: make(chan refresh.Snapshot, 4)}
	ctx := conn.CloseRead(r.Context())

	// Register before reading the snapshot so no publish can fall between
	// the initial send and the first push.
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	case <-ctx.Done():
		return
	}

	if err := h.write(ctx, conn, BuildHeatmapResponse(h.sched.Snapshot(), mode)); err != nil {
		h.leave(c)
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.leave(c)
			return
		case snap, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "closing")
				return
			}
			if err := h.write(ctx, conn, BuildHeatmapResponse(snap, c.mode)); err != nil {
				h.log.Debug("websocket write", "id", c.id, "error", err)
				h.leave(c)
				return
			}
		}
	}
}

func (h *Hub) leave(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
