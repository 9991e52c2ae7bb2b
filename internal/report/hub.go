package report

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andresmejia3/emotag/internal/render"
	"github.com/andresmejia3/emotag/internal/types"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	// sendQueue is how many messages a client may lag behind before it misses some.
	sendQueue = 32
)

// Hub broadcasts frame events as JSON to websocket clients on /ws.
type Hub struct {
	// Frames attaches the overlaid frame as JPEG to every message.
	Frames bool

	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*client
	mu       sync.Mutex
	last     *Message
}

// client is one websocket connection; writePump is its only writer.
type client struct {
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*client),
	}
}

// Handler serves /ws, /healthz and /status.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (h *Hub) Report(_ context.Context, ev types.FrameEvent) error {
	msg := NewMessage(ev)
	if h.Frames && ev.Frame != nil {
		var results []types.DetectionResult
		if ev.Result != nil {
			results = append(results, *ev.Result)
			if len(ev.Faces) > 0 {
				results = ev.Faces
			}
		}
		if data, err := render.EncodeJPEG(render.Overlay(ev.Frame, results)); err == nil {
			msg.JPEG = data
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Analyzed {
		msg.JPEG = nil
		h.last = &msg
	}
	// Never wait on a client: one that fell sendQueue messages behind skips this one.
	// Slow or vanished clients are not a presentation failure.
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{send: make(chan []byte, sendQueue)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	go h.writePump(conn, c)
	go func() {
		defer h.removeClient(conn)
		// Clients only send control frames; drain until they leave.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump delivers queued messages and keepalive pings to one client.
// A failed write closes the connection, which ends the read loop.
func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer conn.Close()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Hub) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.mu.Lock()
	payload := map[string]any{
		"ws_clients": len(h.clients),
		"last":       h.last,
	}
	h.mu.Unlock()
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
