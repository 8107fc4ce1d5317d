package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/dual_signal_sim/stream"
)

// wsHub fans frames out to connected WebSocket clients. All connection
// writes happen on the run goroutine, which is the single writer gorilla
// requires.
type wsHub struct {
	upgrader  websocket.Upgrader
	frames    *stream.Publisher[StepFrame]
	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	stop      chan struct{}
}

func newHub(frames *stream.Publisher[StepFrame]) *wsHub {
	hub := &wsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		frames:    frames,
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 16),
		stop:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *wsHub) run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
			// A late joiner gets the most recent frame immediately instead
			// of waiting for the next step.
			if frame, ok := h.frames.Latest(); ok {
				if data, err := json.Marshal(frame); err == nil {
					h.send(conn, data)
				}
			}
		case conn := <-h.remove:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case msg := <-h.broadcast:
			for conn := range h.clients {
				h.send(conn, msg)
			}
		case <-h.stop:
			for conn := range h.clients {
				delete(h.clients, conn)
				conn.Close()
			}
			return
		}
	}
}

// send writes one message and evicts the client on failure. Only called
// from run().
func (h *wsHub) send(conn *websocket.Conn, msg []byte) {
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		GetLogger().Warnf("Failed to send frame to WebSocket client: %v", err)
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *wsHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		GetLogger().Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.stop:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.remove <- conn:
			case <-h.stop:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					GetLogger().Warnf("WebSocket error: %v", err)
				}
				break
			}
			// Inbound messages are ignored; control goes through the REST API.
		}
	}()
}

func (h *wsHub) broadcastFrame(frame StepFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		GetLogger().Errorf("Failed to marshal frame for WebSocket: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop the frame rather than stall the step loop's forwarder.
	}
}

// shutdown closes every client connection and stops the run loop.
func (h *wsHub) shutdown() {
	close(h.stop)
}
