package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// WebServer provides the HTTP and WebSocket surface over a RunManager.
type WebServer struct {
	manager *RunManager
	hub     *wsHub
	server  *http.Server
	unsub   func()
}

// NewWebServer builds the server and starts forwarding live frames to the
// WebSocket hub.
func NewWebServer(addr string, manager *RunManager) *WebServer {
	ws := &WebServer{
		manager: manager,
		hub:     newHub(manager.Frames()),
	}
	ws.server = &http.Server{
		Addr:    addr,
		Handler: NewRouter(ws),
	}

	frames, cancel := manager.Frames().Subscribe()
	ws.unsub = cancel
	go func() {
		for frame := range frames {
			ws.hub.broadcastFrame(frame)
		}
	}()
	return ws
}

func (ws *WebServer) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/simulation/initialize", ws.handleInitialize)
	mux.HandleFunc("/api/simulation/start", ws.handleStart)
	mux.HandleFunc("/api/simulation/stop", ws.handleStop)
	mux.HandleFunc("/api/simulation/status", ws.handleStatus)
	mux.HandleFunc("/api/simulation/comparison", ws.handleComparison)
	mux.HandleFunc("/api/simulation/results", ws.handleResults)
	mux.HandleFunc("/api/simulation/decisions", ws.handleDecisions)
	mux.HandleFunc("/api/scenarios/list", ws.handleScenarioList)
	mux.HandleFunc("/api/scenarios/", ws.handleScenarioByID)
	mux.HandleFunc("/ws", ws.handleWebSocket)
	mux.Handle("/", http.FileServer(http.Dir("web/static")))
}

// Start starts the HTTP server in a goroutine.
func (ws *WebServer) Start() error {
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			GetLogger().Errorf("HTTP server: %v", err)
		}
	}()
	GetLogger().Infof("listening on %s", ws.server.Addr)
	return nil
}

// Shutdown stops the HTTP server, the frame forwarder, and the hub.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.unsub()
	ws.hub.shutdown()
	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.hub.handle(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		GetLogger().Warnf("encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses: bad initialize input is
// the client's fault, everything else is a server-side condition.
func writeError(w http.ResponseWriter, err error) {
	var invalid *InvalidScenarioError
	status := http.StatusInternalServerError
	if errors.As(err, &invalid) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
