package main

import (
	"encoding/json"
	"io"
	"net/http"
)

type initializeResponse struct {
	SessionID     string   `json:"sessionId"`
	Intersections []string `json:"intersections"`
}

func (ws *WebServer) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// An empty body initializes with the process defaults.
	var params InitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
		GetLogger().Debugf("initialize: bad request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ids, err := ws.manager.Initialize(params)
	if err != nil {
		GetLogger().Debugf("initialize rejected: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initializeResponse{
		SessionID:     ws.manager.Status().SessionID,
		Intersections: ids,
	})
}

func (ws *WebServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := ws.manager.Start(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.manager.Status())
}

func (ws *WebServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := ws.manager.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.manager.Status())
}
