package main

import (
	"net/http"
	"strings"
)

func (ws *WebServer) handleScenarioList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, GetScenarios())
}

func (ws *WebServer) handleScenarioByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/scenarios/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Scenario id required", http.StatusBadRequest)
		return
	}
	scenario, ok := ScenarioByID(id)
	if !ok {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}
