package main

import (
	"net/http"
	"strings"
)

const apiPrefix = "/api/"

// Router wires HTTP/WS handlers for the server. API paths with no handler
// get a JSON 404 instead of falling through to the static file server.
type Router struct {
	mux *http.ServeMux
}

// NewRouter constructs router with provided handlers.
func NewRouter(server *WebServer) *Router {
	mux := http.NewServeMux()
	server.registerHandlers(mux)
	return &Router{mux: mux}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r == nil || r.mux == nil {
		http.NotFound(w, req)
		return
	}
	GetLogger().Debugf("%s %s", req.Method, req.URL.Path)
	handler, pattern := r.mux.Handler(req)
	if pattern == "/" && strings.HasPrefix(req.URL.Path, apiPrefix) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown endpoint"})
		return
	}
	handler.ServeHTTP(w, req)
}
