package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*WebServer, http.Handler) {
	t.Helper()
	ws := NewWebServer(":0", NewRunManager(testConfig()))
	return ws, NewRouter(ws)
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestScenarioListEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/api/scenarios/list", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var scenarios []Scenario
	if err := json.Unmarshal(rec.Body.Bytes(), &scenarios); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(scenarios) < 4 {
		t.Fatalf("expected at least 4 scenarios, got %d", len(scenarios))
	}
}

func TestScenarioDetailEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/scenarios/hospital_junction", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s Scenario
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if s.ID != "hospital_junction" {
		t.Fatalf("expected hospital_junction, got %s", s.ID)
	}

	if rec := doRequest(t, handler, http.MethodGet, "/api/scenarios/ghost", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown scenario, got %d", rec.Code)
	}
}

func TestStatusBeforeInitialize(t *testing.T) {
	_, handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/api/simulation/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status RunStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Initialized || status.Running {
		t.Fatalf("unexpected status before initialize: %+v", status)
	}
}

func TestInitializeEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/simulation/initialize",
		`{"scenario":"single","maxSteps":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp initializeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected session id")
	}
	if len(resp.Intersections) != 1 {
		t.Fatalf("expected 1 intersection for single, got %d", len(resp.Intersections))
	}

	if rec := doRequest(t, handler, http.MethodPost, "/api/simulation/initialize",
		`{"scenario":"ghost"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scenario, got %d", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodGet, "/api/simulation/initialize", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStartStopAndComparisonEndpoints(t *testing.T) {
	ws, handler := newTestServer(t)

	if rec := doRequest(t, handler, http.MethodPost, "/api/simulation/start", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("start before initialize: expected 500, got %d", rec.Code)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/simulation/initialize",
		`{"scenario":"single","maxSteps":50,"vehicleCount":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize failed: %d %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(t, handler, http.MethodPost, "/api/simulation/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("start failed: %d", rec.Code)
	}
	// Stop blocks until the loop drains, so the run is settled afterwards.
	if rec := doRequest(t, handler, http.MethodPost, "/api/simulation/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop failed: %d", rec.Code)
	}

	status := ws.manager.Status()
	if status.Running {
		t.Fatal("run must be settled after stop")
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/simulation/comparison", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("comparison failed: %d", rec.Code)
	}
	var report ComparisonReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode comparison: %v", err)
	}
	if report.Steps != status.StepCount {
		t.Fatalf("report steps %d != status steps %d", report.Steps, status.StepCount)
	}
}

func TestDecisionsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/simulation/decisions?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []DecisionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode decisions: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty log before initialize, got %d", len(records))
	}

	if rec := doRequest(t, handler, http.MethodGet, "/api/simulation/decisions?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
	if rec := doRequest(t, handler, http.MethodGet, "/api/simulation/decisions?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestResultsEndpoint(t *testing.T) {
	ws, handler := newTestServer(t)

	if rec := doRequest(t, handler, http.MethodGet, "/api/simulation/results", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", rec.Code)
	}

	if _, err := ws.manager.RunToCompletion(InitParams{ScenarioID: "single", MaxSteps: 50, VehicleCount: 100}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/simulation/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after completed run, got %d", rec.Code)
	}
	var results RunResults
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.EndReason != EndReasonCompleted {
		t.Fatalf("expected end reason %s, got %s", EndReasonCompleted, results.EndReason)
	}
	if results.Steps != 50 || results.SessionID == "" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestUnknownAPIPathReturnsJSON404(t *testing.T) {
	_, handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
	if resp.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestWebSocketLateJoinerGetsLatestFrame(t *testing.T) {
	ws, handler := newTestServer(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	// Publish a frame before any client connects; the hub must replay it to
	// the late joiner.
	ws.manager.Frames().Publish(StepFrame{Step: 7})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame StepFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Step != 7 {
		t.Fatalf("expected replayed frame step 7, got %d", frame.Step)
	}
}
