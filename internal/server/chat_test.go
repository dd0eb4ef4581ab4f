package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sogacsa/neonagent/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Fakes for chat handler tests
// ---------------------------------------------------------------------------

// fakeRunner implements the runner interface for tests. It records the
// arguments of its last invocation and returns a canned result.
type fakeRunner struct {
	mu sync.Mutex
	// lastMessage and lastSummary capture the arguments of the last Run call.
	lastMessage string
	lastSummary string
	// result is returned from every Run call.
	result *pipeline.Result
}

func (f *fakeRunner) Run(_ context.Context, message, priorSummary string) *pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessage = message
	f.lastSummary = priorSummary
	if f.result != nil {
		return f.result
	}
	return &pipeline.Result{Answer: "respuesta", Summary: "resumen"}
}

// fakeSessions implements session.Store in memory for handler tests.
type fakeSessions struct {
	mu sync.Mutex
	// summaries maps session ID to stored summary.
	summaries map[string]string
	// turns counts SaveTurn invocations.
	turns int
	// summaryErr, if set, is returned from Summary.
	summaryErr error
	// saveErr, if set, is returned from SaveTurn.
	saveErr error
}

func (f *fakeSessions) Summary(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return f.summaries[sessionID], nil
}

func (f *fakeSessions) SaveTurn(_ context.Context, sessionID, _, _, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.summaries == nil {
		f.summaries = make(map[string]string)
	}
	f.summaries[sessionID] = summary
	f.turns++
	return nil
}

func (f *fakeSessions) Close() error { return nil }

// newTestServer builds a *Server with a fake runner and a fresh metrics
// registry so tests stay hermetic.
func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		runner:  &fakeRunner{},
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(reg),
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — validation error paths
// ---------------------------------------------------------------------------

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"session_id":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_BlankMessage(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for whitespace-only message, got %d", w.Code)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — success paths
// ---------------------------------------------------------------------------

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{result: &pipeline.Result{
		Answer:  "El compresor requiere mantenimiento cada 4000 horas.",
		Summary: "Usuario pregunta por mantenimiento del compresor.",
		Metrics: &pipeline.StageMetrics{Model: "test-model"},
	}}
	s := newTestServer()
	s.runner = run

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"¿Cada cuánto se cambia el aceite?","session_id":"sess-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != run.result.Answer {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.Summary != run.result.Summary {
		t.Errorf("summary: got %q", resp.Summary)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session_id: expected echo of sess-1, got %q", resp.SessionID)
	}
	if resp.Metrics == nil {
		t.Error("expected metrics in response")
	}
}

func TestHandleChat_MintsSessionID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected minted session_id for request without one")
	}
}

func TestHandleChat_LoadsStoredSummary(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{}
	sessions := &fakeSessions{summaries: map[string]string{
		"sess-2": "resumen previo",
	}}
	s := newTestServer()
	s.runner = run
	s.sessions = sessions

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"sigue","session_id":"sess-2"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if run.lastSummary != "resumen previo" {
		t.Errorf("expected stored summary to reach pipeline, got %q", run.lastSummary)
	}
	if sessions.turns != 1 {
		t.Errorf("expected 1 persisted turn, got %d", sessions.turns)
	}
}

func TestHandleChat_ClientSummaryWins(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{}
	sessions := &fakeSessions{summaries: map[string]string{
		"sess-3": "resumen almacenado",
	}}
	s := newTestServer()
	s.runner = run
	s.sessions = sessions

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"sigue","session_id":"sess-3","summary":"resumen del cliente"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if run.lastSummary != "resumen del cliente" {
		t.Errorf("expected client summary to win, got %q", run.lastSummary)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — store degradation paths
// ---------------------------------------------------------------------------

// TestHandleChat_SummaryLoadFailure verifies that a store read error degrades
// to an empty prior summary rather than failing the request.
func TestHandleChat_SummaryLoadFailure(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{}
	s := newTestServer()
	s.runner = run
	s.sessions = &fakeSessions{summaryErr: errors.New("db locked")}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hola","session_id":"sess-4"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite store read failure, got %d", w.Code)
	}
	if run.lastSummary != "" {
		t.Errorf("expected empty prior summary, got %q", run.lastSummary)
	}
}

// TestHandleChat_SaveTurnFailure verifies that a persistence failure after a
// successful pipeline run does not affect the client response.
func TestHandleChat_SaveTurnFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.sessions = &fakeSessions{saveErr: errors.New("disk full")}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hola","session_id":"sess-5"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite persistence failure, got %d", w.Code)
	}
	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer == "" {
		t.Error("expected answer in response")
	}
}
