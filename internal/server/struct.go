package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sogacsa/neonagent/internal/pipeline"
	"github.com/sogacsa/neonagent/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// It must cover the full pipeline run, including slow LLM generations.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations. If nil a
	// fresh private registry is created, keeping tests hermetic.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Must gather from the
	// same registry the metrics were registered against.
	MetricsGatherer prometheus.Gatherer
}

// runner is the interface handleChat calls to execute one chat turn.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type runner interface {
	// Run executes the full chat pipeline for one user message and prior
	// summary. It never fails — degradations surface in the result metrics.
	Run(ctx context.Context, message, priorSummary string) *pipeline.Result
}

// Server is the HTTP server that exposes the chat pipeline.
type Server struct {
	// runner executes the chat pipeline; set to the real pipeline in
	// production, overridden by a fake in tests.
	runner runner
	// sessions persists rolling summaries per session. May be nil, in which
	// case clients must carry the summary themselves.
	sessions session.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instrumentation for this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language question.
	Message string `json:"message"`
	// SessionID identifies the conversation. A new one is minted when empty.
	SessionID string `json:"session_id,omitempty"`
	// Summary optionally carries the rolling summary client-side. When empty
	// and session persistence is enabled, the stored summary is used instead.
	Summary string `json:"summary,omitempty"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Answer is the grounded answer text.
	Answer string `json:"answer"`
	// Summary is the updated rolling summary for the session.
	Summary string `json:"summary"`
	// SessionID echoes (or mints) the conversation identifier.
	SessionID string `json:"session_id"`
	// Metrics holds the per-stage latency accounting for this request.
	Metrics *pipeline.StageMetrics `json:"metrics"`
}
