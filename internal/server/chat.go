package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sogacsa/neonagent/internal/logging"
)

// handleChat handles POST /api/chat. It validates the request, resolves the
// session's rolling summary, runs the pipeline, persists the completed turn,
// and responds with the answer, updated summary, and per-stage metrics.
//
// Validation failures are the only client-visible errors: the pipeline itself
// always produces a usable result, so a well-formed request never gets an
// error status from this handler.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// A client-supplied summary wins; otherwise fall back to the stored one.
	// A store read failure degrades to an empty summary rather than failing
	// the request.
	summary := req.Summary
	if summary == "" && s.sessions != nil {
		stored, err := s.sessions.Summary(r.Context(), sessionID)
		if err != nil {
			log.Warn("chat: failed to load session summary",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		} else {
			summary = stored
		}
	}

	s.metrics.chatActiveRequests.Inc()
	start := time.Now()
	result := s.runner.Run(r.Context(), req.Message, summary)
	elapsed := time.Since(start)
	s.metrics.chatActiveRequests.Dec()

	outcome := "ok"
	if result.Metrics != nil && len(result.Metrics.Errors) > 0 {
		outcome = "degraded"
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if s.sessions != nil {
		if err := s.sessions.SaveTurn(r.Context(), sessionID, req.Message, result.Answer, result.Summary); err != nil {
			// Persistence is best-effort: the client still gets its answer
			// and the new summary to carry forward itself.
			log.Warn("chat: failed to persist turn",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		}
	}

	resp := chatResponse{
		Answer:    result.Answer,
		Summary:   result.Summary,
		SessionID: sessionID,
		Metrics:   result.Metrics,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("chat: encode response", slog.Any("error", err))
	}
}
