// Package server exposes the HTTP surface: meditation session endpoints,
// the synchronized SSE event stream, audio retrieval, profiles and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mindwave-labs/mindwave-core/internal/audiocache"
	"github.com/mindwave-labs/mindwave-core/internal/bus"
	"github.com/mindwave-labs/mindwave-core/internal/meditation"
	"github.com/mindwave-labs/mindwave-core/internal/pipeline"
	"github.com/mindwave-labs/mindwave-core/internal/protocol"
	"github.com/mindwave-labs/mindwave-core/internal/userstore"
)

type Server struct {
	logger      *slog.Logger
	meditation  *meditation.Service
	pipeline    *pipeline.Pipeline
	cache       *audiocache.Cache
	bus         *bus.Client // nil when the bus is disabled
	metrics     http.Handler
	audioFormat string
	ready       func() bool
}

func New(
	svc *meditation.Service,
	pl *pipeline.Pipeline,
	cache *audiocache.Cache,
	busClient *bus.Client,
	metrics http.Handler,
	audioFormat string,
	ready func() bool,
	logger *slog.Logger,
) *Server {
	return &Server{
		logger:      logger.With(slog.String("component", "http")),
		meditation:  svc,
		pipeline:    pl,
		cache:       cache,
		bus:         busClient,
		metrics:     metrics,
		audioFormat: audioFormat,
		ready:       ready,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/meditation/session", s.handleCreateSession)
	mux.HandleFunc("POST /v1/meditation/session/stream", s.handleScriptStream)
	mux.HandleFunc("POST /v1/meditation/session/events", s.handleEventStream)
	mux.HandleFunc("GET /v1/meditation/audio/{session}/{seq}", s.handleAudio)
	mux.HandleFunc("POST /v1/meditation/session/{session}/feedback", s.handleFeedback)
	mux.HandleFunc("GET /v1/users/{user}/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /v1/users/{user}/profile", s.handlePutProfile)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleCreateSession generates a complete script in one response, for
// clients that do their own pacing.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodePayload(w, r)
	if !ok {
		return
	}
	sessionID := s.meditation.NewSessionID()
	script, err := s.meditation.GenerateScript(r.Context(), sessionID, payload)
	if err != nil {
		s.logger.Warn("script generation failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "script generation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"user_id":    payload.UserID,
		"script":     script,
	})
}

// handleScriptStream streams raw script text over SSE, without audio.
func (s *Server) handleScriptStream(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodePayload(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	sessionID := s.meditation.NewSessionID()
	err := s.meditation.StreamScript(r.Context(), sessionID, payload, func(text string) error {
		return writeSSE(w, flusher, []byte(text))
	})
	if err != nil {
		s.logger.Warn("script stream ended with error",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}
	_ = writeSSE(w, flusher, []byte("[DONE]"))
}

// handleEventStream is the synchronized text and audio stream: one SSE data
// line per pipeline event, strictly ordered.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodePayload(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	sessionID := s.meditation.NewSessionID()
	s.announce(protocol.SubjectSessionStarted, sessionID, payload.UserID, "")

	segments := 0
	source := func(ctx context.Context, consumer func(string) error) error {
		return s.meditation.StreamScript(ctx, sessionID, payload, consumer)
	}
	emit := func(evt protocol.StreamEvent) error {
		if evt.Seq > segments {
			segments = evt.Seq
		}
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return writeSSE(w, flusher, data)
	}

	if err := s.pipeline.Run(r.Context(), sessionID, payload.Voice, source, emit); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("meditation stream failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
		s.announce(protocol.SubjectSessionFailed, sessionID, payload.UserID, err.Error())
		return
	}
	s.announceCompleted(sessionID, payload.UserID, segments)
}

// handleAudio serves one cached audio chunk.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seq must be an integer"})
		return
	}
	data, ok := s.cache.Fetch(sessionID, seq)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "audio chunk not found"})
		return
	}
	w.Header().Set("Content-Type", audioContentType(s.audioFormat))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    string `json:"user_id"`
		Summary   string `json:"summary"`
		Technique string `json:"technique_used"`
		Feedback  string `json:"user_feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if body.UserID == "" || body.Summary == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and summary are required"})
		return
	}
	err := s.meditation.SaveFeedback(r.Context(), userstore.SessionMemory{
		SessionID: r.PathValue("session"),
		UserID:    body.UserID,
		Summary:   body.Summary,
		Technique: body.Technique,
		Feedback:  body.Feedback,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save feedback"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok, err := s.meditation.Profile(r.Context(), r.PathValue("user"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "profile lookup failed"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var profile userstore.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	profile.UserID = r.PathValue("user")
	if err := s.meditation.UpdateProfile(r.Context(), profile); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save profile"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) decodePayload(w http.ResponseWriter, r *http.Request) (meditation.ContextPayload, bool) {
	var payload meditation.ContextPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return payload, false
	}
	if payload.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return payload, false
	}
	return payload, true
}

func (s *Server) announce(subject, sessionID, userID, reason string) {
	if s.bus == nil {
		return
	}
	s.bus.Announce(subject, protocol.SessionAnnouncement{
		SessionID: sessionID,
		UserID:    userID,
		Reason:    reason,
	})
}

func (s *Server) announceCompleted(sessionID, userID string, segments int) {
	if s.bus == nil {
		return
	}
	s.bus.Announce(protocol.SubjectSessionCompleted, protocol.SessionAnnouncement{
		SessionID: sessionID,
		UserID:    userID,
		Segments:  segments,
	})
}

func audioContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
