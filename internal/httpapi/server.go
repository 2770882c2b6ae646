// Package httpapi exposes the gateway's HTTP surface: session creation, the
// chat endpoint with its confirmation sentinels, and the per-session event
// log.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentgate/agentgate/internal/engine"
	"github.com/agentgate/agentgate/internal/eventlog"
	"github.com/agentgate/agentgate/internal/session"
)

// Confirmation sentinels. A chat message that equals one of these (after
// trimming, case-insensitive) resolves the session's pending action instead
// of being treated as user input.
const (
	SentinelConfirmYes = "[terminal confirm]: yes"
	SentinelConfirmNo  = "[terminal confirm]: no"
)

// Options configures the HTTP server.
type Options struct {
	Engine   *engine.Engine
	Store    *session.Store
	EventLog *eventlog.Service // may be nil; disables the log endpoint's data
	SafeMode bool
	// AuthToken, when set, requires "Authorization: Bearer <token>" on every
	// endpoint except the health check.
	AuthToken string
	Version   string
}

// Server serves the gateway API.
type Server struct {
	engine    *engine.Engine
	store     *session.Store
	eventLog  *eventlog.Service
	safeMode  bool
	authToken string
	version   string

	srv *http.Server
}

// NewServer creates a server from options.
func NewServer(opts Options) *Server {
	return &Server{
		engine:    opts.Engine,
		store:     opts.Store,
		eventLog:  opts.EventLog,
		safeMode:  opts.SafeMode,
		authToken: opts.AuthToken,
		version:   opts.Version,
	}
}

// Handler returns the route table. Exposed separately so tests can drive it
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /session", s.withAuth(s.handleCreateSession))
	mux.HandleFunc("POST /chat", s.withAuth(s.handleChat))
	mux.HandleFunc("GET /session/{id}/messages", s.withAuth(s.handleMessages))
	mux.HandleFunc("GET /session/{id}/log", s.withAuth(s.handleLog))
	return mux
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server listening", "addr", addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.authToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token != s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.store.Create()
	slog.Info("Session created", "session_id", id)
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// SafeMode overrides the server default for this turn when present.
	SafeMode *bool `json:"safe_mode,omitempty"`
}

type chatResponse struct {
	SessionID      string            `json:"session_id"`
	Messages       []session.Message `json:"messages"`
	PendingCommand string            `json:"pending_command,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}
	if !s.store.Exists(req.SessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	input, err := s.turnInput(req)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	safeMode := s.safeMode
	if req.SafeMode != nil {
		safeMode = *req.SafeMode
	}

	res, err := s.engine.RunTurn(r.Context(), req.SessionID, input, safeMode)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	resp := chatResponse{SessionID: req.SessionID, Messages: res.NewMessages}
	if res.Pending != nil {
		resp.PendingCommand = res.Pending.Command
	}
	writeJSON(w, http.StatusOK, resp)
}

// turnInput maps a chat message to turn input, special-casing the
// confirmation sentinels.
func (s *Server) turnInput(req chatRequest) (engine.TurnInput, error) {
	switch strings.ToLower(strings.TrimSpace(req.Message)) {
	case SentinelConfirmYes:
		pending, err := s.store.Pending(req.SessionID)
		if err != nil {
			return engine.TurnInput{}, err
		}
		if pending == nil {
			return engine.TurnInput{}, &engine.ProtocolError{Reason: "confirmation received but no action is pending"}
		}
		return engine.TurnInput{ConfirmedCommand: pending.Command}, nil
	case SentinelConfirmNo:
		return engine.TurnInput{Reject: true}, nil
	default:
		return engine.TurnInput{UserInput: req.Message}, nil
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.store.Messages(id)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   msgs,
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Exists(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	entries := []eventlog.Entry{}
	if s.eventLog != nil {
		var err error
		entries, err = s.eventLog.Events(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("read event log: %v", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     entries,
	})
}

// writeTurnError maps engine and store errors to HTTP status codes. Protocol
// violations are conflicts: the client's view of the session disagrees with
// the server's.
func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	var perr *engine.ProtocolError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.As(err, &perr):
		writeError(w, http.StatusConflict, perr.Error())
	default:
		slog.Error("Turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
