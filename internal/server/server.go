package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"turbolearn/internal/auth"
	"turbolearn/internal/chat"
	"turbolearn/internal/llm"
	"turbolearn/internal/ratelimit"
	"turbolearn/internal/storage"
	"turbolearn/internal/store"
)

// Server is the HTTP surface in front of the orchestrator: the
// streaming ask endpoint, session/history reads, and the admin
// workflow endpoints.
type Server struct {
	authSvc  *auth.Service
	orch     *chat.Orchestrator
	store    *store.Store
	recorder storage.Recorder
	server   *http.Server
	port     int
}

func New(authSvc *auth.Service, orch *chat.Orchestrator, st *store.Store, recorder storage.Recorder, port int) *Server {
	return &Server{authSvc: authSvc, orch: orch, store: st, recorder: recorder, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/turn", s.handleTurn)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/admin/users", s.handleAdminUsers)
	mux.HandleFunc("/api/admin/approve", s.handleAdminApprove)
	mux.HandleFunc("/api/admin/ban", s.handleAdminBan)
	mux.HandleFunc("/api/admin/role", s.handleAdminRole)
	mux.HandleFunc("/api/admin/stats", s.handleAdminStats)
	return mux
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
		// No WriteTimeout: token streams outlive any reasonable fixed
		// bound; the orchestrator carries its own per-stream timeout.
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	log.Printf("starting chat gateway on :%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the admission/streaming error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, llm.ErrUnsupportedProvider):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal detail out of responses: only taxonomy
// errors pass through verbatim.
func errorMessage(err error) string {
	if statusFor(err) != http.StatusInternalServerError {
		return err.Error()
	}
	return chat.ErrUpstream.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": errorMessage(err)})
}
