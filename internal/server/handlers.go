package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"turbolearn/internal/auth"
	"turbolearn/internal/chat"
	"turbolearn/internal/llm"
)

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Messages  []apiMessage `json:"messages"`
	Provider  string       `json:"provider"`
	Image     *string      `json:"image"`
	UserID    string       `json:"userId"`
	SessionID string       `json:"sessionId,omitempty"`
}

// handleAsk streams one provider's reply as incremental plain text.
// Admission failures come back as JSON before the first byte; once
// streaming has begun a broken stream just ends the body.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	provider, err := llm.ParseProvider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	image := ""
	if req.Image != nil {
		image = *req.Image
	}

	flusher, _ := w.(http.Flusher)
	wrote := false
	sink := func(chunk string) {
		if !wrote {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			wrote = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	_, err = s.orch.Stream(r.Context(), chat.Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Provider:  provider,
		Messages:  messages,
		Image:     image,
	}, sink)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client stopped generation; nothing left to send.
			return
		}
		if wrote {
			log.Printf("stream to %s broke mid-response: %v", req.UserID, err)
			return
		}
		writeError(w, err)
	}
}

type turnRequest struct {
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId,omitempty"`
	Text      string   `json:"text"`
	Image     *string  `json:"image"`
	Providers []string `json:"providers,omitempty"`
}

type turnProviderResult struct {
	Provider string `json:"provider"`
	Reply    string `json:"reply,omitempty"`
	Error    string `json:"error,omitempty"`
}

type turnResponse struct {
	SessionID string               `json:"sessionId"`
	Results   []turnProviderResult `json:"results"`
}

// handleTurn runs the full per-turn fan-out and returns both replies at
// once. The streaming surface is /api/ask; this one serves callers that
// want a single round trip.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	providers := make([]llm.Provider, 0, len(req.Providers))
	for _, raw := range req.Providers {
		p, err := llm.ParseProvider(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		providers = append(providers, p)
	}
	image := ""
	if req.Image != nil {
		image = *req.Image
	}

	result, err := s.orch.SendTurn(r.Context(), chat.TurnRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      req.Text,
		Image:     image,
		Providers: providers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := turnResponse{SessionID: result.SessionID}
	for _, pr := range result.Results {
		out := turnProviderResult{Provider: pr.Provider.String(), Reply: pr.Reply}
		if pr.Err != nil && !errors.Is(pr.Err, context.Canceled) {
			out.Error = errorMessage(pr.Err)
			out.Reply = ""
		}
		resp.Results = append(resp.Results, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	UserID string `json:"userId"`
}

// handleRegister records a login after external authentication: first
// contact creates a pending record, later calls refresh last-login.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, err := s.authSvc.Register(r.Context(), req.UserID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.authSvc.Authorize(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	sessions, err := s.store.SessionsByUser(u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSession deletes one session and its turns. Owner only; admins
// included since they own their sessions like anyone else.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.authSvc.Authorize(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.URL.Query().Get("id")
	sess, ok, err := s.store.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok || sess.UserID != u.ID {
		writeError(w, auth.ErrForbidden)
		return
	}
	if err := s.store.DeleteSession(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.authSvc.Authorize(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	sess, ok, err := s.store.GetSession(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok || sess.UserID != u.ID {
		writeError(w, auth.ErrForbidden)
		return
	}
	turns, err := s.store.TurnsBySession(sessionID, r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}
