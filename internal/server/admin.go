package server

import (
	"encoding/json"
	"net/http"
	"time"

	"turbolearn/internal/analytics"
	"turbolearn/internal/auth"
)

// requireAdmin authorizes the caller and checks the admin role. The
// status gate never blocks admins, so only the role needs checking on
// top of Authorize.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, adminID string) bool {
	u, err := s.authSvc.Authorize(r.Context(), adminID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if u.Role != auth.RoleAdmin {
		writeError(w, auth.ErrForbidden)
		return false
	}
	return true
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r, r.URL.Query().Get("adminId")) {
		return
	}
	users, err := s.authSvc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type adminActionRequest struct {
	AdminID string `json:"adminId"`
	UserID  string `json:"userId"`
	Role    string `json:"role,omitempty"`
}

func (s *Server) decodeAdminAction(w http.ResponseWriter, r *http.Request) (adminActionRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return adminActionRequest{}, false
	}
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return adminActionRequest{}, false
	}
	if !s.requireAdmin(w, r, req.AdminID) {
		return adminActionRequest{}, false
	}
	return req, true
}

func (s *Server) handleAdminApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAdminAction(w, r)
	if !ok {
		return
	}
	if err := s.authSvc.Approve(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(auth.StatusApproved)})
}

func (s *Server) handleAdminBan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAdminAction(w, r)
	if !ok {
		return
	}
	if err := s.authSvc.Ban(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(auth.StatusBanned)})
}

func (s *Server) handleAdminRole(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAdminAction(w, r)
	if !ok {
		return
	}
	if err := s.authSvc.SetRole(r.Context(), req.UserID, auth.Role(req.Role)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}

// handleAdminStats serves the same daily aggregation the nightly report
// logs, for an arbitrary date.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r, r.URL.Query().Get("adminId")) {
		return
	}
	if s.recorder == nil {
		writeJSON(w, http.StatusOK, &analytics.DailyStats{})
		return
	}
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		date = parsed
	}
	events, err := s.recorder.LoadInteractions()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.AnalyzeDailyLogs(events, date))
}
