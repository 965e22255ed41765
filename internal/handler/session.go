package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sharepass/internal/middleware"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/service"
)

type SessionHandler struct {
	sessionSvc *service.SessionService
}

func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

type createSessionRequest struct {
	DeviceID string `json:"device_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Password  string `json:"password"`
	ExpiresAt string `json:"expires_at"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		Password:  s.Password,
		ExpiresAt: s.ExpiresAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Create — POST /api/sessions: действующая сессия устройства или новая.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.sessionSvc.CreateOrGet(r.Context(), req.DeviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

type validateSessionRequest struct {
	Password string `json:"password"`
}

// Validate — POST /api/sessions/validate: вход по паролю с другого устройства.
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.sessionSvc.Validate(r.Context(), req.Password, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}
