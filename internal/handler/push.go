package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sharepass/internal/service"
	"github.com/sharepass/internal/storage"
)

// PushHandler — подписка устройств сессии на Web Push.
type PushHandler struct {
	sessionSvc *service.SessionService
	store      storage.Store
}

func NewPushHandler(sessionSvc *service.SessionService, store storage.Store) *PushHandler {
	return &PushHandler{sessionSvc: sessionSvc, store: store}
}

type subscribeRequest struct {
	SessionID    string          `json:"session_id"`
	Subscription json.RawMessage `json:"subscription"`
}

type unsubscribeRequest struct {
	SessionID string `json:"session_id"`
	Endpoint  string `json:"endpoint"`
}

// Subscribe — POST /api/push/subscribe: сохраняет браузерную подписку для сессии.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Endpoint нужен как ключ подписки
	var sub struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(req.Subscription, &sub); err != nil || sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "subscription endpoint required")
		return
	}
	sess, err := h.sessionSvc.GetValid(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.store.AddPushSubscription(r.Context(), sess.ID, sub.Endpoint, req.Subscription); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unsubscribe — DELETE /api/push/subscribe: удаляет подписку по endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "session_id and endpoint required")
		return
	}
	if err := h.store.RemovePushSubscription(r.Context(), req.SessionID, req.Endpoint); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
