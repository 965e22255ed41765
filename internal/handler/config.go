package handler

import (
	"net/http"

	"github.com/sharepass/internal/config"
)

// ConfigHandler отдаёт публичные параметры конфигурации клиенту.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetClientConfig — GET /api/config/client: лимиты и публичный VAPID-ключ (без авторизации).
func (h *ConfigHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"max_upload_size":    h.cfg.MaxUploadSize,
		"session_ttl_hours":  int(h.cfg.SessionTTL.Hours()),
		"block_ttl_hours":    int(h.cfg.BlockTTL.Hours()),
		"push_enabled":       h.cfg.PushVAPIDPublicKey != "",
	}
	if h.cfg.PushVAPIDPublicKey != "" {
		resp["vapid_public_key"] = h.cfg.PushVAPIDPublicKey
	}
	writeJSON(w, http.StatusOK, resp)
}
