package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sharepass/internal/fileserver"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/service"
)

type TransferHandler struct {
	transferSvc   *service.TransferService
	maxUploadSize int64
}

func NewTransferHandler(transferSvc *service.TransferService, maxUploadSize int64) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc, maxUploadSize: maxUploadSize}
}

type blockResponse struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	TextItems []model.TextItem `json:"text_items"`
	FileItems []model.FileItem `json:"file_items"`
}

func toBlockResponse(b *model.TransferBlock) blockResponse {
	resp := blockResponse{
		ID:        b.ID,
		SessionID: b.SessionID,
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.ExpiresAt,
		TextItems: b.TextItems,
		FileItems: b.FileItems,
	}
	if resp.TextItems == nil {
		resp.TextItems = []model.TextItem{}
	}
	if resp.FileItems == nil {
		resp.FileItems = []model.FileItem{}
	}
	return resp
}

// Create — POST /api/transfers: multipart с полями session_id, text_content и files.
// Файлы передаются в сервис потоками, без буферизации целиком в память.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	// 32 МБ в памяти, остальное во временные файлы
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logger.Errorf("multipart cleanup: %v", err)
			}
		}
	}()

	sessionID := r.FormValue("session_id")
	textContent := r.FormValue("text_content")

	var uploads []service.FileUpload
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read uploaded file")
				return
			}
			defer f.Close()
			mediaType := fh.Header.Get("Content-Type")
			if mediaType == "" {
				mediaType = "application/octet-stream"
			}
			uploads = append(uploads, service.FileUpload{
				Name: fh.Filename,
				Size: fh.Size,
				Type: mediaType,
				Data: f,
			})
		}
	}

	if textContent == "" && len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "text_content or files required")
		return
	}

	block, err := h.transferSvc.CreateBlock(r.Context(), sessionID, textContent, uploads)
	if err != nil {
		if errors.Is(err, fileserver.ErrBlockedType) {
			writeError(w, http.StatusBadRequest, "file type not allowed")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(block))
}

// List — GET /api/transfers/{sessionId}: непросроченные блоки сессии, свежие первыми.
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	blocks, err := h.transferSvc.ListBlocks(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]blockResponse, 0, len(blocks))
	for i := range blocks {
		resp = append(resp, toBlockResponse(&blocks[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": resp})
}

// Extend — PUT /api/transfers/block/{blockId}/extend: продление до конца следующего дня.
func (h *TransferHandler) Extend(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockId")
	sessionID := r.URL.Query().Get("session_id")
	until, err := h.transferSvc.ExtendBlock(r.Context(), sessionID, blockID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expires_at": until})
}

// DeleteBlock — DELETE /api/transfers/block/{blockId}. Повторное удаление — 404.
func (h *TransferHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockId")
	sessionID := r.URL.Query().Get("session_id")
	ok, err := h.transferSvc.DeleteBlock(r.Context(), sessionID, blockID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// DeleteTextItem — DELETE /api/transfers/text/{itemId}.
func (h *TransferHandler) DeleteTextItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	ok, err := h.transferSvc.DeleteTextItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "text item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// DeleteFileItem — DELETE /api/transfers/file/{itemId}.
func (h *TransferHandler) DeleteFileItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	ok, err := h.transferSvc.DeleteFileItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "file item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
