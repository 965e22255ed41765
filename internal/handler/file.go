package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/sharepass/internal/fileserver"
)

// FileHandler раздаёт байты файлов из blob-хранилища.
type FileHandler struct {
	store fileserver.Store
}

func NewFileHandler(store fileserver.Store) *FileHandler {
	return &FileHandler{store: store}
}

// Serve — GET /api/files/{filename}; query name= — исходное имя для скачивания.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	if filename == "" || filename == "." || filename == "/" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	h.store.Serve(w, r, filename)
}
