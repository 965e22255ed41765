package model

import (
	"strings"
	"time"
)

// TransferBlock — один «отправленный» набор: не больше одного текста и любое число файлов.
// Живёт 24 часа, можно продлить до конца следующего дня. После expires_at блок уходит
// из выдачи, но ещё сутки лежит помеченным (is_expired) и может быть продлён обратно,
// затем удаляется чистильщиком.
type TransferBlock struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	IsExpired bool       `json:"is_expired"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	TextItems []TextItem `json:"text_items"`
	FileItems []FileItem `json:"file_items"`
}

// TextItem — текстовое содержимое блока (хранится уже обрезанным по пробелам).
type TextItem struct {
	ID        string    `json:"id"`
	BlockID   string    `json:"block_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FileItem — метаданные файла; сами байты лежат в blob-хранилище по url.
type FileItem struct {
	ID        string    `json:"id"`
	BlockID   string    `json:"block_id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	IsImage   bool      `json:"is_image"`
	CreatedAt time.Time `json:"created_at"`
}

// IsImageType классифицирует media type по префиксу "image/".
func IsImageType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}
