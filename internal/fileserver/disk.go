// Package fileserver — хранилища байтов файлов: локальный диск и S3.
// Метаданные (имя, размер, тип) живут в БД; здесь только байты и их раздача.
package fileserver

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/sharepass/internal/logger"
)

// Блокируем только опасные расширения (исполняемые/скрипты). Остальные — разрешены.
var BlockedExt = map[string]bool{
	".exe": true, ".sh": true, ".js": true, ".bat": true, ".cmd": true,
	".php": true, ".py": true, ".rb": true,
}

// ErrBlockedType — расширение файла из чёрного списка.
var ErrBlockedType = fmt.Errorf("file type not allowed")

// DiskStore хранит файлы в каталоге на диске, в сжатом виде (.gz) для экономии места.
// Имя на диске — uuid + расширение; наружу отдаётся url вида /api/files/{имя}.
type DiskStore struct {
	Dir     string
	BaseURL string
}

// NewDiskStore создаёт хранилище. baseURL — префикс публичного url (обычно "/api/files").
func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Save пишет байты на диск и возвращает url для скачивания.
func (s *DiskStore) Save(ctx context.Context, name, mediaType string, data io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if BlockedExt[ext] {
		return "", ErrBlockedType
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("diskStore.Save mkdir: %w", err)
	}
	newName := uuid.New().String() + ext
	dstPath := filepath.Join(s.Dir, newName+".gz")
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("diskStore.Save create: %w", err)
	}
	gz := gzip.NewWriter(dst)
	if err := copyWithContext(ctx, gz, data); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("diskStore.Save copy: %w", err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("diskStore.Save gzip close: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("diskStore.Save close: %w", err)
	}
	return s.BaseURL + "/" + newName, nil
}

// Delete удаляет байты по url. Отсутствующий файл — не ошибка (идемпотентно).
func (s *DiskStore) Delete(ctx context.Context, fileURL string) error {
	name := filepath.Base(fileURL)
	if name == "." || name == "/" || name == "" {
		return nil
	}
	// Подчищаем и сжатый, и старый незжатый вариант
	var firstErr error
	for _, p := range []string{filepath.Join(s.Dir, name+".gz"), filepath.Join(s.Dir, name)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			firstErr = err
		}
	}
	return firstErr
}

// Serve отдаёт файл по имени (разархивирует при отдаче); query name= — исходное имя для Content-Disposition.
func (s *DiskStore) Serve(w http.ResponseWriter, r *http.Request, filename string) {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	gzPath := filepath.Join(s.Dir, filename+".gz")
	plainPath := filepath.Join(s.Dir, filename)

	if ct := ContentTypeByExt(ext); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if origName := r.URL.Query().Get("name"); origName != "" {
		// В URL пробел может приходить как "+"; нормализуем, чтобы скачанный файл сохранял имя.
		origName = strings.TrimSpace(strings.ReplaceAll(origName, "+", " "))
		if safe := safeFilename(origName); safe != "" {
			disp := "attachment; filename*=UTF-8''" + url.QueryEscape(safe)
			if ascii := asciiFallbackFilename(safe); ascii != "" && ascii == safe {
				disp = "attachment; filename=\"" + ascii + "\"; filename*=UTF-8''" + url.QueryEscape(safe)
			}
			w.Header().Set("Content-Disposition", disp)
		}
	}

	// Сначала сжатый .gz, иначе — обычный файл (обратная совместимость)
	if f, err := os.Open(gzPath); err == nil {
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			http.Error(w, `{"error":"failed to read file"}`, http.StatusInternalServerError)
			return
		}
		defer gz.Close()
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, gz); err != nil {
			logger.Errorf("fileserver serve %s: %v", filename, err)
		}
		return
	}
	if f, err := os.Open(plainPath); err == nil {
		defer f.Close()
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}
	http.Error(w, `{"error":"file not found"}`, http.StatusNotFound)
}

// ContentTypeByExt — Content-Type по расширению для типичных вложений.
func ContentTypeByExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".mp4":
		return "video/mp4"
	case ".zip":
		return "application/zip"
	}
	return ""
}

// safeFilename оставляет имя безопасным для Content-Disposition (без управляющих символов и кавычек).
// UTF-8 сохраняется, чтобы не терять кириллицу и другие языки.
func safeFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\r', '\n', '"', '\\', '/', '\x00':
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// asciiFallbackFilename — имя только из ASCII для legacy filename= в Content-Disposition.
func asciiFallbackFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}
}
