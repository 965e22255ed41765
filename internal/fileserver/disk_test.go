package fileserver

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSaveServeDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, "/api/files")
	ctx := context.Background()

	url, err := store.Save(ctx, "report.pdf", "application/pdf", strings.NewReader("%PDF-1.4 contents"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/api/files/"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	// На диске лежит сжатая копия, не исходные байты
	name := filepath.Base(url)
	gzPath := filepath.Join(dir, name+".gz")
	_, err = os.Stat(gzPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(gzPath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")

	// Раздача возвращает исходные байты
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/files/"+name+"?name=report.pdf", nil)
	store.Serve(rec, req, name)
	assert.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "%PDF-1.4 contents", string(body))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")

	// Удаление и повторное (идемпотентно)
	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(gzPath)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Delete(ctx, url))
}

func TestDiskStoreBlockedExtension(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "/api/files")
	for _, name := range []string{"malware.exe", "script.sh", "run.BAT"} {
		_, err := store.Save(context.Background(), name, "application/octet-stream", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrBlockedType, "ext of %q must be blocked", name)
	}
}

func TestDiskStoreServeNotFound(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "/api/files")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/files/missing.txt", nil)
	store.Serve(rec, req, "missing.txt")
	assert.Equal(t, 404, rec.Code)
}

func TestDiskStoreServeCyrillicName(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, "/api/files")

	url, err := store.Save(context.Background(), "отчёт.txt", "text/plain", strings.NewReader("данные"))
	require.NoError(t, err)
	name := filepath.Base(url)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/files/"+name+"?name=%D0%BE%D1%82%D1%87%D1%91%D1%82.txt", nil)
	store.Serve(rec, req, name)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=UTF-8''")
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", safeFilename(" report.pdf "))
	assert.Equal(t, "ab", safeFilename("a\r\nb"))
	assert.Equal(t, "отчёт.txt", safeFilename("отчёт.txt"))
	assert.Equal(t, "", safeFilename("   "))
}

func TestContentTypeByExt(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeByExt(".png"))
	assert.Equal(t, "image/jpeg", ContentTypeByExt(".JPG"))
	assert.Equal(t, "", ContentTypeByExt(".unknown"))
}
