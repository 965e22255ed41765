package fileserver

import (
	"context"
	"io"
	"net/http"
)

// Store — хранилище байтов с HTTP-раздачей. Реализации: DiskStore, S3Store.
type Store interface {
	Save(ctx context.Context, name, mediaType string, data io.Reader) (url string, err error)
	Delete(ctx context.Context, url string) error
	Serve(w http.ResponseWriter, r *http.Request, filename string)
}
