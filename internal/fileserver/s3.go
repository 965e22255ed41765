package fileserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sharepass/internal/logger"
)

// S3Config — доступ к S3-совместимому хранилищу (AWS или MinIO).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // пустой — стандартные эндпоинты AWS
	AccessKey string
	SecretKey string
}

// S3Store хранит байты файлов в бакете; url наружу тот же /api/files/{ключ},
// раздача идёт через Serve (байты проксируются из бакета).
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg S3Config, baseURL string) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3Store: load config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *S3Store) Save(ctx context.Context, name, mediaType string, data io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if BlockedExt[ext] {
		return "", ErrBlockedType
	}
	key := uuid.New().String() + ext
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(mediaType),
	})
	if err != nil {
		return "", fmt.Errorf("s3Store.Save: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, fileURL string) error {
	key := filepath.Base(fileURL)
	if key == "." || key == "/" || key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3Store.Delete: %w", err)
	}
	return nil
}

// Serve проксирует объект из бакета клиенту.
func (s *S3Store) Serve(w http.ResponseWriter, r *http.Request, filename string) {
	key := filepath.Base(filename)
	out, err := s.client.GetObject(r.Context(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		http.Error(w, `{"error":"file not found"}`, http.StatusNotFound)
		return
	}
	defer out.Body.Close()
	if out.ContentType != nil {
		w.Header().Set("Content-Type", *out.ContentType)
	} else if ct := ContentTypeByExt(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if origName := r.URL.Query().Get("name"); origName != "" {
		if safe := safeFilename(strings.ReplaceAll(origName, "+", " ")); safe != "" {
			w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(safe))
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out.Body); err != nil {
		logger.Errorf("s3 serve %s: %v", key, err)
	}
}
