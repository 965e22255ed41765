package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/repository"
)

// TransferStore — порт хранилища блоков передачи и их содержимого.
type TransferStore interface {
	CreateBlock(ctx context.Context, b *model.TransferBlock) error
	InsertTextItem(ctx context.Context, t *model.TextItem) error
	InsertFileItems(ctx context.Context, items []model.FileItem) error
	ListBySession(ctx context.Context, sessionID string, now time.Time) ([]model.TransferBlock, error)
	ExtendBlock(ctx context.Context, blockID string, until time.Time) (bool, error)
	FileURLsByBlock(ctx context.Context, blockID string) ([]string, error)
	FileURLsExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	GetFileItem(ctx context.Context, itemID string) (*model.FileItem, error)
	DeleteBlock(ctx context.Context, blockID string) (bool, error)
	DeleteTextItem(ctx context.Context, itemID string) (bool, error)
	DeleteFileItem(ctx context.Context, itemID string) (bool, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlobStore — внешнее хранилище байтов файлов. Реализации: fileserver.DiskStore, fileserver.S3Store.
type BlobStore interface {
	Save(ctx context.Context, name, mediaType string, data io.Reader) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// EventSink получает события жизненного цикла блоков (ws-рассылка, пуши). Может быть nil.
type EventSink interface {
	BlockCreated(sessionID string, block *model.TransferBlock)
	BlockExtended(sessionID, blockID string, until time.Time)
	BlockDeleted(sessionID, blockID string)
}

// FileUpload — описатель загружаемого файла на входе сервиса.
type FileUpload struct {
	Name string
	Size int64
	Type string
	Data io.Reader
}

// TransferService — жизненный цикл блоков передачи: создание, листинг, продление, удаление.
type TransferService struct {
	sessions  *SessionService
	transfers TransferStore
	blobs     BlobStore
	events    EventSink
	blockTTL  time.Duration
}

func NewTransferService(sessions *SessionService, transfers TransferStore, blobs BlobStore, events EventSink, blockTTL time.Duration) *TransferService {
	if blockTTL <= 0 {
		blockTTL = 24 * time.Hour
	}
	return &TransferService{sessions: sessions, transfers: transfers, blobs: blobs, events: events, blockTTL: blockTTL}
}

// CreateBlock создаёт блок в действующей сессии. Текст из одних пробелов молча
// отбрасывается (ноль текстовых элементов), непустой — ровно один, уже обрезанный.
// Файлы пишутся в blob-хранилище до вставки метаданных; упавшая вставка после
// создания блока оставляет блок-сироту — принятый компромисс, транзакции тут нет.
func (t *TransferService) CreateBlock(ctx context.Context, sessionID, textContent string, files []FileUpload) (*model.TransferBlock, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	sess, err := t.sessions.GetValid(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	block := &model.TransferBlock{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(t.blockTTL),
		TextItems: []model.TextItem{},
		FileItems: []model.FileItem{},
	}
	if err := t.transfers.CreateBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("transferSvc.CreateBlock: %w", err)
	}

	if trimmed := strings.TrimSpace(textContent); trimmed != "" {
		item := &model.TextItem{
			ID:        uuid.New().String(),
			BlockID:   block.ID,
			Content:   trimmed,
			CreatedAt: now,
		}
		if err := t.transfers.InsertTextItem(ctx, item); err != nil {
			return nil, fmt.Errorf("transferSvc.CreateBlock text: %w", err)
		}
		block.TextItems = append(block.TextItems, *item)
	}

	if len(files) > 0 {
		items := make([]model.FileItem, 0, len(files))
		for _, f := range files {
			url, err := t.blobs.Save(ctx, f.Name, f.Type, f.Data)
			if err != nil {
				return nil, fmt.Errorf("transferSvc.CreateBlock save %q: %w", f.Name, err)
			}
			items = append(items, model.FileItem{
				ID:        uuid.New().String(),
				BlockID:   block.ID,
				Name:      f.Name,
				Size:      f.Size,
				Type:      f.Type,
				URL:       url,
				IsImage:   model.IsImageType(f.Type),
				CreatedAt: now,
			})
		}
		if err := t.transfers.InsertFileItems(ctx, items); err != nil {
			return nil, fmt.Errorf("transferSvc.CreateBlock files: %w", err)
		}
		block.FileItems = items
	}

	if t.events != nil {
		t.events.BlockCreated(sess.ID, block)
	}
	return block, nil
}

// ListBlocks — непросроченные блоки сессии с содержимым, свежие первыми.
func (t *TransferService) ListBlocks(ctx context.Context, sessionID string) ([]model.TransferBlock, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	blocks, err := t.transfers.ListBySession(ctx, sessionID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("transferSvc.ListBlocks: %w", err)
	}
	return blocks, nil
}

// ExtendBlock продлевает блок до конца следующего календарного дня (23:59:59.999
// локального времени) — не на фиксированные сутки — и снимает флаг просрочки.
func (t *TransferService) ExtendBlock(ctx context.Context, sessionID, blockID string) (time.Time, error) {
	if strings.TrimSpace(blockID) == "" {
		return time.Time{}, fmt.Errorf("%w: block id is required", ErrValidation)
	}
	until := EndOfNextDay(time.Now())
	ok, err := t.transfers.ExtendBlock(ctx, blockID, until)
	if err != nil {
		return time.Time{}, fmt.Errorf("transferSvc.ExtendBlock: %w", err)
	}
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	if t.events != nil && sessionID != "" {
		t.events.BlockExtended(sessionID, blockID, until)
	}
	return until, nil
}

// DeleteBlock удаляет блок с каскадом по содержимому. false — блока уже нет (идемпотентно).
// Байты файлов чистятся best-effort: ошибка blob-хранилища логируется и не мешает удалению метаданных.
func (t *TransferService) DeleteBlock(ctx context.Context, sessionID, blockID string) (bool, error) {
	if strings.TrimSpace(blockID) == "" {
		return false, fmt.Errorf("%w: block id is required", ErrValidation)
	}
	urls, err := t.transfers.FileURLsByBlock(ctx, blockID)
	if err != nil {
		logger.Errorf("delete block %s: collect file urls: %v", blockID, err)
	}
	ok, err := t.transfers.DeleteBlock(ctx, blockID)
	if err != nil {
		return false, fmt.Errorf("transferSvc.DeleteBlock: %w", err)
	}
	if ok {
		t.deleteBlobs(ctx, urls)
		if t.events != nil {
			t.events.BlockDeleted(sessionID, blockID)
		}
	}
	return ok, nil
}

// DeleteTextItem удаляет текстовый элемент. false — элемента нет.
func (t *TransferService) DeleteTextItem(ctx context.Context, itemID string) (bool, error) {
	if strings.TrimSpace(itemID) == "" {
		return false, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	ok, err := t.transfers.DeleteTextItem(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("transferSvc.DeleteTextItem: %w", err)
	}
	return ok, nil
}

// DeleteFileItem удаляет метаданные файла и best-effort его байты.
func (t *TransferService) DeleteFileItem(ctx context.Context, itemID string) (bool, error) {
	if strings.TrimSpace(itemID) == "" {
		return false, fmt.Errorf("%w: item id is required", ErrValidation)
	}
	item, err := t.transfers.GetFileItem(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transferSvc.DeleteFileItem get: %w", err)
	}
	ok, err := t.transfers.DeleteFileItem(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("transferSvc.DeleteFileItem: %w", err)
	}
	if ok {
		t.deleteBlobs(ctx, []string{item.URL})
	}
	return ok, nil
}

func (t *TransferService) deleteBlobs(ctx context.Context, urls []string) {
	if t.blobs == nil {
		return
	}
	for _, u := range urls {
		if err := t.blobs.Delete(ctx, u); err != nil {
			logger.Errorf("blob delete %s: %v", u, err)
		}
	}
}

// EndOfNextDay — конец следующего календарного дня в локальной зоне: «дай мне время до завтрашней ночи».
func EndOfNextDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 23, 59, 59, int(999*time.Millisecond), now.Location())
}
