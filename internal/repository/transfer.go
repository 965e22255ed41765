package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/model"
)

type TransferRepository struct {
	pool *pgxpool.Pool
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

func (r *TransferRepository) CreateBlock(ctx context.Context, b *model.TransferBlock) error {
	defer logger.DeferLogDuration("transfer.CreateBlock", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transfer_blocks (id, session_id, is_expired, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.SessionID, b.IsExpired, b.CreatedAt, b.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("transferRepo.CreateBlock: %w", err)
	}
	return nil
}

func (r *TransferRepository) InsertTextItem(ctx context.Context, t *model.TextItem) error {
	defer logger.DeferLogDuration("transfer.InsertTextItem", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO text_items (id, block_id, content, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.BlockID, t.Content, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("transferRepo.InsertTextItem: %w", err)
	}
	return nil
}

func (r *TransferRepository) InsertFileItems(ctx context.Context, items []model.FileItem) error {
	defer logger.DeferLogDuration("transfer.InsertFileItems", time.Now())()
	for i := range items {
		f := &items[i]
		_, err := r.pool.Exec(ctx,
			`INSERT INTO file_items (id, block_id, name, size, type, url, is_image, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.ID, f.BlockID, f.Name, f.Size, f.Type, f.URL, f.IsImage, f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("transferRepo.InsertFileItems: %w", err)
		}
	}
	return nil
}

// ListBySession возвращает непросроченные блоки сессии с текстами и файлами,
// свежие первыми. Просроченные, но ещё не удалённые чистильщиком блоки в выдачу не попадают.
func (r *TransferRepository) ListBySession(ctx context.Context, sessionID string, now time.Time) ([]model.TransferBlock, error) {
	defer logger.DeferLogDuration("transfer.ListBySession", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, is_expired, created_at, expires_at
		 FROM transfer_blocks
		 WHERE session_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC`, sessionID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession query: %w", err)
	}
	defer rows.Close()

	blocks := make([]model.TransferBlock, 0, 8)
	index := make(map[string]int)
	var ids []string
	for rows.Next() {
		var b model.TransferBlock
		if err := rows.Scan(&b.ID, &b.SessionID, &b.IsExpired, &b.CreatedAt, &b.ExpiresAt); err != nil {
			return nil, fmt.Errorf("transferRepo.ListBySession scan: %w", err)
		}
		b.TextItems = []model.TextItem{}
		b.FileItems = []model.FileItem{}
		index[b.ID] = len(blocks)
		ids = append(ids, b.ID)
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession rows: %w", err)
	}
	if len(blocks) == 0 {
		return blocks, nil
	}

	textRows, err := r.pool.Query(ctx,
		`SELECT id, block_id, content, created_at FROM text_items
		 WHERE block_id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession texts: %w", err)
	}
	defer textRows.Close()
	for textRows.Next() {
		var t model.TextItem
		if err := textRows.Scan(&t.ID, &t.BlockID, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("transferRepo.ListBySession text scan: %w", err)
		}
		i := index[t.BlockID]
		blocks[i].TextItems = append(blocks[i].TextItems, t)
	}
	if err := textRows.Err(); err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession text rows: %w", err)
	}

	fileRows, err := r.pool.Query(ctx,
		`SELECT id, block_id, name, size, type, url, is_image, created_at FROM file_items
		 WHERE block_id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession files: %w", err)
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var f model.FileItem
		if err := fileRows.Scan(&f.ID, &f.BlockID, &f.Name, &f.Size, &f.Type, &f.URL, &f.IsImage, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("transferRepo.ListBySession file scan: %w", err)
		}
		i := index[f.BlockID]
		blocks[i].FileItems = append(blocks[i].FileItems, f)
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("transferRepo.ListBySession file rows: %w", err)
	}
	return blocks, nil
}

// ExtendBlock переносит expires_at и сбрасывает флаг просрочки. false — блока нет.
func (r *TransferRepository) ExtendBlock(ctx context.Context, blockID string, until time.Time) (bool, error) {
	defer logger.DeferLogDuration("transfer.ExtendBlock", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE transfer_blocks SET expires_at = $1, is_expired = false WHERE id = $2`, until, blockID)
	if err != nil {
		return false, fmt.Errorf("transferRepo.ExtendBlock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FileURLsByBlock — url файлов блока (для best-effort удаления байтов перед удалением метаданных).
func (r *TransferRepository) FileURLsByBlock(ctx context.Context, blockID string) ([]string, error) {
	defer logger.DeferLogDuration("transfer.FileURLsByBlock", time.Now())()
	return r.fileURLs(ctx, `SELECT url FROM file_items WHERE block_id = $1`, blockID)
}

// FileURLsExpiredBefore — url файлов в блоках, просроченных раньше cutoff.
func (r *TransferRepository) FileURLsExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	defer logger.DeferLogDuration("transfer.FileURLsExpiredBefore", time.Now())()
	return r.fileURLs(ctx,
		`SELECT f.url FROM file_items f
		 JOIN transfer_blocks b ON b.id = f.block_id
		 WHERE b.expires_at < $1`, cutoff)
}

func (r *TransferRepository) fileURLs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("transferRepo.fileURLs: %w", err)
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("transferRepo.fileURLs scan: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteBlock удаляет блок; тексты и файлы уходят каскадом по FK. false — блока не было.
func (r *TransferRepository) DeleteBlock(ctx context.Context, blockID string) (bool, error) {
	defer logger.DeferLogDuration("transfer.DeleteBlock", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM transfer_blocks WHERE id = $1`, blockID)
	if err != nil {
		return false, fmt.Errorf("transferRepo.DeleteBlock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TransferRepository) DeleteTextItem(ctx context.Context, itemID string) (bool, error) {
	defer logger.DeferLogDuration("transfer.DeleteTextItem", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM text_items WHERE id = $1`, itemID)
	if err != nil {
		return false, fmt.Errorf("transferRepo.DeleteTextItem: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetFileItem — метаданные файла (нужен url для удаления байтов).
func (r *TransferRepository) GetFileItem(ctx context.Context, itemID string) (*model.FileItem, error) {
	defer logger.DeferLogDuration("transfer.GetFileItem", time.Now())()
	f := &model.FileItem{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, block_id, name, size, type, url, is_image, created_at
		 FROM file_items WHERE id = $1`, itemID,
	).Scan(&f.ID, &f.BlockID, &f.Name, &f.Size, &f.Type, &f.URL, &f.IsImage, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("transferRepo.GetFileItem: %w", err)
	}
	return f, nil
}

func (r *TransferRepository) DeleteFileItem(ctx context.Context, itemID string) (bool, error) {
	defer logger.DeferLogDuration("transfer.DeleteFileItem", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM file_items WHERE id = $1`, itemID)
	if err != nil {
		return false, fmt.Errorf("transferRepo.DeleteFileItem: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkExpired проставляет is_expired блокам, прошедшим expires_at (первая фаза чистки).
func (r *TransferRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	defer logger.DeferLogDuration("transfer.MarkExpired", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE transfer_blocks SET is_expired = true WHERE NOT is_expired AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("transferRepo.MarkExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredBefore удаляет блоки, просроченные раньше cutoff (вторая фаза, после грейс-периода).
func (r *TransferRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer logger.DeferLogDuration("transfer.DeleteExpiredBefore", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM transfer_blocks WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("transferRepo.DeleteExpiredBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}
