package service

import (
	"context"
	"time"

	"github.com/sharepass/internal/logger"
)

// Sweeper — чистильщик просроченного. Без собственного расписания: Run вызывается
// снаружи (цикл в api, разовый запуск в services/cleanup). Обе фазы идемпотентны
// и безопасны параллельно с пользовательскими запросами: чтение может увидеть
// блок, который исчезнет к следующему запросу — это принятая согласованность.
type Sweeper struct {
	sessions  SessionStore
	transfers TransferStore
	blobs     BlobStore
	grace     time.Duration
}

// SweepStats — результаты одного прохода.
type SweepStats struct {
	BlocksMarked    int64
	BlocksDeleted   int64
	SessionsDeleted int64
}

// NewSweeper создаёт чистильщик. grace — сколько блок лежит помеченным после
// expires_at до физического удаления (окно для продления); <=0 — сутки.
func NewSweeper(sessions SessionStore, transfers TransferStore, blobs BlobStore, grace time.Duration) *Sweeper {
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &Sweeper{sessions: sessions, transfers: transfers, blobs: blobs, grace: grace}
}

// Run выполняет один проход: пометить просроченные блоки, удалить блоки старше
// грейс-периода (каскад заберёт тексты и файлы), удалить просроченные сессии.
// Байты файлов удаляются best-effort до удаления метаданных.
func (s *Sweeper) Run(ctx context.Context) (SweepStats, error) {
	defer logger.DeferLogDuration("sweeper.Run", time.Now())()
	now := time.Now()
	var stats SweepStats

	marked, err := s.transfers.MarkExpired(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.BlocksMarked = marked

	cutoff := now.Add(-s.grace)
	if s.blobs != nil {
		urls, err := s.transfers.FileURLsExpiredBefore(ctx, cutoff)
		if err != nil {
			logger.Errorf("sweeper: collect file urls: %v", err)
		}
		for _, u := range urls {
			if err := s.blobs.Delete(ctx, u); err != nil {
				logger.Errorf("sweeper: blob delete %s: %v", u, err)
			}
		}
	}
	deleted, err := s.transfers.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	stats.BlocksDeleted = deleted

	sessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.SessionsDeleted = sessions

	if stats.BlocksMarked > 0 || stats.BlocksDeleted > 0 || stats.SessionsDeleted > 0 {
		logger.Infof("sweep: marked=%d blocks_deleted=%d sessions_deleted=%d",
			stats.BlocksMarked, stats.BlocksDeleted, stats.SessionsDeleted)
	}
	return stats, nil
}

// RunPeriodic гоняет Run по тикеру до отмены контекста.
func (s *Sweeper) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				logger.Errorf("sweep: %v", err)
			}
		}
	}
}
