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

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create вставляет новую сессию. Занятый пароль (unique violation) возвращается
// как ErrPasswordTaken — вызывающий код перегенерирует пароль и повторяет.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	defer logger.DeferLogDuration("session.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, password, device_id, is_active, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Password, s.DeviceID, s.IsActive, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPasswordTaken
		}
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

// GetByID возвращает сессию по id независимо от её состояния.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetByID", time.Now())()
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, password, device_id, is_active, created_at, expires_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.Password, &s.DeviceID, &s.IsActive, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return s, nil
}

// GetActiveByDeviceID — непросроченная активная сессия устройства (или ErrNotFound).
func (r *SessionRepository) GetActiveByDeviceID(ctx context.Context, deviceID string, now time.Time) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetActiveByDeviceID", time.Now())()
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, password, device_id, is_active, created_at, expires_at
		 FROM sessions WHERE device_id = $1 AND is_active AND expires_at > $2`, deviceID, now,
	).Scan(&s.ID, &s.Password, &s.DeviceID, &s.IsActive, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetActiveByDeviceID: %w", err)
	}
	return s, nil
}

// GetByPassword — активная непросроченная сессия с таким паролем (или ErrNotFound).
// Пароль должен быть уже нормализован (верхний регистр).
func (r *SessionRepository) GetByPassword(ctx context.Context, pwd string, now time.Time) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetByPassword", time.Now())()
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, password, device_id, is_active, created_at, expires_at
		 FROM sessions WHERE password = $1 AND is_active AND expires_at > $2`, pwd, now,
	).Scan(&s.ID, &s.Password, &s.DeviceID, &s.IsActive, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetByPassword: %w", err)
	}
	return s, nil
}

// DeactivateByDeviceID гасит все активные сессии устройства перед созданием новой.
// Мягкая инвалидация: строки остаются до прихода чистильщика.
func (r *SessionRepository) DeactivateByDeviceID(ctx context.Context, deviceID string) error {
	defer logger.DeferLogDuration("session.DeactivateByDeviceID", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_active = false WHERE device_id = $1 AND is_active`, deviceID)
	if err != nil {
		return fmt.Errorf("sessionRepo.DeactivateByDeviceID: %w", err)
	}
	return nil
}

// DeleteExpired удаляет просроченные сессии; блоки и их содержимое уходят каскадом по FK.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer logger.DeferLogDuration("session.DeleteExpired", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}
