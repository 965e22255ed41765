package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/password"
	"github.com/sharepass/internal/repository"
)

// SessionStore — порт хранилища сессий. Реализации: repository.SessionRepository (Postgres)
// и memory.Store (тесты, -dev).
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetActiveByDeviceID(ctx context.Context, deviceID string, now time.Time) (*model.Session, error)
	GetByPassword(ctx context.Context, pwd string, now time.Time) (*model.Session, error)
	DeactivateByDeviceID(ctx context.Context, deviceID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AttemptLimiter ограничивает частоту проверок пароля (защита от перебора 36^6).
// Реализации: storage/redisstore, storage/memstore.
type AttemptLimiter interface {
	CheckValidateLimit(ctx context.Context, key string) (allowed bool, err error)
}

// SessionService создаёт и проверяет сессии устройств.
type SessionService struct {
	sessions SessionStore
	limiter  AttemptLimiter
	ttl      time.Duration
}

// NewSessionService создаёт сервис. limiter может быть nil — тогда лимит не проверяется.
func NewSessionService(sessions SessionStore, limiter AttemptLimiter, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{sessions: sessions, limiter: limiter, ttl: ttl}
}

// CreateOrGet возвращает действующую сессию устройства или создаёт новую.
// Повторный вызов в пределах срока жизни идемпотентен: тот же id, тот же пароль.
// Пароль сначала детерминированный (устройство «узнаётся» по нему), при занятости —
// одна повторная попытка со случайным; дальше ошибка наружу.
func (s *SessionService) CreateOrGet(ctx context.Context, deviceID string) (*model.Session, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	now := time.Now()

	existing, err := s.sessions.GetActiveByDeviceID(ctx, deviceID, now)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("sessionSvc.CreateOrGet lookup: %w", err)
	}

	// Старые сессии устройства гасим, а не удаляем: история блоков живёт до чистильщика.
	if err := s.sessions.DeactivateByDeviceID(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("sessionSvc.CreateOrGet deactivate: %w", err)
	}

	sess := &model.Session{
		ID:        uuid.New().String(),
		Password:  password.ForDevice(deviceID),
		DeviceID:  deviceID,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	err = s.sessions.Create(ctx, sess)
	if errors.Is(err, repository.ErrPasswordTaken) {
		// Коллизия детерминированного кода с чужой сессией — одна попытка случайным.
		sess.ID = uuid.New().String()
		sess.Password = password.Random()
		err = s.sessions.Create(ctx, sess)
	}
	if err != nil {
		return nil, fmt.Errorf("sessionSvc.CreateOrGet insert: %w", err)
	}
	logger.Infof("session created device=%s expires_at=%s", maskKey(deviceID), sess.ExpiresAt.Format(time.RFC3339))
	return sess, nil
}

// Validate ищет активную непросроченную сессию по паролю.
// clientKey (обычно IP) идёт в rate limiter; «не найдено» — это ErrSessionInvalid, не сбой.
func (s *SessionService) Validate(ctx context.Context, rawPassword, clientKey string) (*model.Session, error) {
	pwd := password.Normalize(rawPassword)
	if pwd == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if !password.Valid(pwd) {
		return nil, fmt.Errorf("%w: password must be 6 characters [0-9A-Z]", ErrValidation)
	}
	if s.limiter != nil && clientKey != "" {
		allowed, err := s.limiter.CheckValidateLimit(ctx, clientKey)
		if err != nil {
			// Недоступный лимитер не должен ломать вход — пропускаем с логом.
			logger.Errorf("validate rate limit check: %v", err)
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}
	sess, err := s.sessions.GetByPassword(ctx, pwd, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("sessionSvc.Validate: %w", err)
	}
	return sess, nil
}

// GetValid возвращает сессию по id, если она активна и не просрочена.
func (s *SessionService) GetValid(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("sessionSvc.GetValid: %w", err)
	}
	if !sess.IsActive || sess.Expired(time.Now()) {
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// maskKey маскирует идентификатор устройства в логах.
func maskKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
