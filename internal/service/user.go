package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharepass/internal/auth"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials — неверная пара email/пароль (единый ответ, без уточнений).
var ErrBadCredentials = errors.New("invalid email or password")

// UserStore — порт хранилища учётных записей.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Валидация email: упрощённый формат, без полного RFC.
var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// UserService — регистрация и вход учётных записей. Ядро обмена от него не зависит.
type UserService struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewUserService(users UserStore, secret []byte, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserService{users: users, secret: secret, tokenTTL: tokenTTL}
}

// Register создаёт пользователя с bcrypt-хешем пароля.
func (u *UserService) Register(ctx context.Context, name, email, pwd string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(pwd) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("userSvc.Register hash: %w", err)
	}
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: email already registered", ErrValidation)
		}
		return nil, fmt.Errorf("userSvc.Register: %w", err)
	}
	return user, nil
}

// Login проверяет пароль и выпускает JWT.
func (u *UserService) Login(ctx context.Context, email, pwd string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := u.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("userSvc.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(pwd)) != nil {
		return nil, "", ErrBadCredentials
	}
	token, err := auth.GenerateToken(user.ID, u.secret, u.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("userSvc.Login token: %w", err)
	}
	return user, token, nil
}

// GetByID возвращает пользователя по id из токена (профиль текущей учётки).
func (u *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := u.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("userSvc.GetByID: %w", err)
	}
	return user, nil
}
