package memory

import (
	"context"

	"github.com/sharepass/internal/model"
)

// Users — представление Store под порт хранилища пользователей
// (методы сессий и пользователей иначе конфликтуют по именам).
type Users struct {
	s *Store
}

func (s *Store) Users() *Users { return &Users{s: s} }

func (u *Users) Create(ctx context.Context, user *model.User) error {
	return u.s.CreateUser(ctx, user)
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.s.GetUserByEmail(ctx, email)
}

func (u *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.s.GetUserByID(ctx, id)
}
