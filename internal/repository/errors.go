package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound — строка не найдена.
	ErrNotFound = errors.New("not found")
	// ErrPasswordTaken — пароль сессии уже занят (unique violation на sessions.password).
	ErrPasswordTaken = errors.New("session password already taken")
)

// isUniqueViolation — нарушение уникального ограничения Postgres (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
