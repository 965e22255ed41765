package service

import "errors"

var (
	// ErrValidation — отсутствует или некорректен обязательный ввод (device_id, пароль и т.п.).
	ErrValidation = errors.New("validation error")
	// ErrSessionInvalid — пароль не найден либо сессия просрочена/погашена.
	ErrSessionInvalid = errors.New("invalid or expired session")
	// ErrRateLimited — превышен лимит попыток подбора пароля.
	ErrRateLimited = errors.New("rate limit exceeded")
)
