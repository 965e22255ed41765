package model

import "time"

// Session — контекст обмена: одно устройство, один пароль, набор блоков передачи.
// Для устройства активна максимум одна сессия (is_active), старые гасятся при создании новой.
type Session struct {
	ID        string    `json:"id"`
	Password  string    `json:"password"`
	DeviceID  string    `json:"device_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired — сессия просрочена относительно now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
