package middleware

import "strings"

// MaskPassword маскирует пароль сессии в логах (в prod не светить полный код).
func MaskPassword(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 2 {
		return "****"
	}
	return s[:2] + "****"
}

// MaskSessionID маскирует session_id в логах.
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
