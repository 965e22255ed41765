// Package password генерирует и проверяет 6-символьные коды сессий.
// Алфавит — 36 символов [0-9A-Z]. Код не секрет в криптографическом смысле:
// он лишь связывает отправителя и получателя, перебор ограничивается rate limit'ом.
package password

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// Alphabet — допустимые символы кода.
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Length — длина кода.
	Length = 6
)

// Random возвращает случайный код: каждый символ равномерно из алфавита.
func Random() string {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// rand.Reader не отказывает на поддерживаемых платформах
			panic(err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b)
}

// ForDevice возвращает детерминированный код для идентификатора устройства:
// одно и то же устройство всегда получает один и тот же код, поэтому повторный
// запрос находит существующую сессию вместо создания новой.
// Хеш — свёртка h = h*31 + c в 32 битах, позиция i смещает индекс (abs(h+i) % 36),
// чтобы символы не повторялись подряд. Хеш не стоек к коллизиям: совпадение кодов
// у разных устройств ловится уникальным ограничением в БД, а не здесь.
func ForDevice(deviceID string) string {
	var h int32
	for i := 0; i < len(deviceID); i++ {
		h = h*31 + int32(deviceID[i])
	}
	b := make([]byte, Length)
	for i := range b {
		v := int64(h) + int64(i)
		if v < 0 {
			v = -v
		}
		b[i] = Alphabet[v%int64(len(Alphabet))]
	}
	return string(b)
}

// Normalize приводит ввод пользователя к каноническому виду: пробелы по краям убраны, верхний регистр.
func Normalize(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

// Valid — ровно 6 символов из алфавита (после Normalize).
func Valid(p string) bool {
	if len(p) != Length {
		return false
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
