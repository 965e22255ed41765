package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForDeviceDeterministic(t *testing.T) {
	a := ForDevice("device-aaa-111")
	b := ForDevice("device-aaa-111")
	assert.Equal(t, a, b, "один и тот же девайс должен получать один и тот же код")
	assert.True(t, Valid(a))
}

func TestForDeviceDistinctDevices(t *testing.T) {
	a := ForDevice("device-one")
	b := ForDevice("device-two")
	assert.NotEqual(t, a, b)
}

func TestForDeviceEmptyInput(t *testing.T) {
	// Пустой id даёт нулевой хеш: код из последовательных символов алфавита
	assert.Equal(t, "012345", ForDevice(""))
}

func TestForDeviceCharset(t *testing.T) {
	for _, id := range []string{"x", "устройство", "a-very-long-device-identifier-0123456789"} {
		p := ForDevice(id)
		assert.Len(t, p, Length)
		for i := 0; i < len(p); i++ {
			assert.True(t, strings.ContainsRune(Alphabet, rune(p[i])), "code %q contains %q", p, p[i])
		}
	}
}

func TestRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p := Random()
		assert.True(t, Valid(p), "random code %q must be valid", p)
		seen[p] = true
	}
	// 50 одинаковых кодов подряд из 36^6 — практически невозможно
	assert.Greater(t, len(seen), 1)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AB12CD", Normalize("  ab12cd "))
	assert.Equal(t, "XYZ789", Normalize("xyz789"))
	assert.Equal(t, "", Normalize("   "))
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ABC123", true},
		{"000000", true},
		{"ZZZZZZ", true},
		{"abc123", false},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC 12", false},
		{"ABC-12", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), "Valid(%q)", tt.in)
	}
}
