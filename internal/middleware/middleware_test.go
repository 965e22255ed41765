package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRecoverJSONPassThrough(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("k"))
	}
	assert.False(t, rl.allow("k"))
	assert.True(t, rl.allow("other"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.allow("k"), "окно истекло — лимит обнуляется")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "3.3.3.3")
	assert.Equal(t, "3.3.3.3", ClientIP(r))

	r.Header.Set("X-Real-Ip", "2.2.2.2")
	assert.Equal(t, "2.2.2.2", ClientIP(r))
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "AB****", MaskPassword("AB12CD"))
	assert.Equal(t, "****", MaskPassword("A"))
	assert.Equal(t, "****", MaskPassword(""))
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "1234***", MaskSessionID("1234567890"))
	assert.Equal(t, "****", MaskSessionID("abc"))
}
