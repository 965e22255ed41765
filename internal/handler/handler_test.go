package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sharepass/internal/middleware"
	"github.com/sharepass/internal/repository/memory"
	"github.com/sharepass/internal/service"
	"github.com/sharepass/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobs — blob-хранилище в памяти для HTTP-тестов.
type fakeBlobs struct {
	saved map[string][]byte
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{saved: make(map[string][]byte)} }

func (f *fakeBlobs) Save(ctx context.Context, name, mediaType string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	url := "/api/files/" + uuid.New().String()
	f.saved[url] = b
	return url, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, url string) error {
	delete(f.saved, url)
	return nil
}

func (f *fakeBlobs) Serve(w http.ResponseWriter, r *http.Request, filename string) {
	b, ok := f.saved["/api/files/"+filename]
	if !ok {
		http.Error(w, `{"error":"file not found"}`, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type testEnv struct {
	router *chi.Mux
	store  *memory.Store
	blobs  *fakeBlobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	blobs := newFakeBlobs()
	limiter := memstore.New()

	sessionSvc := service.NewSessionService(store, limiter, 24*time.Hour)
	transferSvc := service.NewTransferService(sessionSvc, store, blobs, nil, 24*time.Hour)
	userSvc := service.NewUserService(store.Users(), []byte("test-secret"), time.Hour)

	sessionH := NewSessionHandler(sessionSvc)
	transferH := NewTransferHandler(transferSvc, 8<<20)
	authH := NewAuthHandler(userSvc)
	pushH := NewPushHandler(sessionSvc, limiter)

	r := chi.NewRouter()
	r.Post("/api/sessions", sessionH.Create)
	r.Post("/api/sessions/validate", sessionH.Validate)
	r.Post("/api/transfers", transferH.Create)
	r.Get("/api/transfers/{sessionId}", transferH.List)
	r.Put("/api/transfers/block/{blockId}/extend", transferH.Extend)
	r.Delete("/api/transfers/block/{blockId}", transferH.DeleteBlock)
	r.Delete("/api/transfers/text/{itemId}", transferH.DeleteTextItem)
	r.Delete("/api/transfers/file/{itemId}", transferH.DeleteFileItem)
	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.With(middleware.RequireAuth("test-secret")).Get("/api/auth/me", authH.Me)
	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)

	return &testEnv{router: r, store: store, blobs: blobs}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T, deviceID string) (sessionID, pwd string) {
	t.Helper()
	rec := e.doJSON(t, "POST", "/api/sessions", map[string]string{"device_id": deviceID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		SessionID string `json:"session_id"`
		Password  string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID, resp.Password
}

func TestSessionCreateAndValidate(t *testing.T) {
	env := newTestEnv(t)

	sessionID, pwd := env.createSession(t, "device-1")
	assert.NotEmpty(t, sessionID)
	assert.Len(t, pwd, 6)

	// Повторное создание — та же сессия
	again, pwd2 := env.createSession(t, "device-1")
	assert.Equal(t, sessionID, again)
	assert.Equal(t, pwd, pwd2)

	// Вход по паролю в нижнем регистре
	rec := env.doJSON(t, "POST", "/api/sessions/validate", map[string]string{"password": strings.ToLower(pwd)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sessionID, resp.SessionID)
}

func TestSessionValidateRejections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, "POST", "/api/sessions/validate", map[string]string{"password": "ZZZZZ9"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, "POST", "/api/sessions/validate", map[string]string{"password": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, "POST", "/api/sessions", map[string]string{"device_id": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestTransferCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.createSession(t, "device-1")

	body, contentType := multipartBody(t,
		map[string]string{"session_id": sessionID, "text_content": "  привет  "},
		map[string][]byte{"pic.png": []byte("png-bytes")},
	)
	req := httptest.NewRequest("POST", "/api/transfers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID        string `json:"id"`
		TextItems []struct {
			Content string `json:"content"`
		} `json:"text_items"`
		FileItems []struct {
			Name    string `json:"name"`
			IsImage bool   `json:"is_image"`
			URL     string `json:"url"`
		} `json:"file_items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.TextItems, 1)
	assert.Equal(t, "привет", created.TextItems[0].Content)
	require.Len(t, created.FileItems, 1)
	assert.Equal(t, "pic.png", created.FileItems[0].Name)

	rec = env.doJSON(t, "GET", "/api/transfers/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Blocks, 1)
}

func TestTransferCreateRejections(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.createSession(t, "device-1")

	// Ни текста, ни файлов
	body, contentType := multipartBody(t, map[string]string{"session_id": sessionID}, nil)
	req := httptest.NewRequest("POST", "/api/transfers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Несуществующая сессия
	body, contentType = multipartBody(t, map[string]string{"session_id": uuid.New().String(), "text_content": "hi"}, nil)
	req = httptest.NewRequest("POST", "/api/transfers", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransferExtendAndDelete(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.createSession(t, "device-1")

	body, contentType := multipartBody(t, map[string]string{"session_id": sessionID, "text_content": "hi"}, nil)
	req := httptest.NewRequest("POST", "/api/transfers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID        string `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.doJSON(t, "PUT", "/api/transfers/block/"+created.ID+"/extend?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var extended struct {
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &extended))
	assert.True(t, extended.ExpiresAt.After(created.ExpiresAt))

	// Продление несуществующего блока
	rec = env.doJSON(t, "PUT", "/api/transfers/block/"+uuid.New().String()+"/extend", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, "DELETE", "/api/transfers/block/"+created.ID+"?session_id="+sessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(t, "DELETE", "/api/transfers/block/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, "POST", "/api/auth/register", map[string]string{
		"name": "Alice", "email": "a@b.com", "password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.doJSON(t, "POST", "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	rec = env.doJSON(t, "POST", "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, "POST", "/api/auth/register", map[string]string{
		"name": "Alice", "email": "a@b.com", "password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.doJSON(t, "POST", "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	// Профиль по токену
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Alice", me.Name)
	assert.Equal(t, "a@b.com", me.Email)
}

func TestAuthMeUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPushSubscribe(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.createSession(t, "device-1")

	rec := env.doJSON(t, "POST", "/api/push/subscribe", map[string]any{
		"session_id":   sessionID,
		"subscription": map[string]any{"endpoint": "https://push/ep1", "keys": map[string]string{"p256dh": "k", "auth": "a"}},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Без endpoint — отказ
	rec = env.doJSON(t, "POST", "/api/push/subscribe", map[string]any{
		"session_id":   sessionID,
		"subscription": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, "DELETE", "/api/push/subscribe", map[string]string{
		"session_id": sessionID, "endpoint": "https://push/ep1",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
