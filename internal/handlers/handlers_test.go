package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/mocks"
	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/services"
	"realtime-chat/internal/storage"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

var otpCode = regexp.MustCompile(`\d{6}`)

func (i *inbox) Send(ctx context.Context, to, subject, body string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[to] = otpCode.FindString(body)
	return nil
}

func (i *inbox) code(to string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[to]
}

type testApp struct {
	router   *gin.Engine
	store    *repositories.MemoryStore
	tokens   *auth.TokenManager
	inbox    *inbox
	notifier *mocks.NotifierMock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := &testApp{
		store:    repositories.NewMemoryStore(),
		tokens:   auth.NewTokenManager("handler-secret", time.Hour),
		inbox:    &inbox{codes: map[string]string{}},
		notifier: new(mocks.NotifierMock),
	}
	app.notifier.On("NotifyNewMessage", mock.Anything).Return(false).Maybe()
	app.notifier.On("NotifyMessagesSeen", mock.Anything, mock.Anything).Return(false).Maybe()

	authSvc := services.NewAuthService(app.store, app.store, app.inbox, storage.DisabledUploader{}, app.tokens, nil, 5*time.Minute, nil)
	msgSvc := services.NewMessageService(app.store, app.store, storage.DisabledUploader{}, app.notifier, nil)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api")
	authMW := middleware.AuthMiddleware(app.tokens)
	NewAuthHandler(authSvc).Register(api, authMW)
	NewMessageHandler(msgSvc).Register(api, authMW)
	app.router = r
	return app
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (a *testApp) seedUser(t *testing.T, id string, created time.Time) string {
	t.Helper()
	_, err := a.store.CreateUser(context.Background(), models.User{ID: id, Email: id + "@x.com", FullName: id, CreatedAt: created})
	require.NoError(t, err)
	token, err := a.tokens.GenerateToken(id)
	require.NoError(t, err)
	return token
}

func TestSignupOverHTTP(t *testing.T) {
	app := newTestApp(t)

	rec, resp := app.do(t, http.MethodPost, "/api/auth/send-otp", "", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, resp)
	assert.Equal(t, true, resp["success"])

	rec, resp = app.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "a@x.com", "otp": app.inbox.code("a@x.com")})
	require.Equal(t, http.StatusOK, rec.Code, resp)

	rec, resp = app.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"fullName": "Ann", "email": "a@x.com", "password": "secret1", "bio": "hey"})
	require.Equal(t, http.StatusCreated, rec.Code, resp)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	userData := resp["userData"].(map[string]any)
	assert.Equal(t, "Ann", userData["fullName"])
	assert.NotContains(t, userData, "passwordHash")

	rec, resp = app.do(t, http.MethodGet, "/api/auth/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
	assert.Equal(t, userData["id"], resp["user"].(map[string]any)["id"])

	rec, resp = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, resp)
	assert.Equal(t, userData["id"], resp["userData"].(map[string]any)["id"])

	rec, resp = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
}

func TestAuthErrorsUseEnvelope(t *testing.T) {
	app := newTestApp(t)

	rec, resp := app.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "z@x.com", "otp": "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "no challenge found", resp["message"])

	rec, resp = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "z@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", resp["message"])

	rec, _ = app.do(t, http.MethodGet, "/api/auth/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	app.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestUpdateProfileOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := app.seedUser(t, "u1", time.Now())

	rec, resp := app.do(t, http.MethodPut, "/api/auth/update-profile", token, gin.H{"fullName": "New Name", "bio": "b"})
	require.Equal(t, http.StatusOK, rec.Code, resp)
	user := resp["user"].(map[string]any)
	assert.Equal(t, "New Name", user["fullName"])
	assert.Equal(t, "b", user["bio"])

	rec, _ = app.do(t, http.MethodPut, "/api/auth/update-profile", token, gin.H{"profilePic": "data:image/png;base64,AAAA"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMessagingOverHTTP(t *testing.T) {
	app := newTestApp(t)
	base := time.Now().Add(-time.Hour)
	tokenA := app.seedUser(t, "A", base)
	tokenB := app.seedUser(t, "B", base.Add(time.Minute))
	app.seedUser(t, "C", base.Add(2*time.Minute))

	rec, resp := app.do(t, http.MethodPost, "/api/messages/send/B", tokenA, gin.H{"text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, resp)
	sent := resp["newMessage"].(map[string]any)
	assert.Equal(t, "hello", sent["text"])
	assert.Equal(t, false, sent["seen"])
	assert.NotContains(t, sent, "image")

	rec, resp = app.do(t, http.MethodGet, "/api/messages/users", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
	users := resp["users"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, "A", users[0].(map[string]any)["id"])
	assert.Equal(t, map[string]any{"A": float64(1)}, resp["unseenMessages"])

	rec, resp = app.do(t, http.MethodGet, "/api/messages/contacts", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
	contacts := resp["contacts"].([]any)
	require.Len(t, contacts, 1)
	assert.Equal(t, float64(1), contacts[0].(map[string]any)["unseenCount"])

	rec, resp = app.do(t, http.MethodGet, "/api/messages/A", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
	require.Len(t, resp["messages"].([]any), 1)

	rec, resp = app.do(t, http.MethodGet, "/api/messages/users", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp)
	assert.Empty(t, resp["unseenMessages"])

	rec, _ = app.do(t, http.MethodPut, "/api/messages/mark/"+sent["id"].(string), tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = app.do(t, http.MethodPut, "/api/messages/mark/"+sent["id"].(string), tokenB, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = app.do(t, http.MethodPost, "/api/messages/send/A", tokenA, gin.H{"text": "me"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot send a message to yourself", resp["message"])

	rec, _ = app.do(t, http.MethodGet, "/api/messages/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type presenceStub []string

func (p presenceStub) OnlineSnapshot() []string { return p }

func TestDebugRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := new(mocks.AuditorMock)
	audit.On("Emit", mock.Anything, "INFO", "audit test", (*string)(nil)).Once()

	r := gin.New()
	RegisterDebugRoutes(r, audit, presenceStub{"a", "b"}, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/presence", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"online":["a","b"]}`, rec.Body.String())
	audit.AssertExpectations(t)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, audit, presenceStub{}, false)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/presence", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
