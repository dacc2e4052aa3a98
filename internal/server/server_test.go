package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/codestore"
	"github.com/sakif/notes-app/internal/health"
	"github.com/sakif/notes-app/internal/model"
	sqliteRepo "github.com/sakif/notes-app/internal/repository/sqlite"
	"github.com/sakif/notes-app/internal/server"
	"github.com/sakif/notes-app/internal/service"
)

// inbox is an email.Sender that keeps the last code per address.
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) SendCode(_ context.Context, to, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[to] = code
	return nil
}

func (i *inbox) code(to string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[to]
}

type testApp struct {
	handler http.Handler
	inbox   *inbox
}

// newTestApp wires the real stack: in-memory SQLite, the memory code store,
// real token service. Only mail delivery is faked and Google is off.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("server-test-secret-with-32-bytes!!", time.Hour)
	require.NoError(t, err)

	codes := codestore.NewMemoryStore()
	box := &inbox{codes: make(map[string]string)}

	authSvc := service.NewAuthService(service.AuthDeps{
		Accounts: db.Accounts(),
		Codes:    codes,
		Hasher:   auth.NewCodeHasher(4),
		Tokens:   tokens,
		Sender:   box,
	}, logger)

	checker := health.NewChecker(map[string]health.Pinger{
		"sqlite":    db,
		"codestore": codes,
	}, logger, prometheus.NewRegistry())

	srv := server.New(server.Config{
		Port:               "0",
		CORSAllowedOrigins: []string{"https://app.example.com"},
	}, server.Deps{
		Auth:   authSvc,
		Notes:  service.NewNoteService(db.Notes(), logger),
		Health: checker,
	}, logger)

	return &testApp{handler: srv.Handler(), inbox: box}
}

func (a *testApp) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

// signUp runs signup + verification for Ann and returns her session token.
func (a *testApp) signUp(t *testing.T) string {
	t.Helper()

	rr := a.do(t, http.MethodPost, "/api/auth/signup/email", "",
		`{"name":"Ann","dob":"1990-05-01","email":"ann@x.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	code := a.inbox.code("ann@x.com")
	require.Len(t, code, 6)

	rr = a.do(t, http.MethodPost, "/api/auth/verify-otp", "",
		`{"email":"ann@x.com","otp":"`+code+`","name":"Ann","dob":"1990-05-01"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Token string         `json:"token"`
		User  *model.Account `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	assert.Equal(t, model.AuthMethodEmail, body.User.AuthMethod)
	return body.Token
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/healthz", "", "").Code)

	rr := app.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"sqlite"`)
}

func TestSignupVerifyAndNotes(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	// The session identifies Ann.
	rr := app.do(t, http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ann@x.com")

	// Create, list, update, delete.
	rr = app.do(t, http.MethodPost, "/api/notes", token, `{"title":"Groceries","content":"milk"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var note model.Note
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&note))

	rr = app.do(t, http.MethodGet, "/api/notes", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var notes []model.Note
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&notes))
	assert.Len(t, notes, 1)

	rr = app.do(t, http.MethodPut, "/api/notes/"+note.ID, token, `{"title":"Groceries","content":"milk, eggs"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "milk, eggs")

	rr = app.do(t, http.MethodDelete, "/api/notes/"+note.ID, token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/notes/"+note.ID, token, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVerifyTwiceIsRejected(t *testing.T) {
	app := newTestApp(t)
	app.signUp(t)

	code := app.inbox.code("ann@x.com")
	rr := app.do(t, http.MethodPost, "/api/auth/verify-otp", "", `{"email":"ann@x.com","otp":"`+code+`"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"invalid_code"`)
}

func TestNotesRequireSession(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/notes", "", "").Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/api/notes", "garbage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/auth/me", "", "").Code)
}

func TestGoogleRoutesAbsentWhenDisabled(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/auth/google/login", "", "").Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodPost, "/api/auth/google/token-login", "", `{}`).Code)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
