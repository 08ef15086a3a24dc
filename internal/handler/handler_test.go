package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/crypto"
	"github.com/miicoin/miicoin-server/internal/repository/sqlite"
	"github.com/miicoin/miicoin-server/internal/service"
)

// newTestRouter builds the real route tree over an in-memory database, with
// the low bcrypt cost so the tests don't spend their time hashing.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret")
	require.NoError(t, err)

	cipher, err := crypto.New(make([]byte, crypto.KeySize))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authSvc := service.NewAuthService(
		sqlite.NewUserRepo(db),
		tokens,
		auth.NewPasswordServiceForTest(bcrypt.MinCost),
		logger,
	)
	keySvc := service.NewAPIKeyService(
		sqlite.NewAPIKeyRepo(db),
		cipher,
		[]string{"binance", "kucoin", "ftx"},
		logger,
	)

	authH := NewAuthHandler(authSvc, nil, logger)
	keysH := NewAPIKeyHandler(keySvc, logger)
	statusH := NewStatusHandler()

	r := chi.NewRouter()
	r.Get("/", statusH.HandleIndex)
	r.Get("/dashboard", statusH.HandleDashboard)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.HandleRegister)
		r.Get("/login", authH.HandleLoginPage)
		r.Post("/login", authH.HandleLogin)
		r.Get("/logout", authH.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/profile", authH.HandleProfile)
			r.Put("/profile/update", authH.HandleUpdateProfile)
		})
	})
	r.Route("/api-keys", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Post("/", keysH.HandleAdd)
		r.Get("/", keysH.HandleList)
		r.Delete("/{id}", keysH.HandleDelete)
		r.Post("/{id}/toggle", keysH.HandleToggle)
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/signals", statusH.HandleSignals)
		r.Get("/bot/status", statusH.HandleBotStatus)
	})
	return r
}

// doJSON performs a request with an optional JSON body and bearer token, and
// decodes the JSON response into a generic map.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded),
			"response should be JSON: %s", rec.Body.String())
	}
	return rec, decoded
}

// jsonRequest builds a request from a raw body string, for sending payloads
// that json.Marshal would refuse to produce.
func jsonRequest(t *testing.T, method, path, raw string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

// registerUser registers a fresh user and returns their access token.
func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()

	rec, body := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register failed: %s", rec.Body.String())

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}
