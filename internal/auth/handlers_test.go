package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/messages"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

func newTestRouter(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()

	st := memory.New()
	catalog, err := messages.Load("en")
	require.NoError(t, err)
	h := NewHandler(st, users.NewDirectory(), audit.NewWriter(st), catalog, testSecret, 7)

	r := chi.NewRouter()
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(AuthMiddleware(testSecret))
	r.Post("/signup", h.HandleSignup)
	r.Post("/login", h.HandleLogin)
	r.With(RequireAuth).Get("/me", h.HandleMe)
	return r, st
}

func do(t *testing.T, h http.Handler, method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionFrom(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()

	var body struct {
		Data SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data
}

func TestSignupLoginAndMe(t *testing.T) {
	router, st := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/signup", `{"email":"Ala@Example.com","password":"longenough","locale":"PL"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	signup := sessionFrom(t, rec)
	require.Equal(t, "ala@example.com", signup.User.Email)
	require.Equal(t, store.PlatformUser, signup.User.PlatformRole)
	require.Equal(t, "pl", signup.User.Locale)

	u, err := st.Users().GetByEmail(context.Background(), "ala@example.com")
	require.NoError(t, err)
	require.Equal(t, signup.User.ID, u.ID)

	rec = do(t, router, http.MethodPost, "/login", `{"email":"ala@example.com","password":"longenough"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := sessionFrom(t, rec)

	rec = do(t, router, http.MethodGet, "/me", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"ala@example.com"`)
}

func TestSignupDuplicateIsConflict(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"email":"ala@example.com","password":"longenough"}`
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/signup", body, "").Code)

	rec := do(t, router, http.MethodPost, "/signup", body, "", "Accept-Language", "pl-PL,pl;q=0.9")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "errors.user.emailTaken")
	require.Contains(t, rec.Body.String(), "już zarejestrowany")
}

func TestSignupWeakPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/signup", `{"email":"ala@example.com","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "errors.user.weakPassword")
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/signup", `{"email":"ala@example.com","password":"longenough"}`, "").Code)

	rec := do(t, router, http.MethodPost, "/login", `{"email":"ala@example.com","password":"wrong-password"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/login", `{"email":"nobody@example.com","password":"longenough"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/me", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/me", "", "not-a-token").Code)
}

func TestRequestLocale(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lang=PL", nil)
	require.Equal(t, "pl", RequestLocale(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	require.Equal(t, "en", RequestLocale(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "", RequestLocale(req))

	actor := access.Actor{UserID: uuid.New(), PlatformRole: store.PlatformUser, Locale: "pl"}
	req = req.WithContext(WithActor(req.Context(), actor))
	require.Equal(t, "pl", RequestLocale(req))
}
