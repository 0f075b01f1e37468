package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aliuyar1234/projecthub/internal/config"
	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	svc    *Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env:                  "dev",
		BaseURL:              "http://localhost:8080",
		DBDSN:                config.MemoryDSN,
		JWTSecret:            "router-test-secret",
		SessionDays:          1,
		LoginRateLimitPerMin: 100,
		Languages:            []string{"en", "pl"},
		IconMaxBytes:         1024,
		RoleCacheSize:        16,
		RoleCacheTTL:         time.Minute,
	}
	svc, err := NewServices(context.Background(), cfg, memory.New(), nil, filestore.Disabled{}, metrics.New())
	require.NoError(t, err)

	return &testServer{t: t, router: NewRouter(cfg, svc, svc.Store.Ping), svc: svc}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (s *testServer) signup(email string) (token, id string) {
	s.t.Helper()

	rec, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	return data["token"].(string), data["user"].(map[string]any)["id"].(string)
}

func (s *testServer) roleID(code string) string {
	s.t.Helper()

	role, err := s.svc.Store.Roles().GetByCode(context.Background(), code)
	require.NoError(s.t, err)
	return role.ID.String()
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAPIRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", body["error"].(map[string]any)["code"])
}

func TestProjectInvitationRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup("owner@example.com")
	guestToken, guestID := s.signup("guest@example.com")

	rec, body := s.do(http.MethodPost, "/api/v1/projects", ownerToken, map[string]any{
		"name":       "Apollo",
		"categories": []map[string]any{{"name": "Backend", "color": "#112233"}},
		"membersWithRoles": []map[string]any{
			{"email": "guest@example.com", "roleId": s.roleID("MEMBER")},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := body["data"].(map[string]any)
	projectID := project["id"].(string)
	require.Len(t, project["members"], 1)
	require.Len(t, project["invitations"], 1)
	require.Len(t, project["categories"], 1)

	// The private project is hidden from the guest until they accept.
	rec, _ = s.do(http.MethodGet, "/api/v1/projects/"+projectID, guestToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/v1/invitations", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := body["data"].([]any)
	require.Len(t, pending, 1)
	invitationID := pending[0].(map[string]any)["id"].(string)

	rec, body = s.do(http.MethodGet, "/api/v1/notifications", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := body["data"].([]any)
	require.Len(t, notes, 1)
	require.Equal(t, "Project invitation", notes[0].(map[string]any)["title"])

	rec, _ = s.do(http.MethodPost, "/api/v1/invitations/"+invitationID+"/accept", guestToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(http.MethodPost, "/api/v1/invitations/"+invitationID+"/reject", guestToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "errors.invitation.alreadyHandled", body["error"].(map[string]any)["message_key"])

	rec, body = s.do(http.MethodGet, "/api/v1/projects/"+projectID, guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["data"].(map[string]any)["members"], 2)

	// Removing the only manager through the member list is refused.
	rec, body = s.do(http.MethodPatch, "/api/v1/projects/"+projectID, ownerToken, map[string]any{
		"usersWithRoles": []map[string]any{
			{"email": "owner@example.com", "roleId": s.roleID("MEMBER")},
			{"email": "guest@example.com", "roleId": s.roleID("MEMBER")},
		},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "errors.project.lastManagerCannotBeRemoved", body["error"].(map[string]any)["message_key"])

	rec, _ = s.do(http.MethodDelete, "/api/v1/projects/"+projectID+"/members/"+guestID, ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/v1/projects/"+projectID+"/audit", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, body["data"])

	rec, _ = s.do(http.MethodDelete, "/api/v1/projects/"+projectID, ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/v1/projects/"+projectID, ownerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchValidationIsLocalized(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("owner@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"X","members":["ghost@example.com","nobody@example.com"]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Language", "pl")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error struct {
			MessageKey string   `json:"message_key"`
			Details    []string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "errors.users.notFoundByEmails", body.Error.MessageKey)
	require.ElementsMatch(t, []string{"ghost@example.com", "nobody@example.com"}, body.Error.Details)
}

func TestLabelEndpoints(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("owner@example.com")

	rec, body := s.do(http.MethodPost, "/api/v1/projects", token, map[string]any{"name": "Labels"})
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := body["data"].(map[string]any)["id"].(string)

	rec, body = s.do(http.MethodPost, "/api/v1/projects/"+projectID+"/statuses", token, map[string]any{"name": "Done", "color": "#00ff00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	labelID := body["data"].(map[string]any)["id"].(string)

	rec, _ = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/projects/%s/statuses/%s", projectID, labelID), token, map[string]any{"name": "Closed", "color": "#00ff00"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/v1/projects/"+projectID+"/statuses?lang=pl", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Closed", body["data"].([]any)[0].(map[string]any)["name"])

	rec, _ = s.do(http.MethodGet, "/api/v1/projects/"+projectID+"/widgets", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/projects/%s/statuses/%s", projectID, labelID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIconUploadWithStorageDisabled(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("owner@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("project", `{"name":"With icon"}`))
	part, err := mw.CreateFormFile("icon", "icon.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "errors.project.iconStorageDisabled")
}
