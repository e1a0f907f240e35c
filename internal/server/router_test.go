package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"resplan/internal/config"
	"resplan/internal/database"
	"resplan/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{DBDriver: "sqlite", DBDSN: ":memory:", SessionSecret: "test-secret"}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Bootstrap(context.Background(), db, database.BootstrapOptions{
		AdminUsername: "admin",
		AdminEmail:    "admin@test.local",
		AdminPassword: "Admin123!",
	}, zap.NewNop()))

	svc := services.New(db, zap.NewNop())
	return &testServer{router: NewRouter(cfg, db, svc, zap.NewNop())}
}

func (s *testServer) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, cookies)
}

func (s *testServer) form(method, path string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookies)
}

func (s *testServer) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	w := s.form(http.MethodPost, "/login", url.Values{"username": {username}, "password": {password}}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.form(http.MethodPost, "/login", url.Values{"username": {"admin"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := s.login(t, "admin", "Admin123!")
	w = s.json(t, http.MethodGet, "/api/me", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, "admin", me["username"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAPIRequiresSession(t *testing.T) {
	s := newTestServer(t)

	w := s.json(t, http.MethodGet, "/api/clients", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := s.login(t, "admin", "Admin123!")
	w = s.json(t, http.MethodPost, "/logout", nil, cookies)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.json(t, http.MethodGet, "/api/clients", nil, w.Result().Cookies())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGatedRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "Admin123!")

	w := s.json(t, http.MethodPost, "/api/users", services.UserInput{
		Username: "carol",
		Email:    "carol@test.local",
		Password: "password123",
		Roles:    []string{"Consultant"},
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	carol := s.login(t, "carol", "password123")

	w = s.form(http.MethodPost, "/api/clients", url.Values{"name": {"Acme"}}, carol)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.json(t, http.MethodGet, "/api/users", nil, carol)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// consultants may read the client list
	w = s.json(t, http.MethodGet, "/api/clients", nil, carol)
	assert.Equal(t, http.StatusOK, w.Code)

	// the Consultant role implies a consultant record
	w = s.json(t, http.MethodGet, "/api/consultants", nil, carol)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestClientLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "Admin123!")
	me := decode[map[string]any](t, s.json(t, http.MethodGet, "/api/me", nil, admin))

	// unchecked box: "active" absent from the form
	w := s.form(http.MethodPost, "/api/clients", url.Values{"name": {"Acme"}, "city": {"Zagreb"}}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[map[string]any](t, w)
	assert.Equal(t, false, client["active"])
	clientID := uint(client["id"].(float64))

	w = s.form(http.MethodPost, "/api/clients", url.Values{"name": {"Bad"}, "active": {"maybe"}}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "active", decode[map[string]any](t, w)["field"])

	w = s.json(t, http.MethodPost, "/api/projects", map[string]any{
		"name":       "Rollout",
		"client_id":  clientID,
		"manager_id": uint(me["id"].(float64)),
		"start_date": "2026-01-01",
		"end_date":   "2026-03-31",
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	project := decode[map[string]any](t, w)
	assert.Equal(t, "Preparation", project["status"])

	w = s.json(t, http.MethodGet, "/api/clients/"+jsonID(client["id"]), nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]json.RawMessage](t, w)
	assert.Contains(t, string(detail["projects"]), "Rollout")

	w = s.json(t, http.MethodDelete, "/api/clients/"+jsonID(client["id"]), nil, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(t, http.MethodDelete, "/api/projects/"+jsonID(project["id"]), nil, admin)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.json(t, http.MethodDelete, "/api/clients/"+jsonID(client["id"]), nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.json(t, http.MethodGet, "/api/clients/"+jsonID(client["id"]), nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectValidationEchoesField(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "Admin123!")

	w := s.json(t, http.MethodPost, "/api/projects", map[string]any{
		"name":       "No client",
		"start_date": "01/02/2026",
	}, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "start_date", decode[map[string]any](t, w)["field"])
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
