package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regadmin/internal/auth"
	"regadmin/internal/config"
	"regadmin/internal/registration"
	"regadmin/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProvider scripts provider behavior for handler tests.
type stubProvider struct {
	records   []registration.Record
	queryErr  error
	countErr  error
	updateErr error
	deleteErr error
	updated   map[string]registration.Patch
}

func (s *stubProvider) Query(ctx context.Context, collection string, filters registration.Filters, opts registration.Options) ([]registration.Record, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []registration.Record
	for _, r := range s.records {
		if filters.Match(r) {
			out = append(out, r)
		}
	}
	registration.SortRecords(out, opts)
	return registration.Page(out, opts), nil
}

func (s *stubProvider) Count(ctx context.Context, collection string, filters registration.Filters) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, r := range s.records {
		if filters.Match(r) {
			n++
		}
	}
	return n, nil
}

func (s *stubProvider) Update(ctx context.Context, collection, id string, patch registration.Patch) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.updated == nil {
		s.updated = make(map[string]registration.Patch)
	}
	s.updated[id] = patch
	return nil
}

func (s *stubProvider) Delete(ctx context.Context, collection, id string) error {
	return s.deleteErr
}

func (s *stubProvider) MajorDistribution(ctx context.Context, collection string) (map[string]int, error) {
	dist := make(map[string]int)
	for _, r := range s.records {
		key := r.Major
		if key == "" {
			key = "unspecified"
		}
		dist[key]++
	}
	return dist, nil
}

func (s *stubProvider) Subscribe(collection string, fn func([]registration.Record)) registration.Subscription {
	return stubSubscription{}
}

func (s *stubProvider) CheckConnection(ctx context.Context) registration.ConnectionStatus {
	return registration.ConnectionStatus{Connected: true, DataCount: len(s.records)}
}

type stubSubscription struct{}

func (stubSubscription) Stop() {}

func testConfig() config.App {
	return config.App{
		Env:             "test",
		SessionSecret:   "test-secret",
		SessionTTL:      time.Hour,
		FailSoft:        true,
		LoginRatePerMin: 1000,
	}
}

func newTestRouter(t *testing.T, p registration.Provider, failSoft bool) *gin.Engine {
	t.Helper()
	cfg := testConfig()
	cfg.FailSoft = failSoft
	svc := registration.NewService(p, "mock", failSoft)
	return newRouter(cfg, svc, session.NewMemory(), auth.DefaultAccounts())
}

func doJSON(r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, r *gin.Engine) []*http.Cookie {
	t.Helper()
	rec := doJSON(r, http.MethodPost, "/api/login", gin.H{"username": "admin", "password": "admin123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "login must set the session cookie")
	return cookies
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func threeRecords() []registration.Record {
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return []registration.Record{
		{ID: "1", Name: "张三", Phone: "13800138000", Status: registration.StatusPending, CreateTime: base},
		{ID: "2", Name: "李四", Phone: "13900139000", Status: registration.StatusApproved, CreateTime: base.Add(time.Hour)},
		{ID: "3", Name: "王五", Phone: "13700137000", Status: registration.StatusPending, CreateTime: base.Add(2 * time.Hour)},
	}
}

func TestLogin_Success(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	rec := doJSON(r, http.MethodPost, "/api/login", gin.H{"username": "admin", "password": "admin123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["username"])
	assert.Equal(t, "admin", user["role"])

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			found = true
			assert.True(t, c.HttpOnly, "session cookie must be http-only")
			assert.NotEmpty(t, c.Value)
		}
	}
	assert.True(t, found, "session cookie missing")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	for _, creds := range []gin.H{
		{"username": "admin", "password": "wrong"},
		{"username": "ghost", "password": "admin123"},
	} {
		rec := doJSON(r, http.MethodPost, "/api/login", creds, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies(), "no cookie on failed login")
		body := decode(t, rec)
		assert.NotEmpty(t, body["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	rec := doJSON(r, http.MethodPost, "/api/login", gin.H{"username": "admin"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionRoundTrip(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/session", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["loggedIn"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["username"])
	assert.Equal(t, "admin", user["role"])

	rec = doJSON(r, http.MethodGet, "/api/check-session", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_AnonymousIsLoggedOut(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	rec := doJSON(r, http.MethodGet, "/api/session", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["loggedIn"])
}

func TestLogout_DestroysSession(t *testing.T) {
	r := newTestRouter(t, &stubProvider{records: threeRecords()}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodPost, "/api/logout", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/registrations", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "session must be dead after logout")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/registrations"},
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/check-session"},
		{http.MethodGet, "/api/db-status"},
		{http.MethodPut, "/api/registrations/1/status"},
		{http.MethodDelete, "/api/registrations/1"},
	}
	for _, p := range paths {
		rec := doJSON(r, p.method, p.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
		body := decode(t, rec)
		assert.NotEmpty(t, body["error"])
	}
}

func TestRegistrations_PageSizeTwoOfThree(t *testing.T) {
	r := newTestRouter(t, &stubProvider{records: threeRecords()}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/registrations?page=1&pageSize=2", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"].([]any), 2)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(2), body["pageSize"])
}

func TestRegistrations_StatusFilter(t *testing.T) {
	r := newTestRouter(t, &stubProvider{records: threeRecords()}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/registrations?status=approved", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "李四", data[0].(map[string]any)["name"])
	assert.Equal(t, float64(1), body["total"])
}

func TestRegistrations_FailSoftNeverErrors(t *testing.T) {
	r := newTestRouter(t, &stubProvider{queryErr: errors.New("cloud down")}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/registrations", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["data"].([]any), "degraded mode still serves a placeholder")
	assert.Contains(t, body["source"], "provider unavailable")
}

func TestStats_ProviderOutageIsSurfaced(t *testing.T) {
	r := newTestRouter(t, &stubProvider{countErr: errors.New("cloud down")}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/stats", nil, cookies)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestStats_Success(t *testing.T) {
	r := newTestRouter(t, &stubProvider{records: threeRecords()}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/stats", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(2), data["pending"])
	assert.Equal(t, float64(1), data["approved"])
	assert.Equal(t, float64(0), data["rejected"])
}

func TestStatsMajors(t *testing.T) {
	records := threeRecords()
	records[0].Major = "软件工程"
	records[1].Major = "软件工程"
	r := newTestRouter(t, &stubProvider{records: records}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/stats/majors", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["软件工程"])
	assert.Equal(t, float64(1), data["unspecified"])
}

func TestDBStatus(t *testing.T) {
	r := newTestRouter(t, &stubProvider{records: threeRecords()}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodGet, "/api/db-status", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, float64(3), body["dataCount"])
}

func TestUpdateStatus_InvalidStatusRejectedBeforeProvider(t *testing.T) {
	p := &stubProvider{records: threeRecords()}
	r := newTestRouter(t, p, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodPut, "/api/registrations/1/status", gin.H{"status": "active"}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.updated, "invalid status must not reach the provider")
}

func TestUpdateStatus_Success(t *testing.T) {
	p := &stubProvider{records: threeRecords()}
	r := newTestRouter(t, p, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodPut, "/api/registrations/1/status", gin.H{"status": "approved", "reason": "checked"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	patch, ok := p.updated["1"]
	require.True(t, ok)
	assert.Equal(t, registration.StatusApproved, patch.Status)
	assert.Equal(t, "checked", patch.ReviewReason)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	r := newTestRouter(t, &stubProvider{updateErr: registration.ErrNotFound}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodPut, "/api/registrations/ghost/status", gin.H{"status": "approved"}, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_NotFound(t *testing.T) {
	r := newTestRouter(t, &stubProvider{deleteErr: registration.ErrNotFound}, true)
	cookies := login(t, r)

	rec := doJSON(r, http.MethodDelete, "/api/registrations/ghost", nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestHealth_NoAuthNeeded(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	rec := doJSON(r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestNoRoute_JSON404(t *testing.T) {
	r := newTestRouter(t, &stubProvider{}, true)

	rec := doJSON(r, http.MethodGet, "/api/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["error"])
}
