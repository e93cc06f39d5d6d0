package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"majorcompass/internal/cache"
	"majorcompass/internal/catalog"
	"majorcompass/internal/config"
	"majorcompass/internal/identity"
	"majorcompass/internal/model"
	"majorcompass/internal/service"
	"majorcompass/internal/transport/rest/middleware"
	"majorcompass/internal/transport/ws"
)

// memRepo is an in-memory repository.ResultRepo
type memRepo struct {
	mu      sync.Mutex
	records map[string]*model.ResultRecord
}

func (m *memRepo) EnsureIndexes(ctx context.Context) {}

func (m *memRepo) Create(ctx context.Context, rec *model.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Code] = rec
	return nil
}

func (m *memRepo) GetByCode(ctx context.Context, code string) (*model.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[code], nil
}

func (m *memRepo) GetLatestByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.StudentID == studentID {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *memRepo) List(ctx context.Context, limit int) ([]*model.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.ResultRecord{}
	for _, rec := range m.records {
		if len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memRepo) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, code)
	return nil
}

func (m *memRepo) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[code]
	return ok, nil
}

type testServer struct {
	handler http.Handler
	results *service.ResultService
	repo    *memRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(config.AuthConfig{
		JWTSecret:         "router-secret",
		TokenTTL:          time.Hour,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})

	repo := &memRepo{records: map[string]*model.ResultRecord{}}
	holland := cache.NewHollandCache(client)
	dashCache := cache.NewDashboardCache(client, time.Minute)
	results := service.NewResultService(repo, cache.NewResultCache(client, 200), holland, dashCache, 10)
	sessions := service.NewSessionService(cat, results, cache.NewSnapshotCache(client, time.Hour), config.DefaultSurveyConfig(), 5)

	hub := ws.NewHub()
	t.Cleanup(hub.Close)

	c := &Container{
		AuthService:      auth,
		SessionService:   sessions,
		ResultService:    results,
		DashboardService: service.NewDashboardService(results, holland, dashCache, 100),
		Catalog:          cat,
		Decoder:          identity.NewDecoder("test-key"),
		RateLimiter:      middleware.NewRateLimiter(1, 3, nil),
		WSHub:            hub,
		DeviceSalt:       "salt",
		ListMax:          100,
		AllowedOrigins:   []string{"https://survey.example.edu"},
		Checks: map[string]Pinger{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
	}
	return &testServer{handler: NewRouter(c), results: results, repo: repo}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

type sessionBody struct {
	SessionID      string          `json:"sessionId"`
	Phase          model.Phase     `json:"phase"`
	Identity       *model.Identity `json:"identity"`
	AdvanceDelayMs int64           `json:"advanceDelayMs"`
}

func TestRouter_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/sessions?studentId=20240001&name=Ada", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created sessionBody
	decode(t, rec, &created)
	assert.Equal(t, model.PhaseIntro, created.Phase)
	require.NotNil(t, created.Identity)
	assert.Equal(t, "20240001", created.Identity.StudentID)
	assert.Equal(t, int64(300), created.AdvanceDelayMs)

	base := "/v1/sessions/" + created.SessionID
	rec = s.do(t, http.MethodPost, base+"/actions", service.SessionAction{Action: service.ActionNext}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got sessionBody
	decode(t, rec, &got)
	assert.Equal(t, model.PhaseInterestSelection, got.Phase)

	rec = s.do(t, http.MethodPost, base+"/actions", service.SessionAction{Action: service.ActionSelectCluster, Cluster: "nope"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/actions", service.SessionAction{Action: "dance"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody handlerError
	decode(t, rec, &errBody)
	assert.NotEmpty(t, errBody.Error)
	assert.NotNil(t, errBody.Session)
}

type handlerError struct {
	Error   string                 `json:"error"`
	Session map[string]interface{} `json:"session"`
}

func TestRouter_SessionEnteringSupplementary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/sessions", map[string]interface{}{
		"primaryScores": model.RIASECScores{R: 10, I: 8, A: 2},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created sessionBody
	decode(t, rec, &created)
	assert.Equal(t, model.PhaseSupplementary, created.Phase)
}

func TestRouter_UnknownSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v1/sessions/6f1c2b7e-8a7d-4c55-9d52-4f0c8a1b2c3d", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ResultLookup(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()
	require.NoError(t, s.results.Save(context.Background(), &model.ResultRecord{
		Code:        "FOUND123",
		Identity:    &model.Identity{Name: "Ada", StudentID: "20240001"},
		StudentID:   "20240001",
		Answers:     model.AnswerSet{},
		HollandCode: "IRA",
		CreatedAt:   now,
		ExpiresAt:   now.Add(model.RetentionPeriod),
	}))

	rec := s.do(t, http.MethodGet, "/v1/results/FOUND123", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "IRA", body["hollandCode"])
	assert.NotContains(t, body, "identity", "public lookups never expose identity")

	rec = s.do(t, http.MethodGet, "/v1/results/MISSING1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ResultLookupRateLimited(t *testing.T) {
	s := newTestServer(t)

	// burst of 3, then one per minute
	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodGet, "/v1/results/bad", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/v1/results/bad", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/admin/results", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", model.LoginRequest{Username: "admin", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", model.LoginRequest{Username: "admin", Password: "pw"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login model.LoginResponse
	decode(t, rec, &login)

	rec = s.do(t, http.MethodGet, "/v1/admin/results?limit=10", nil, login.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/results?limit=zero", nil, login.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/results/student/20249999", nil, login.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/dashboard", nil, login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.DashboardStats
	decode(t, rec, &stats)
	assert.Equal(t, 0, stats.TotalResults)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "ok", health["status"])

	rec = s.do(t, http.MethodGet, "/v1/catalog/clusters", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var clusters struct {
		Clusters []model.Cluster `json:"clusters"`
	}
	decode(t, rec, &clusters)
	assert.NotEmpty(t, clusters.Clusters)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/sessions", nil)
	req.Header.Set("Origin", "https://survey.example.edu")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://survey.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/sessions", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
