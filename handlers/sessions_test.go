package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stark-secure/starkmole-integrity/integrity"
	"github.com/stark-secure/starkmole-integrity/middleware"
	"github.com/stark-secure/starkmole-integrity/models"
	"github.com/stark-secure/starkmole-integrity/repository"
	"github.com/stark-secure/starkmole-integrity/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) (*mux.Router, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	secret := []byte("handler-secret")

	signer := integrity.NewSigner(secret)
	cache := integrity.NewLRUReplayCache(1024, time.Hour)
	validator := integrity.NewValidator(signer, cache, slog.Default())
	validator.Clock = clock.Now

	store := repository.Store{
		Sessions:  repository.NewMemorySessionStore(),
		Anomalies: repository.NewMemoryAnomalyStore(),
	}
	manager := session.NewManager(store, validator, signer, secret, slog.Default())
	manager.Clock = clock.Now

	handler := NewHandler(manager, NewHub(), secret, slog.Default())
	if limiter == nil {
		limiter = middleware.NewRateLimiter(0, 0)
	}
	return NewRouter(handler, limiter), clock
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func startHTTPSession(t *testing.T, router *mux.Router) models.GameSession {
	t.Helper()
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]string{
		"userId":      "user-1",
		"sessionType": "daily_challenge",
		"puzzleId":    "puzzle-9",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var created models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created
}

func TestStartAndGetSession(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusActive, created.Status)
	assert.Equal(t, "203.0.113.7", created.Metadata.IPAddress)

	rec, env := doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	rec, env = doJSON(t, router, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestStartSessionRequiresUser(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]string{
		"sessionType": "daily_challenge",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestRecordActionEndpoint(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	clock.Advance(10 * time.Second)
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/actions", map[string]interface{}{
		"type":      "move",
		"timestamp": clock.Now().UnixMilli(),
		"sequence":  2,
		"data":      map[string]int{"x": 1, "y": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var action models.GameAction
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, int64(2), action.Sequence)

	// replayed sequence number
	rec, env = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/actions", map[string]interface{}{
		"type":      "move",
		"timestamp": clock.Now().UnixMilli(),
		"sequence":  2,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
}

func TestLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paused models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &paused))
	assert.Equal(t, models.StatusPaused, paused.Status)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.Equal(t, models.StatusActive, resumed.Status)

	rec, env = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/abandon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var abandoned models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &abandoned))
	assert.Equal(t, models.StatusAbandoned, abandoned.Status)
}

func TestEndSessionEndpoint(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	clock.Advance(5 * time.Minute)
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/end", map[string]int{
		"score": 85,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.SessionIntegrityReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusValid, report.OverallStatus)
	assert.Equal(t, models.RecommendAccept, report.Recommendation)

	_, env = doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	var finished models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &finished))
	assert.Equal(t, models.StatusCompleted, finished.Status)
	assert.Equal(t, 85, finished.Score)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/end", map[string]int{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidateSessionEndpoint(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	clock.Advance(5 * time.Minute)
	rec, _ := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/end", map[string]int{"score": 85})
	require.Equal(t, http.StatusOK, rec.Code)

	// fingerprint was registered by the end run, so the re-run skips replay
	config := models.DefaultDetectionConfig()
	config.ReplayCheck = false
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/validate", map[string]interface{}{
		"config": config,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.SessionIntegrityReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusValid, report.OverallStatus)
}

func TestUserSessionsEndpoint(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	startHTTPSession(t, router)
	clock.Advance(time.Minute)
	second := startHTTPSession(t, router)

	rec, env := doJSON(t, router, http.MethodGet, "/api/users/user-1/sessions?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, second.ID, sessions[0].ID)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/users/user-1/sessions?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientAddressWithoutProxyHeader(t *testing.T) {
	router, clock := newTestRouter(t, nil)

	// no X-Forwarded-For: the port must be stripped from RemoteAddr or the
	// metadata check rejects the address and taints a clean session
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{
		"userId":      "user-1",
		"sessionType": "daily_challenge",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var created models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "192.0.2.1", created.Metadata.IPAddress)

	clock.Advance(5 * time.Minute)
	rec, env = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/end", map[string]int{"score": 85})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.SessionIntegrityReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusValid, report.OverallStatus)
	assert.Equal(t, models.RecommendAccept, report.Recommendation)
}

func TestClientAddressMultiHopForwardedFor(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{
		"userId":      "user-1",
		"sessionType": "daily_challenge",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 70.41.3.18, 150.172.238.178")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var created models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "203.0.113.7", created.Metadata.IPAddress)
}

func TestEndSessionWithoutBody(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	clock.Advance(5 * time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.ID+"/end", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var report models.SessionIntegrityReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.StatusValid, report.OverallStatus)
}

func TestActionRateLimit(t *testing.T) {
	router, clock := newTestRouter(t, middleware.NewRateLimiter(1, 2))
	created := startHTTPSession(t, router)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/actions", map[string]interface{}{
			"type":      "move",
			"timestamp": clock.Now().UnixMilli(),
			"sequence":  i + 2,
		})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes, fmt.Sprint(codes))
}
