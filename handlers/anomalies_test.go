package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stark-secure/starkmole-integrity/models"
)

func TestAnomalyEndpoints(t *testing.T) {
	router, clock := newTestRouter(t, nil)
	created := startHTTPSession(t, router)

	// a scored session finishing in five seconds trips the too-fast warning,
	// which lands in the anomaly log
	clock.Advance(5 * time.Second)
	rec, _ := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/end", map[string]int{"score": 95})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, router, http.MethodGet, "/api/anomalies?sessionId="+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var anomalies []models.SessionAnomalyLog
	require.NoError(t, json.Unmarshal(env.Data, &anomalies))
	require.NotEmpty(t, anomalies)
	assert.Equal(t, models.AnomalySuspiciousTime, anomalies[0].AnomalyType)
	assert.False(t, anomalies[0].Resolved)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/anomalies/"+anomalies[0].ID+"/resolve", map[string]string{
		"moderatorNotes": "reviewed session replay, legitimate speedrun",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = doJSON(t, router, http.MethodGet, "/api/anomalies?userId=user-1", nil)
	require.NoError(t, json.Unmarshal(env.Data, &anomalies))
	require.NotEmpty(t, anomalies)
	assert.True(t, anomalies[0].Resolved)
	assert.Equal(t, "reviewed session replay, legitimate speedrun", anomalies[0].ModeratorNotes)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/anomalies/missing/resolve", map[string]string{
		"moderatorNotes": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnomalyFiltersExcludeOtherSessions(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec, env := doJSON(t, router, http.MethodGet, "/api/anomalies?sessionId=none", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var anomalies []models.SessionAnomalyLog
	require.NoError(t, json.Unmarshal(env.Data, &anomalies))
	assert.Empty(t, anomalies)
}
