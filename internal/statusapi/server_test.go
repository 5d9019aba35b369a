package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/stats"
	"github.com/betbot/makerbot/pkg/logger"
)

func TestHealthz(t *testing.T) {
	s := New(stats.NewLatest(domain.ModeSimulated, "", ""), logger.Discard())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusBeforeFirstSnapshot(t *testing.T) {
	s := New(stats.NewLatest(domain.ModeSimulated, "explicit dry run", ""), logger.Discard())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusReturnsLatest(t *testing.T) {
	latest := stats.NewLatest(domain.ModeSimulated, "missing market", "run-42")
	spread := 12.0
	require.NoError(t, latest.Publish(domain.StatsRecord{Fills: 1, Cancels: 2, Status: "dry", RefreshMs: 600, Updated: 10}))
	require.NoError(t, latest.Publish(domain.StatsRecord{Fills: 3, Cancels: 8, AvgSpreadBps: &spread, Status: "dry", RefreshMs: 600, Updated: 11}))

	s := New(latest, logger.Discard())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["fills"])
	assert.Equal(t, float64(8), body["cancels"])
	assert.Equal(t, 12.0, body["avg_spread_bps"])
	assert.Equal(t, float64(11), body["updated"])
	assert.Equal(t, "dry", body["status"])
	assert.Equal(t, "dry", body["mode"])
	assert.Equal(t, "missing market", body["reason"])
	assert.Equal(t, "run-42", body["run_id"])
}
