package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/interactor/internal/runtime/config"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	metricspkg "github.com/drblury/interactor/internal/runtime/metrics"
	"github.com/drblury/interactor/internal/runtime/names"
)

func TestStartWebUIServerDisabled(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	d.StartWebUIServer()
	assert.Empty(t, d.httpServerList())
}

func TestStartWebUIServerMountsDefaultPort(t *testing.T) {
	d := newTestDispatcher(t, &configpkg.Config{WebUIEnabled: true}, DispatcherDependencies{})
	d.StartWebUIServer()

	servers := d.httpServerList()
	require.Len(t, servers, 1)
	assert.Equal(t, ":8081", servers[0].Addr)
}

func TestHandleGetInteractors(t *testing.T) {
	d := newTestDispatcher(t, &configpkg.Config{WebUIEnabled: true}, DispatcherDependencies{})
	registerGetUser(t, d)
	_, err := Send[getUser, user](context.Background(), d, getUser{ID: "1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.handleGetInteractors(rec, httptest.NewRequest(http.MethodGet, "/api/interactors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]any
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "getUserInteractor", body[0]["name"])
	assert.Equal(t, names.OfType[getUser](), body[0]["request_type"])

	stats, ok := body[0]["stats"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, stats["dispatched"])
}

func TestHandleGetMetrics(t *testing.T) {
	m := metricspkg.NewDispatchMetrics(prometheus.NewRegistry())
	d := newTestDispatcher(t, nil, DispatcherDependencies{Metrics: m})
	registerGetUser(t, d)
	_, err := Send[getUser, user](context.Background(), d, getUser{ID: "1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.handleGetMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body webUIMetrics
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Enabled)
	assert.Equal(t, uint64(1), body.Snapshot.TotalDispatched)
	assert.Contains(t, body.Snapshot.RequestTypes, names.OfType[getUser]())
}

func TestHandleGetMetricsWithoutCollectors(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})

	rec := httptest.NewRecorder()
	d.handleGetMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	var body webUIMetrics
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Enabled)
	assert.False(t, body.Snapshot.CollectedAt.IsZero())
}

func TestWebUICORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "http://ui.local", "*"},
		{"exact match", []string{"http://ui.local"}, "http://UI.local", "http://UI.local"},
		{"not allowed", []string{"http://ui.local"}, "http://evil.local", ""},
		{"not configured", nil, "http://ui.local", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, &configpkg.Config{WebUICORSAllowedOrigins: tt.allowed}, DispatcherDependencies{})

			req := httptest.NewRequest(http.MethodGet, "/api/interactors", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			d.handleGetInteractors(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestWebUIPreflight(t *testing.T) {
	d := newTestDispatcher(t, &configpkg.Config{WebUICORSAllowedOrigins: []string{"*"}}, DispatcherDependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/api/metrics", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	d.handleGetMetrics(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
