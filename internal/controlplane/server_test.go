package controlplane

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NivraSD/SignalDesk-sub028/internal/dispatch"
	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/registry"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
)

type fixedStats struct{}

func (fixedStats) GetStats() dispatch.Stats {
	return dispatch.Stats{Active: 1, GlobalMax: 8, ProviderCounts: map[string]int{"crisis": 1}}
}

type testServer struct {
	*httptest.Server
	store *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := registry.New(registry.DefaultProviders(), registry.DefaultProviderID)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	eng, err := engine.New(engine.Options{
		Registry: reg,
		Store:    st,
		Metrics:  metrics.New(promReg),
	})
	require.NoError(t, err)

	srv := NewServer(NewService(eng, st, fixedStats{}, "test"), "127.0.0.1:0", promReg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorBody {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(data, &er))
	return er.Error
}

func TestExecuteAssessUrgency(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(t, http.MethodPost, "/ops/assess_urgency",
		`{"type":"crisis","affected_people":2000000,"stakeholder_pressure":"intense","media_attention":"viral","regulatory_risk":"enforcement"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out struct {
		UrgencyTier        string `json:"urgency_tier"`
		EscalationRequired bool   `json:"escalation_required"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "critical", out.UrgencyTier)
	assert.True(t, out.EscalationRequired)
}

func TestExecuteErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown operation", "/ops/launch_rockets", `{}`, http.StatusNotFound, "unknown_operation"},
		{"bad json", "/ops/assess_urgency", `{"type":`, http.StatusBadRequest, "invalid_request"},
		{"missing field", "/ops/prioritize_signal", `{}`, http.StatusBadRequest, "invalid_request"},
		{"unknown prediction", "/ops/record_outcome", `{"prediction_id":"ghost","actual_outcome":{"outcome":"x"}}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, data)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestListOps(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(t, http.MethodGet, "/ops", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out opsResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Operations, 15)
	assert.Contains(t, out.Operations, "coordinated_analysis")
}

func TestSignalsQueue(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(t, http.MethodPost, "/ops/prioritize_signal",
		`{"source_provider_id":"intelligence","signal_type":"crisis","data":{"impact":0.9}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created engine.SignalResult
	require.NoError(t, json.Unmarshal(data, &created))
	require.True(t, created.Persisted)

	resp, data = ts.do(t, http.MethodGet, "/signals?status=pending&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list engine.SignalList
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Signals, 1)
	assert.Equal(t, created.SignalID, list.Signals[0].ID)

	resp, _ = ts.do(t, http.MethodPost, "/signals/"+created.SignalID+"/ack", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = ts.do(t, http.MethodPost, "/signals/"+created.SignalID+"/ack", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Code)

	_, data = ts.do(t, http.MethodGet, "/signals?status=pending", "")
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Empty(t, list.Signals)
}

func TestSignalsBadQuery(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/signals?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/signals?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint_OK(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.True(t, health.OK)
	assert.Equal(t, "ok", health.DB)
	assert.Equal(t, "test", health.Version)
	assert.NotEmpty(t, health.Time)
	assert.Equal(t, 15, health.Operations)
	require.NotNil(t, health.Dispatcher)
	assert.Equal(t, 1, health.Dispatcher.Active)
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint_DBError(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Close())

	resp, data := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.False(t, health.OK)
	assert.NotEqual(t, "ok", health.DB)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/ops/assess_urgency", `{"type":"crisis"}`)

	resp, data := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `signaldesk_operations_total{operation="assess_urgency",outcome="ok"} 1`)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := NewServer(nil, "127.0.0.1:0", nil, nil)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
