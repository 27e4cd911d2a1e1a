// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package selftelemetry

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/iotrace/internal/tracelog"
)

func startTestServer(t *testing.T, m *Metrics) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	m.InstallHandlers(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestHealthzAndReadyz(t *testing.T) {
	m := NewMetrics("")
	srv := startTestServer(t, m)

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	m.SetReady(true)
	code, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentReady))
}

func TestLogCollector(t *testing.T) {
	m := NewMetrics("iotrace")
	logs := tracelog.NewRegistry()
	l, err := tracelog.New(tracelog.Config{Name: "file_trace", EntrySize: 4, Capacity: 3}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, logs.Register(l))
	require.NoError(t, m.RegisterLogs(logs))

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Push([]byte{1, 2, 3, 4}))
	}

	expected := `
# HELP iotrace_tracelog_overruns_total Records discarded before being read
# TYPE iotrace_tracelog_overruns_total counter
iotrace_tracelog_overruns_total{tracer="file_trace"} 2
# HELP iotrace_tracelog_available Unread records currently retained
# TYPE iotrace_tracelog_available gauge
iotrace_tracelog_available{tracer="file_trace"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"iotrace_tracelog_overruns_total", "iotrace_tracelog_available"))

	srv := startTestServer(t, m)
	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `iotrace_tracelog_pushed_total{tracer="file_trace"} 4`)
	assert.Contains(t, body, "go_goroutines")
}

func TestSourceCounters(t *testing.T) {
	m := NewMetrics("iotrace")
	m.SourceEvents.WithLabelValues("write_trace").Add(3)
	m.SourceGated.WithLabelValues("write_trace").Inc()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SourceEvents.WithLabelValues("write_trace")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceGated.WithLabelValues("write_trace")))
}
