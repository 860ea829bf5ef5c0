package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	return m, reg
}

func TestMetrics_Counters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.Notification("trace:symbol")
	m.Notification("trace:symbol")
	m.Notification("trace:data")
	m.Diagnostic("unknown_timestamp")
	m.RecordEmitted()
	m.RecordFiltered()
	m.Sentinel("<evicted>", 3)
	m.Sentinel("<evicted>", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("trace:symbol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("trace:data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("unknown_timestamp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("filtered")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sentinels.WithLabelValues("<evicted>")))
}

func TestMetrics_Gauges(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SetPending(4, 7)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pendingTimestamps))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.pendingRecords))

	m.SetPending(0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pendingTimestamps))
}

func TestMetrics_DecodeHistogram(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveDecode("bplist17", 3*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.decodeDuration))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Notification("x")
		m.Diagnostic("x")
		m.RecordEmitted()
		m.RecordFiltered()
		m.Sentinel("x", 1)
		m.SetPending(1, 1)
		m.ObserveDecode("x", time.Second)
	})
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestServer_Handler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordEmitted()

	srv := httptest.NewServer(NewServer("", reg, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `xpcspy_records_total{outcome="emitted"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	_, reg := newTestMetrics(t)
	s := NewServer("127.0.0.1:0", reg, nil)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start must fail")

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "stop is idempotent")
}
