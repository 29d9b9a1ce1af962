package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Forwarded()
		m.DeliveryFailed()
		m.FetchFailed()
		m.SetCursor(4)
		m.ObserveCycle(CycleOK, time.Second, time.Now())
	})
}

func TestObserveCycle(t *testing.T) {
	m := NewMetrics()
	at := time.Unix(1_700_000_000, 0)

	m.ObserveCycle(CycleOK, 2*time.Second, at)
	m.ObserveCycle(CycleAborted, time.Second, at.Add(time.Minute))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(CycleOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(CycleAborted)))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastSuccess))
}

func TestCounters(t *testing.T) {
	m := NewMetrics()

	m.Forwarded()
	m.Forwarded()
	m.DeliveryFailed()
	m.FetchFailed()
	m.SetCursor(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesForwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Cursor))
}

func TestServerRoutes(t *testing.T) {
	m := NewMetrics()
	m.Forwarded()

	ready := errors.New("no cycle yet")
	srv := NewServer(":0", m, NewHealth(func() error { return ready }))
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "mailrelay_messages_forwarded_total 1")

	code, _ = get("/live")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	ready = nil
	code, _ = get("/ready")
	assert.Equal(t, http.StatusOK, code)
}
