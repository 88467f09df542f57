package telemetry

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, withPprof bool) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	server := New("127.0.0.1:0", reg, withPprof)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server, reg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server, reg := startServer(t, false)
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "diffcommit_test_total",
		Help: "test counter",
	}).Add(3)

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "diffcommit_test_total 3")

	status, _ = get(t, "http://"+server.Addr()+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Pprof(t *testing.T) {
	server, _ := startServer(t, true)

	for _, endpoint := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol"} {
		status, _ := get(t, "http://"+server.Addr()+endpoint)
		assert.Equal(t, http.StatusOK, status, endpoint)
	}
}

func TestServer_AddrBeforeStart(t *testing.T) {
	assert.Empty(t, New(":0", prometheus.NewRegistry(), false).Addr())
}

func TestServer_ListenError(t *testing.T) {
	server, _ := startServer(t, false)

	second := New(server.Addr(), prometheus.NewRegistry(), false)
	assert.Error(t, second.Start(context.Background()))
}
