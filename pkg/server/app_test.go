package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/pkg/config"
	xhttp "MarketWatch/pkg/http"
	"MarketWatch/pkg/logger"
)

type loop struct {
	started atomic.Bool
	stopped atomic.Bool
	err     error
}

func (l *loop) Run(ctx context.Context) error {
	l.started.Store(true)
	<-ctx.Done()
	l.stopped.Store(true)
	if l.err != nil {
		return l.err
	}
	return ctx.Err()
}

func TestAppRunStopsAllLoopsOnCancel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second

	a, b := &loop{}, &loop{err: errors.New("boom")}
	app := newApp(cfg, logger.Nop(), []worker{{name: "a", r: a}, {name: "b", r: b}}, nil, nil,
		xhttp.WithHost("127.0.0.1"), xhttp.WithRegistry(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return a.started.Load() && b.started.Load() }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, a.stopped.Load())
	assert.True(t, b.stopped.Load())
}

func TestAppCORSFollowsServerConfig(t *testing.T) {
	for _, tc := range []struct {
		name    string
		disable bool
		want    string
	}{
		{name: "enabled by default", want: "https://dash.example"},
		{name: "disabled", disable: true, want: ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Metrics.Enabled = true
			cfg.Metrics.Path = "/metrics"
			cfg.Server.DisableCORS = tc.disable

			app := newApp(cfg, logger.Nop(), nil, nil, nil, xhttp.WithRegistry(prometheus.NewRegistry()))

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.Header.Set("Origin", "https://dash.example")
			rec := httptest.NewRecorder()
			app.httpServer.Echo().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
