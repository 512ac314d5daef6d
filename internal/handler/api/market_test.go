package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/registry"
	"MarketWatch/internal/service/ratelimit"
	"MarketWatch/internal/usecase"
	xhttp "MarketWatch/pkg/http"
	"MarketWatch/pkg/logger"
)

type stubStore struct {
	rows []models.Signal
	err  error

	symbol   string
	from, to time.Time
	limit    int
}

func (s *stubStore) Init(context.Context) error                        { return nil }
func (s *stubStore) Store(context.Context, models.Signal) error        { return nil }
func (s *stubStore) StoreBatch(context.Context, []models.Signal) error { return nil }
func (s *stubStore) Health(context.Context) error                      { return s.err }
func (s *stubStore) Close() error                                      { return nil }

func (s *stubStore) Query(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.Signal, error) {
	s.symbol, s.from, s.to, s.limit = symbol, from, to, limit
	return s.rows, s.err
}

type stateStub usecase.StreamState

func (s stateStub) State() usecase.StreamState { return usecase.StreamState(s) }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *MarketHandler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	srv := xhttp.NewServer(h, logger.Nop(), xhttp.WithRegistry(prometheus.NewRegistry()))
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func newHandler(reg *registry.Registry, store *stubStore, state usecase.StreamState, rl *ratelimit.Keyed) *MarketHandler {
	checks := map[string]usecase.HealthCheck{"redis": func(context.Context) error { return nil }}
	var q *usecase.MarketQuery
	if store != nil {
		checks["clickhouse"] = store.Health
		q = usecase.NewMarketQuery(reg, store, stateStub(state), checks, models.G5m)
	} else {
		q = usecase.NewMarketQuery(reg, nil, stateStub(state), checks, models.G5m)
	}
	h := NewMarketHandler(logger.Nop(), q, rl)
	h.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestHealth(t *testing.T) {
	rec, env := serve(t, newHandler(registry.New(), &stubStore{}, usecase.StateConnected, nil), "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	var h models.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "connected", h.Stream)

	rec, env = serve(t, newHandler(registry.New(), &stubStore{err: errors.New("dial tcp: refused")}, usecase.StateConnected, nil), "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "dial tcp: refused", h.Checks["clickhouse"])
}

func TestSymbols(t *testing.T) {
	reg := registry.New()
	reg.Upsert("SOLUSDT")
	reg.Upsert("BTCUSDT")
	reg.With("BTCUSDT", func(st *registry.SymbolState) {
		st.ApplyCandle(models.G5m, models.Candle{OpenTime: time.Unix(0, 0), Close: 42000})
	})

	rec, env := serve(t, newHandler(reg, nil, usecase.StateConnected, nil), "/api/symbols")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.SymbolSummary `json:"rows"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, "BTCUSDT", list.Rows[0].Symbol)
	assert.Equal(t, 42000.0, list.Rows[0].LastPrice)
}

func TestSymbolDetail(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	reg.With("BTCUSDT", func(st *registry.SymbolState) {
		st.ApplyCandle(models.G5m, models.Candle{OpenTime: time.Unix(0, 0), Close: 42000})
		st.SetLevels(models.G1h, models.KeyLevels{Supports: []float64{41000}, Resistances: []float64{43000}})
	})
	h := newHandler(reg, nil, usecase.StateConnected, nil)

	rec, env := serve(t, h, "/api/symbols/btcusdt")
	assert.Equal(t, http.StatusOK, rec.Code)
	var d models.SymbolDetail
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, models.G5m, d.Granularity)
	require.NotNil(t, d.LastCandle)
	assert.Equal(t, 42000.0, d.LastCandle.Close)
	assert.Equal(t, []float64{41000}, d.Levels[models.G1h].Supports)

	rec, _ = serve(t, h, "/api/symbols/DOGEUSDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, h, "/api/symbols/BTCUSDT?tf=3m")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, h, "/api/symbols/BTC-USDT")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignals(t *testing.T) {
	store := &stubStore{rows: []models.Signal{{ID: "a", Symbol: "BTCUSDT", Category: models.StrongBuy, Score: 81}}}
	h := newHandler(registry.New(), store, usecase.StateConnected, nil)

	rec, env := serve(t, h, "/api/signals?symbol=btcusdt&from=2024-06-01T00:00:00Z")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.SignalEvent `json:"rows"`
		Total int64                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "strong_buy", list.Rows[0].Category)

	assert.Equal(t, "BTCUSDT", store.symbol)
	assert.Equal(t, 100, store.limit, "default limit")
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), store.from.UTC())
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), store.to.UTC())

	rec, _ = serve(t, h, "/api/signals?limit=5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.err = errors.New("code: 60, table missing")
	rec, _ = serve(t, h, "/api/signals")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSignalsWithoutStorage(t *testing.T) {
	rec, _ := serve(t, newHandler(registry.New(), nil, usecase.StateConnected, nil), "/api/signals")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSignalsRateLimited(t *testing.T) {
	h := newHandler(registry.New(), &stubStore{}, usecase.StateConnected, ratelimit.NewKeyed(0.001, 1))
	rec, _ := serve(t, h, "/api/signals")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = serve(t, h, "/api/signals")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
