package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/registry"
)

type stateStub StreamState

func (s stateStub) State() StreamState { return StreamState(s) }

func TestMarketQuerySymbols(t *testing.T) {
	reg := registry.New()
	reg.Upsert("ETHUSDT")
	reg.Upsert("BTCUSDT")
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	reg.With("BTCUSDT", func(st *registry.SymbolState) {
		st.SeedCandles(models.G5m, trendCandles(3, 100, 1))
		st.LastAnalysisAt = at
	})
	q := NewMarketQuery(reg, nil, nil, nil, "")

	rows := q.Symbols()
	require.Len(t, rows, 2)
	assert.Equal(t, "BTCUSDT", rows[0].Symbol)
	assert.Equal(t, 103.0, rows[0].LastPrice)
	require.NotNil(t, rows[0].LastAnalysisAt)
	assert.Equal(t, at, *rows[0].LastAnalysisAt)
	assert.Nil(t, rows[0].LastAlertAt)
	assert.Zero(t, rows[1].LastPrice)

	snap, _ := reg.Snapshot("ETHUSDT")
	assert.Empty(t, snap.Candles, "listing does not create series")
}

func TestMarketQuerySymbol(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	reg.With("BTCUSDT", func(st *registry.SymbolState) {
		st.SeedCandles(models.G5m, trendCandles(3, 100, 1))
		st.SetLevels(models.G1h, models.KeyLevels{Supports: []float64{99}, Resistances: []float64{105}})
		st.Depth.Push(models.DepthSample{BidVolume: 2, AskVolume: 4})
	})
	q := NewMarketQuery(reg, nil, nil, nil, models.G5m)

	d, err := q.Symbol("btcusdt", "bogus")
	require.NoError(t, err)
	assert.Equal(t, models.G5m, d.Granularity)
	assert.Equal(t, 3, d.Candles)
	require.NotNil(t, d.LastCandle)
	assert.Equal(t, 103.0, d.LastCandle.Close)
	assert.Equal(t, []float64{105}, d.Levels[models.G1h].Resistances)
	require.NotNil(t, d.Depth)
	assert.Equal(t, 0.5, d.Depth.Pressure)

	d, err = q.Symbol("BTCUSDT", models.G1h)
	require.NoError(t, err)
	assert.Nil(t, d.LastCandle)

	_, err = q.Symbol("DOGEUSDT", models.G5m)
	assert.ErrorIs(t, err, domain.ErrSymbolNotMonitored)
}

func TestMarketQuerySignals(t *testing.T) {
	q := NewMarketQuery(registry.New(), nil, nil, nil, "")
	_, err := q.Signals(context.Background(), "", time.Time{}, time.Now(), 10)
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)

	store := &fakeStore{query: []models.Signal{{ID: "1", Symbol: "BTCUSDT", Category: models.Buy, Score: 61}}}
	q = NewMarketQuery(registry.New(), store, nil, nil, "")
	rows, err := q.Signals(context.Background(), "btcusdt", time.Time{}, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "buy", rows[0].Category)
}

func TestMarketQueryHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	q := NewMarketQuery(registry.New(), nil, stateStub(StateConnected), map[string]HealthCheck{"clickhouse": ok, "redis": ok}, "")
	h := q.Health(context.Background())
	assert.Equal(t, HealthOK, h.Status)
	assert.Equal(t, "connected", h.Stream)
	assert.Equal(t, map[string]string{"clickhouse": "ok", "redis": "ok"}, h.Checks)

	q = NewMarketQuery(registry.New(), nil, stateStub(StateConnected), map[string]HealthCheck{"redis": down}, "")
	h = q.Health(context.Background())
	assert.Equal(t, HealthDegraded, h.Status)
	assert.Equal(t, "connection refused", h.Checks["redis"])

	q = NewMarketQuery(registry.New(), nil, stateStub(StateConnecting), nil, "")
	assert.Equal(t, HealthDegraded, q.Health(context.Background()).Status)
}
