package usecase

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/registry"
	"MarketWatch/internal/services/levels"
	pkgcache "MarketWatch/pkg/cache"
	"MarketWatch/pkg/logger"
)

func TestAdvice(t *testing.T) {
	tests := []struct {
		t4h, t1h float64
		want     string
	}{
		{0.6, 0.4, AdviceLong},
		{0.6, 0.2, AdviceWait},
		{0.4, 0.9, AdviceWait},
		{-0.6, -0.4, AdviceShort},
		{-0.6, 0.4, AdviceWait},
		{0, 0, AdviceWait},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Advice(tt.t4h, tt.t1h), "4h=%v 1h=%v", tt.t4h, tt.t1h)
	}
}

func TestHeadlineBuild(t *testing.T) {
	market := newFakeMarket()
	// +1% per bar is a strong uptrend on both timeframes
	cs := make([]models.Candle, 60)
	p := 100.0
	for i := range cs {
		open := p
		p *= 1.01
		cs[i] = models.Candle{OpenTime: time.Unix(int64(i)*3600, 0), Open: open, High: p, Low: open, Close: p, Volume: 1}
	}
	market.klines["BTCUSDT"] = cs

	h := NewHeadlineReporter(market, registry.New(), levels.NewFinder(), &fakeNotifier{}, nil, logger.Nop(),
		HeadlineConfig{Symbols: []string{"btcusdt"}})
	r, err := h.Build(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, AdviceLong, r.Advice)
	assert.InDelta(t, 1.0, r.Trend1h, 1e-6)
	assert.InDelta(t, (math.Pow(1.01, 24)-1)*100, r.Change24h, 1e-6)
	assert.Greater(t, r.RSI1h, 70.0)
	assert.NotEmpty(t, r.Levels.Supports)
}

func TestHeadlineRunOnceLocksPerHour(t *testing.T) {
	market := newFakeMarket()
	market.klines["*"] = trendCandles(60, 100, 0.1)
	market.failing["ETHUSDT"] = true
	notifier := &fakeNotifier{}
	locks := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer locks.Close()

	h := NewHeadlineReporter(market, registry.New(), levels.NewFinder(), notifier, locks, logger.Nop(),
		HeadlineConfig{Symbols: []string{"BTCUSDT", "ETHUSDT"}, Interval: time.Hour})
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	assert.Equal(t, 1, h.RunOnce(ctx), "failed symbols do not block the others")
	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0], "BTCUSDT"))

	assert.Equal(t, 0, h.RunOnce(ctx), "a second instance in the same hour is locked out")
}

func TestHeadlineRunReportsWithoutWaiting(t *testing.T) {
	market := newFakeMarket()
	market.klines["*"] = trendCandles(60, 100, 0.1)
	notifier := &fakeNotifier{}
	h := NewHeadlineReporter(market, registry.New(), levels.NewFinder(), notifier, nil, logger.Nop(),
		HeadlineConfig{Symbols: []string{"BTCUSDT", "SOLUSDT"}, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return len(notifier.messages()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestHeadlineUsesConfiguredLevelsGranularity(t *testing.T) {
	market := newFakeMarket()
	market.klines["*"] = trendCandles(60, 100, 0.1)
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	stored := models.KeyLevels{Supports: []float64{42}, Resistances: []float64{420}}
	reg.With("BTCUSDT", func(s *registry.SymbolState) { s.SetLevels(models.G4h, stored) })

	h := NewHeadlineReporter(market, reg, levels.NewFinder(), &fakeNotifier{}, nil, logger.Nop(),
		HeadlineConfig{Symbols: []string{"BTCUSDT"}, LevelsGranularity: models.G4h})
	r, err := h.Build(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, stored.Supports, r.Levels.Supports)
	assert.Equal(t, stored.Resistances, r.Levels.Resistances)
}
