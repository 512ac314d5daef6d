package registry

import (
	"time"

	"MarketWatch/internal/domain/models"
	"MarketWatch/pkg/series"
)

const (
	DefaultCandleCapacity = 100
	DefaultDepthCapacity  = 20
)

// SymbolState is the mutable per-symbol record. It is only touched while the
// registry lock is held; use Registry.With / Registry.View.
type SymbolState struct {
	Symbol         string
	Candles        map[models.Granularity]*series.Bounded[models.Candle]
	Depth          *series.Bounded[models.DepthSample]
	Levels         map[models.Granularity]models.KeyLevels
	LastAnalysisAt time.Time
	LastAlertAt    time.Time

	candleCap int
}

func newSymbolState(symbol string, candleCap, depthCap int) *SymbolState {
	return &SymbolState{
		Symbol:    symbol,
		Candles:   make(map[models.Granularity]*series.Bounded[models.Candle]),
		Depth:     series.NewBounded[models.DepthSample](depthCap),
		Levels:    make(map[models.Granularity]models.KeyLevels),
		candleCap: candleCap,
	}
}

// Series returns the candle series for g, creating it on first use.
func (s *SymbolState) Series(g models.Granularity) *series.Bounded[models.Candle] {
	b, ok := s.Candles[g]
	if !ok {
		b = series.NewBounded[models.Candle](s.candleCap)
		s.Candles[g] = b
	}
	return b
}

// ApplyCandle records a kline update; an update for the tail bucket replaces it.
func (s *SymbolState) ApplyCandle(g models.Granularity, c models.Candle) {
	s.Series(g).ReplaceOrPush(c, models.CandleBucket)
}

// SeedCandles replaces the history for g with candles (oldest first).
func (s *SymbolState) SeedCandles(g models.Granularity, candles []models.Candle) {
	b := s.Series(g)
	b.Reset()
	for _, c := range candles {
		b.ReplaceOrPush(c, models.CandleBucket)
	}
}

// SetLevels swaps the key levels for g as a whole.
func (s *SymbolState) SetLevels(g models.Granularity, levels models.KeyLevels) {
	s.Levels[g] = levels.Clone()
}

// StateSnapshot is a detached copy of a SymbolState.
type StateSnapshot struct {
	Symbol         string
	Candles        map[models.Granularity][]models.Candle
	Depth          []models.DepthSample
	Levels         map[models.Granularity]models.KeyLevels
	LastAnalysisAt time.Time
	LastAlertAt    time.Time
}

// LastPrice returns the close of the newest candle on g.
func (s StateSnapshot) LastPrice(g models.Granularity) (float64, bool) {
	cs := s.Candles[g]
	if len(cs) == 0 {
		return 0, false
	}
	return cs[len(cs)-1].Close, true
}

// LastDepth returns the newest depth sample.
func (s StateSnapshot) LastDepth() (models.DepthSample, bool) {
	if len(s.Depth) == 0 {
		return models.DepthSample{}, false
	}
	return s.Depth[len(s.Depth)-1], true
}

func (s *SymbolState) snapshot() StateSnapshot {
	out := StateSnapshot{
		Symbol:         s.Symbol,
		Candles:        make(map[models.Granularity][]models.Candle, len(s.Candles)),
		Depth:          s.Depth.Snapshot(),
		Levels:         make(map[models.Granularity]models.KeyLevels, len(s.Levels)),
		LastAnalysisAt: s.LastAnalysisAt,
		LastAlertAt:    s.LastAlertAt,
	}
	for g, b := range s.Candles {
		out.Candles[g] = b.Snapshot()
	}
	for g, l := range s.Levels {
		out.Levels[g] = l.Clone()
	}
	return out
}
