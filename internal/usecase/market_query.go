package usecase

import (
	"context"
	"time"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	"MarketWatch/internal/registry"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// StateSource reports the stream connection state.
type StateSource interface {
	State() StreamState
}

// MarketQuery is the read side over the registry and signal history.
type MarketQuery struct {
	reg         *registry.Registry
	store       drepo.SignalStore
	stream      StateSource
	checks      map[string]HealthCheck
	granularity models.Granularity
}

// NewMarketQuery builds the query service. store may be nil when history is
// not persisted.
func NewMarketQuery(reg *registry.Registry, store drepo.SignalStore, stream StateSource, checks map[string]HealthCheck, price models.Granularity) *MarketQuery {
	if price == "" {
		price = models.G5m
	}
	return &MarketQuery{reg: reg, store: store, stream: stream, checks: checks, granularity: price}
}

// Symbols lists the universe in sorted order.
func (q *MarketQuery) Symbols() []models.SymbolSummary {
	syms := q.reg.Symbols()
	out := make([]models.SymbolSummary, 0, len(syms))
	for _, sym := range syms {
		q.reg.View(sym, func(s *registry.SymbolState) {
			row := models.SymbolSummary{
				Symbol:         sym,
				LastAnalysisAt: models.TimePtr(s.LastAnalysisAt),
				LastAlertAt:    models.TimePtr(s.LastAlertAt),
			}
			if b := s.Candles[q.granularity]; b != nil {
				if c, ok := b.Last(); ok {
					row.LastPrice = c.Close
				}
			}
			out = append(out, row)
		})
	}
	return out
}

// Symbol returns the snapshot of sym on g.
func (q *MarketQuery) Symbol(sym string, g models.Granularity) (models.SymbolDetail, error) {
	sym = models.NormalizeSymbol(sym)
	if !models.IsValidGranularity(g) {
		g = q.granularity
	}
	snap, ok := q.reg.Snapshot(sym)
	if !ok {
		return models.SymbolDetail{}, domain.ErrSymbolNotMonitored
	}

	d := models.SymbolDetail{
		Symbol:         sym,
		Granularity:    g,
		Candles:        len(snap.Candles[g]),
		Levels:         make(map[models.Granularity]models.LevelsView, len(snap.Levels)),
		LastAnalysisAt: models.TimePtr(snap.LastAnalysisAt),
		LastAlertAt:    models.TimePtr(snap.LastAlertAt),
	}
	if cs := snap.Candles[g]; len(cs) > 0 {
		d.LastCandle = models.NewCandleView(cs[len(cs)-1])
	}
	for lg, lv := range snap.Levels {
		d.Levels[lg] = models.LevelsView{
			Supports:    nonNil(lv.Supports),
			Resistances: nonNil(lv.Resistances),
			ComputedAt:  models.TimePtr(lv.ComputedAt),
		}
	}
	if ds, ok := snap.LastDepth(); ok {
		d.Depth = &models.DepthView{
			BidVolume: ds.BidVolume,
			AskVolume: ds.AskVolume,
			Pressure:  ds.Pressure(),
			At:        ds.Timestamp,
		}
	}
	return d, nil
}

// Signals reads stored history. An empty symbol means every symbol.
func (q *MarketQuery) Signals(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.SignalEvent, error) {
	if q.store == nil {
		return nil, domain.ErrStorageDisabled
	}
	rows, err := q.store.Query(ctx, models.NormalizeSymbol(symbol), from, to, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.SignalEvent, 0, len(rows))
	for _, s := range rows {
		out = append(out, models.NewSignalEvent(s))
	}
	return out, nil
}

// Health runs every check. Any failure degrades the status; a stream that
// is not connected does too.
func (q *MarketQuery) Health(ctx context.Context) models.HealthStatus {
	h := models.HealthStatus{Status: HealthOK, Checks: make(map[string]string, len(q.checks))}
	if q.stream != nil {
		st := q.stream.State()
		h.Stream = st.String()
		if st != StateConnected {
			h.Status = HealthDegraded
		}
	}
	for name, check := range q.checks {
		if err := check(ctx); err != nil {
			h.Checks[name] = err.Error()
			h.Status = HealthDegraded
			continue
		}
		h.Checks[name] = HealthOK
	}
	return h
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
