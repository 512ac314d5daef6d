package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	domsvc "MarketWatch/internal/domain/service"
	"MarketWatch/internal/registry"
	"MarketWatch/internal/service/telegram"
	"MarketWatch/internal/services/indicators"
	pkgcache "MarketWatch/pkg/cache"
	"MarketWatch/pkg/logger"
)

const (
	AdviceLong  = "long"
	AdviceShort = "short"
	AdviceWait  = "wait"

	headlineBars = 100
	// 1h bars in a day, used for Change24h.
	barsPerDay = 24
)

// Locker is the lock subset of pkg/cache.Service.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

var _ Locker = (pkgcache.Service)(nil)

// HeadlineConfig selects the headline symbols and cadence.
type HeadlineConfig struct {
	Symbols  []string
	Interval time.Duration
	// LevelsGranularity is the granularity the scanner stores key levels under.
	LevelsGranularity models.Granularity
}

// HeadlineReporter sends an hourly multi-timeframe summary for a fixed
// list of headline symbols.
type HeadlineReporter struct {
	market   drepo.MarketData
	reg      *registry.Registry
	finder   domsvc.LevelFinder
	notifier drepo.Notifier
	locker   Locker
	symbols  []string
	interval time.Duration
	levelsG  models.Granularity
	log      *logger.Logger
	now      func() time.Time
}

// NewHeadlineReporter builds a reporter. locker may be nil for a single instance.
func NewHeadlineReporter(market drepo.MarketData, reg *registry.Registry, finder domsvc.LevelFinder, notifier drepo.Notifier, locker Locker, log *logger.Logger, cfg HeadlineConfig) *HeadlineReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LevelsGranularity == "" {
		cfg.LevelsGranularity = models.G1h
	}
	norm := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s = models.NormalizeSymbol(s); s != "" {
			norm = append(norm, s)
		}
	}
	return &HeadlineReporter{
		market:   market,
		reg:      reg,
		finder:   finder,
		notifier: notifier,
		locker:   locker,
		symbols:  norm,
		interval: cfg.Interval,
		levelsG:  cfg.LevelsGranularity,
		log:      log.With("headline_reporter"),
		now:      time.Now,
	}
}

// Run reports immediately, then every interval until ctx is done.
func (h *HeadlineReporter) Run(ctx context.Context) error {
	if len(h.symbols) == 0 {
		return nil
	}
	h.RunOnce(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			h.RunOnce(ctx)
		}
	}
}

// RunOnce builds and sends one report per headline symbol. It returns the
// number of reports delivered.
func (h *HeadlineReporter) RunOnce(ctx context.Context) int {
	sent := 0
	for _, sym := range h.symbols {
		if ctx.Err() != nil {
			return sent
		}
		if !h.acquire(ctx, sym) {
			continue
		}
		r, err := h.Build(ctx, sym)
		if err != nil {
			h.log.Error("headline build failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		if err := h.notifier.Send(ctx, telegram.FormatHeadline(r)); err != nil {
			h.log.Error("headline delivery failed", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// acquire takes the per-symbol, per-hour lock so only one instance reports.
func (h *HeadlineReporter) acquire(ctx context.Context, sym string) bool {
	if h.locker == nil {
		return true
	}
	key := pkgcache.GenerateKey("headline", sym, h.now().UTC().Truncate(time.Hour).Unix())
	ok, err := h.locker.TryLock(ctx, key, h.interval)
	if err != nil {
		h.log.Warn("headline lock failed, reporting anyway", logger.String("symbol", sym), logger.Error(err))
		return true
	}
	return ok
}

// Build computes the report for sym from fresh 4h and 1h klines.
func (h *HeadlineReporter) Build(ctx context.Context, sym string) (models.HeadlineReport, error) {
	c4h, err := h.market.Klines(ctx, sym, models.G4h, headlineBars)
	if err != nil {
		return models.HeadlineReport{}, fmt.Errorf("klines 4h: %w", err)
	}
	c1h, err := h.market.Klines(ctx, sym, models.G1h, headlineBars)
	if err != nil {
		return models.HeadlineReport{}, fmt.Errorf("klines 1h: %w", err)
	}
	b4h := indicators.Compute(c4h)
	b1h := indicators.Compute(c1h)

	r := models.HeadlineReport{
		Symbol:      sym,
		Price:       b1h.Price,
		Change24h:   change24h(c1h),
		Trend4h:     b4h.TrendStrength,
		Trend1h:     b1h.TrendStrength,
		RSI1h:       b1h.RSI,
		MACDHist1h:  b1h.MACD.Hist,
		GeneratedAt: h.now(),
	}
	r.Advice = Advice(r.Trend4h, r.Trend1h)

	if snap, ok := h.reg.Snapshot(sym); ok && len(snap.Levels[h.levelsG].Supports)+len(snap.Levels[h.levelsG].Resistances) > 0 {
		r.Levels = snap.Levels[h.levelsG]
	} else if lv, err := h.finder.Find(c1h, r.Price); err == nil {
		r.Levels = lv
	} else {
		h.log.Debug("headline levels unavailable", logger.String("symbol", sym), logger.Error(err))
	}
	return r, nil
}

// Advice maps the 4h and 1h trend strengths to a directional bias.
func Advice(trend4h, trend1h float64) string {
	switch {
	case trend4h > 0.5 && trend1h > 0.3:
		return AdviceLong
	case trend4h < -0.5 && trend1h < -0.3:
		return AdviceShort
	default:
		return AdviceWait
	}
}

func change24h(c1h []models.Candle) float64 {
	if len(c1h) <= barsPerDay {
		return 0
	}
	last := c1h[len(c1h)-1].Close
	prev := c1h[len(c1h)-1-barsPerDay].Close
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}
