package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	"MarketWatch/internal/registry"
	"MarketWatch/internal/services/indicators"
	"MarketWatch/internal/services/scoring"
	"MarketWatch/pkg/logger"
)

// Dispatcher accepts scored signals during a tick and delivers them at its end.
type Dispatcher interface {
	Offer(ctx context.Context, sig models.Signal) bool
	Flush(ctx context.Context) int
}

// SchedulerConfig controls the analysis pass.
type SchedulerConfig struct {
	Interval          time.Duration
	Workers           int
	KlineLimit        int
	DepthLimit        int
	SymbolTimeout     time.Duration
	Timeframes        []models.Granularity
	Primary           models.Granularity
	StreamGranularity models.Granularity
	LevelsGranularity models.Granularity
	Scoring           scoring.Config
}

// BatchResult counts the outcomes of one tick.
type BatchResult struct {
	Scored    int
	Forwarded int
	Accepted  int
	Skipped   int
	Failed    int
}

// AnalysisScheduler scores every monitored symbol on a fixed cadence. One
// symbol failing never stops the batch.
type AnalysisScheduler struct {
	market     drepo.MarketData
	reg        *registry.Registry
	dispatcher Dispatcher
	metrics    drepo.Metrics
	log        *logger.Logger
	cfg        SchedulerConfig
	startAfter <-chan struct{}
	now        func() time.Time
	newID      func() string
}

type SchedulerOption func(*AnalysisScheduler)

// WithStartAfter holds the first batch until ready is closed, typically by
// the first universe scan.
func WithStartAfter(ready <-chan struct{}) SchedulerOption {
	return func(a *AnalysisScheduler) { a.startAfter = ready }
}

func NewAnalysisScheduler(market drepo.MarketData, reg *registry.Registry, dispatcher Dispatcher, metrics drepo.Metrics, log *logger.Logger, cfg SchedulerConfig, opts ...SchedulerOption) *AnalysisScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 100
	}
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = 20
	}
	if cfg.SymbolTimeout <= 0 {
		cfg.SymbolTimeout = 30 * time.Second
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []models.Granularity{models.G4h, models.G1h, models.G15m}
	}
	if cfg.Primary == "" {
		cfg.Primary = models.G1h
	}
	if cfg.StreamGranularity == "" {
		cfg.StreamGranularity = models.G5m
	}
	if cfg.LevelsGranularity == "" {
		cfg.LevelsGranularity = models.G1h
	}
	a := &AnalysisScheduler{
		market:     market,
		reg:        reg,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log.With("analysis_scheduler"),
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes a batch as soon as the start signal fires, then every
// Interval until ctx is done.
func (a *AnalysisScheduler) Run(ctx context.Context) error {
	if a.startAfter != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-a.startAfter:
		}
	}
	a.batch(ctx)

	t := time.NewTicker(a.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.batch(ctx)
		}
	}
}

func (a *AnalysisScheduler) batch(ctx context.Context) {
	start := time.Now()
	res := a.RunOnce(ctx)
	a.metrics.RecordLatency("analysis_batch", time.Since(start).Seconds())
	a.log.Info("batch complete",
		logger.Int("scored", res.Scored),
		logger.Int("forwarded", res.Forwarded),
		logger.Int("accepted", res.Accepted),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
		logger.Duration("took", time.Since(start)),
	)
}

// RunOnce analyses the current universe with bounded fan-out, then flushes
// the dispatcher.
func (a *AnalysisScheduler) RunOnce(ctx context.Context) BatchResult {
	symbols := a.reg.Symbols()

	var (
		mu  sync.Mutex
		res BatchResult
		wg  sync.WaitGroup
		sem = make(chan struct{}, a.cfg.Workers)
	)
	for _, sym := range symbols {
		select {
		case <-ctx.Done():
			wg.Wait()
			return res
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			fwd, acc, err := a.analyzeSymbol(ctx, sym)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrSymbolNotMonitored):
				res.Skipped++
				a.log.Debug("symbol left universe", logger.String("symbol", sym))
			case err != nil:
				res.Failed++
				a.metrics.RecordError("analysis")
				a.log.Error("analysis failed", logger.String("symbol", sym), logger.Error(err))
			default:
				res.Scored++
				if fwd {
					res.Forwarded++
				}
				if acc {
					res.Accepted++
				}
			}
		}(sym)
	}
	wg.Wait()

	a.dispatcher.Flush(ctx)
	return res
}

func (a *AnalysisScheduler) analyzeSymbol(ctx context.Context, sym string) (forwarded, accepted bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.SymbolTimeout)
	defer cancel()

	sig, ok, err := a.Analyze(ctx, sym)
	if err != nil {
		return false, false, fmt.Errorf("analyze %s: %w", sym, err)
	}
	a.metrics.RecordSignal(string(sig.Category))
	if !ok {
		return false, false, nil
	}
	sig.ID = a.newID()
	return true, a.dispatcher.Offer(ctx, sig), nil
}

// Analyze scores one symbol and stamps LastAnalysisAt. The bool is false
// for a neutral outcome.
func (a *AnalysisScheduler) Analyze(ctx context.Context, sym string) (models.Signal, bool, error) {
	if !a.reg.Contains(sym) {
		return models.Signal{}, false, domain.ErrSymbolNotMonitored
	}

	bundles := make(map[models.Granularity]indicators.Bundle, len(a.cfg.Timeframes))
	for _, g := range a.cfg.Timeframes {
		candles, err := a.market.Klines(ctx, sym, g, a.cfg.KlineLimit)
		if err != nil {
			return models.Signal{}, false, fmt.Errorf("klines %s: %w", g, err)
		}
		if len(candles) == 0 {
			return models.Signal{}, false, fmt.Errorf("klines %s: %w", g, domain.ErrInsufficientData)
		}
		bundles[g] = indicators.Compute(candles)
	}

	book, depthErr := a.market.Depth(ctx, sym, a.cfg.DepthLimit)

	snap, ok := a.reg.Snapshot(sym)
	if !ok {
		return models.Signal{}, false, domain.ErrSymbolNotMonitored
	}

	var depth models.DepthSample
	switch {
	case depthErr == nil:
		depth = models.DepthSample{Timestamp: a.now(), BidVolume: book.BidVolume, AskVolume: book.AskVolume}
	default:
		a.log.Debug("depth snapshot unavailable, using stream depth", logger.String("symbol", sym), logger.Error(depthErr))
		depth, _ = snap.LastDepth()
	}

	price, ok := snap.LastPrice(a.cfg.StreamGranularity)
	if !ok {
		price = bundles[a.cfg.Primary].Price
	}
	if price <= 0 {
		return models.Signal{}, false, domain.ErrInsufficientData
	}

	in := scoring.Inputs{
		Symbol:     sym,
		Price:      price,
		Timeframes: bundles,
		Primary:    a.cfg.Primary,
		Levels:     snap.Levels[a.cfg.LevelsGranularity],
		Volume:     PrepareVolume(depth, snap.Candles[a.cfg.StreamGranularity]),
		Now:        a.now(),
	}
	sig, fwd := scoring.Score(in, a.cfg.Scoring)

	if !a.reg.With(sym, func(s *registry.SymbolState) { s.LastAnalysisAt = in.Now }) {
		return models.Signal{}, false, domain.ErrSymbolNotMonitored
	}
	return sig, fwd, nil
}

// volumeWindow is the number of recent candles averaged by PrepareVolume.
const volumeWindow = 20

// PrepareVolume compares the book's total quantity with a linearly
// weighted (0.5..1.0, newest heaviest) average of recent candle volumes.
// Ratio is 0 when there is no candle history.
func PrepareVolume(depth models.DepthSample, candles []models.Candle) models.VolumeData {
	v := models.VolumeData{
		BidVolume:     depth.BidVolume,
		AskVolume:     depth.AskVolume,
		CurrentVolume: depth.Total(),
		Pressure:      depth.Pressure(),
	}
	if len(candles) > volumeWindow {
		candles = candles[len(candles)-volumeWindow:]
	}
	n := len(candles)
	if n == 0 {
		return v
	}

	var sum, wsum float64
	for i, c := range candles {
		w := 1.0
		if n > 1 {
			w = 0.5 + 0.5*float64(i)/float64(n-1)
		}
		sum += w * c.Volume
		wsum += w
	}
	v.AvgVolume = sum / wsum
	if v.AvgVolume > 0 {
		v.Ratio = v.CurrentVolume / v.AvgVolume
	}

	for i := n - 1; i > 0 && candles[i].Volume > candles[i-1].Volume; i-- {
		v.ConsecutiveIncrease++
	}
	return v
}
