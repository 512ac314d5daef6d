package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	domsvc "MarketWatch/internal/domain/service"
	"MarketWatch/internal/registry"
	"MarketWatch/pkg/logger"
)

// Resubscriber is told when the monitored universe changed.
type Resubscriber interface {
	Resubscribe()
}

// ScannerConfig controls universe selection.
type ScannerConfig struct {
	CoreSymbols       []string
	Denylist          []string
	QuoteAsset        string
	TopN              int
	Interval          time.Duration
	LevelsGranularity models.Granularity
	LevelsBars        int
	// SeedGranularity is the streamed granularity whose buffer is seeded
	// from REST history on bootstrap.
	SeedGranularity models.Granularity
	SeedBars        int
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	Added      []string
	Removed    []string
	RolledBack []string
}

// UniverseScanner periodically reselects the monitored symbols.
type UniverseScanner struct {
	market  drepo.MarketData
	reg     *registry.Registry
	finder  domsvc.LevelFinder
	levels  drepo.LevelsCache
	stream  Resubscriber
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     ScannerConfig
	deny    []*regexp.Regexp

	ready     chan struct{}
	readyOnce sync.Once
}

// NewUniverseScanner compiles the denylist. levels may be nil.
func NewUniverseScanner(
	market drepo.MarketData,
	reg *registry.Registry,
	finder domsvc.LevelFinder,
	levels drepo.LevelsCache,
	stream Resubscriber,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg ScannerConfig,
) (*UniverseScanner, error) {
	deny := make([]*regexp.Regexp, 0, len(cfg.Denylist))
	for _, p := range cfg.Denylist {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("denylist pattern %q: %w", p, err)
		}
		deny = append(deny, re)
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LevelsBars <= 0 {
		cfg.LevelsBars = 200
	}
	if cfg.SeedBars <= 0 {
		cfg.SeedBars = registry.DefaultCandleCapacity
	}
	return &UniverseScanner{
		market:  market,
		reg:     reg,
		finder:  finder,
		levels:  levels,
		stream:  stream,
		metrics: metrics,
		log:     log.With("universe_scanner"),
		cfg:     cfg,
		deny:    deny,
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once the first scan has finished, successfully or not.
func (s *UniverseScanner) Ready() <-chan struct{} { return s.ready }

// Run scans immediately and then every Interval until ctx is done.
func (s *UniverseScanner) Run(ctx context.Context) error {
	s.runOnce(ctx)
	s.readyOnce.Do(func() { close(s.ready) })
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

func (s *UniverseScanner) runOnce(ctx context.Context) {
	start := time.Now()
	res, err := s.Scan(ctx)
	s.metrics.RecordLatency("universe_scan", time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordError("universe_scan")
			s.log.Error("scan failed", logger.Error(err))
		}
		return
	}
	s.log.Info("scan complete",
		logger.Strings("added", res.Added),
		logger.Strings("removed", res.Removed),
		logger.Strings("rolled_back", res.RolledBack),
		logger.Int("size", s.reg.Len()),
	)
}

// Scan selects the next universe, applies the diff to the registry,
// bootstraps new symbols and refreshes levels of retained ones.
func (s *UniverseScanner) Scan(ctx context.Context) (ScanResult, error) {
	tickers, err := s.market.Tickers24h(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("universe scan: %w", err)
	}
	next := s.Select(tickers)
	added, removed := Diff(s.reg.Symbols(), next)

	var res ScanResult
	for _, sym := range removed {
		s.reg.Remove(sym)
		res.Removed = append(res.Removed, sym)
	}

	addedSet := make(map[string]struct{}, len(added))
	for _, sym := range added {
		addedSet[sym] = struct{}{}
		s.reg.Upsert(sym)
		if err := s.bootstrap(ctx, sym); err != nil {
			s.reg.Remove(sym)
			res.RolledBack = append(res.RolledBack, sym)
			s.metrics.RecordError("bootstrap")
			s.log.Warn("bootstrap failed, rolled back", logger.String("symbol", sym), logger.Error(err))
			continue
		}
		res.Added = append(res.Added, sym)
	}

	for _, sym := range s.reg.Symbols() {
		if _, fresh := addedSet[sym]; fresh {
			continue
		}
		if err := s.refreshLevels(ctx, sym); err != nil {
			if isDegenerate(err) {
				s.reg.Remove(sym)
				res.RolledBack = append(res.RolledBack, sym)
				s.log.Warn("levels degenerate, removed", logger.String("symbol", sym), logger.Error(err))
				continue
			}
			// keep the previous levels on transient errors
			s.log.Warn("levels refresh failed", logger.String("symbol", sym), logger.Error(err))
		}
	}

	s.metrics.SetUniverseSize(s.reg.Len())
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	s.stream.Resubscribe()
	return res, nil
}

// Select ranks tickers and unions the ranked lists with the core set. The
// result is sorted.
func (s *UniverseScanner) Select(tickers []models.Ticker24h) []string {
	eligible := make([]models.Ticker24h, 0, len(tickers))
	for _, t := range tickers {
		sym := models.NormalizeSymbol(t.Symbol)
		if !strings.HasSuffix(sym, s.cfg.QuoteAsset) || sym == s.cfg.QuoteAsset || s.denied(sym) {
			continue
		}
		t.Symbol = sym
		eligible = append(eligible, t)
	}

	set := make(map[string]struct{})
	for _, sym := range s.cfg.CoreSymbols {
		if sym = models.NormalizeSymbol(sym); sym != "" {
			set[sym] = struct{}{}
		}
	}
	take := func(less func(a, b models.Ticker24h) bool) {
		sorted := append([]models.Ticker24h(nil), eligible...)
		sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
		for i := 0; i < len(sorted) && i < s.cfg.TopN; i++ {
			set[sorted[i].Symbol] = struct{}{}
		}
	}
	if s.cfg.TopN > 0 {
		take(func(a, b models.Ticker24h) bool { return a.QuoteVolume > b.QuoteVolume })
		take(func(a, b models.Ticker24h) bool { return a.PriceChangePercent > b.PriceChangePercent })
		take(func(a, b models.Ticker24h) bool { return a.PriceChangePercent < b.PriceChangePercent })
	}

	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *UniverseScanner) denied(sym string) bool {
	for _, re := range s.deny {
		if re.MatchString(sym) {
			return true
		}
	}
	return false
}

// Diff returns the symbols only in next (added) and only in prior
// (removed), each sorted.
func Diff(prior, next []string) (added, removed []string) {
	p := make(map[string]struct{}, len(prior))
	for _, s := range prior {
		p[models.NormalizeSymbol(s)] = struct{}{}
	}
	n := make(map[string]struct{}, len(next))
	for _, s := range next {
		n[models.NormalizeSymbol(s)] = struct{}{}
	}
	for s := range n {
		if _, ok := p[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range p {
		if _, ok := n[s]; !ok {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func (s *UniverseScanner) bootstrap(ctx context.Context, sym string) error {
	if err := s.refreshLevels(ctx, sym); err != nil {
		return err
	}
	if s.cfg.SeedGranularity == "" {
		return nil
	}
	candles, err := s.market.Klines(ctx, sym, s.cfg.SeedGranularity, s.cfg.SeedBars)
	if err != nil {
		return fmt.Errorf("seed %s: %w", sym, err)
	}
	if !s.reg.With(sym, func(st *registry.SymbolState) { st.SeedCandles(s.cfg.SeedGranularity, candles) }) {
		return fmt.Errorf("seed %s: %w", sym, domain.ErrSymbolNotMonitored)
	}
	return nil
}

func (s *UniverseScanner) refreshLevels(ctx context.Context, sym string) error {
	g := s.cfg.LevelsGranularity
	candles, err := s.market.Klines(ctx, sym, g, s.cfg.LevelsBars)
	if err != nil {
		return fmt.Errorf("levels klines %s: %w", sym, err)
	}
	var price float64
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}
	lv, err := s.finder.Find(candles, price)
	if err != nil {
		return fmt.Errorf("levels %s: %w", sym, err)
	}
	if !s.reg.With(sym, func(st *registry.SymbolState) { st.SetLevels(g, lv) }) {
		return fmt.Errorf("levels %s: %w", sym, domain.ErrSymbolNotMonitored)
	}
	if s.levels != nil {
		if err := s.levels.SetLevels(ctx, sym, g, lv); err != nil {
			s.log.Warn("cache levels", logger.String("symbol", sym), logger.Error(err))
		}
	}
	return nil
}

func isDegenerate(err error) bool {
	return errors.Is(err, domain.ErrDegenerateLevels) || errors.Is(err, domain.ErrInsufficientData)
}
