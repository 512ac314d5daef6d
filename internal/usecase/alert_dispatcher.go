package usecase

import (
	"context"
	"sync"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	"MarketWatch/internal/registry"
	"MarketWatch/internal/service/telegram"
	"MarketWatch/pkg/logger"
)

// SignalSink receives the signals of a flushed batch.
type SignalSink interface {
	Record(ctx context.Context, signals []models.Signal) error
}

// DispatcherConfig holds cooldowns and message chunking.
type DispatcherConfig struct {
	StrongCooldown time.Duration
	Cooldown       time.Duration
	ChunkSize      int
}

// AlertDispatcher gates signals by per-symbol cooldown and delivers the
// accepted ones once per analysis tick.
type AlertDispatcher struct {
	reg       *registry.Registry
	notifier  drepo.Notifier
	cooldowns drepo.CooldownStore
	sink      SignalSink
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       DispatcherConfig
	now       func() time.Time

	mu      sync.Mutex
	pending []models.Signal
	queued  map[string]struct{}
}

type DispatcherOption func(*AlertDispatcher)

// WithClock replaces time.Now for cooldown checks.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *AlertDispatcher) { d.now = now }
}

// WithCooldownStore mirrors alert times to a durable store.
func WithCooldownStore(s drepo.CooldownStore) DispatcherOption {
	return func(d *AlertDispatcher) { d.cooldowns = s }
}

// WithSignalSink hands every flushed batch to sink.
func WithSignalSink(sink SignalSink) DispatcherOption {
	return func(d *AlertDispatcher) { d.sink = sink }
}

func NewAlertDispatcher(reg *registry.Registry, notifier drepo.Notifier, metrics drepo.Metrics, log *logger.Logger, cfg DispatcherConfig, opts ...DispatcherOption) *AlertDispatcher {
	if cfg.StrongCooldown <= 0 {
		cfg.StrongCooldown = 3 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5
	}
	d := &AlertDispatcher{
		reg:      reg,
		notifier: notifier,
		metrics:  metrics,
		log:      log.With("alert_dispatcher"),
		cfg:      cfg,
		now:      time.Now,
		queued:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *AlertDispatcher) cooldownFor(c models.Category) time.Duration {
	if c.IsStrong() {
		return d.cfg.StrongCooldown
	}
	return d.cfg.Cooldown
}

// Offer queues sig unless its symbol alerted within the cooldown or is
// already queued this tick. It reports whether sig was accepted.
func (d *AlertDispatcher) Offer(ctx context.Context, sig models.Signal) bool {
	if sig.Category == models.Neutral || sig.Category == "" {
		return false
	}
	sym := models.NormalizeSymbol(sig.Symbol)

	var last time.Time
	if !d.reg.View(sym, func(s *registry.SymbolState) { last = s.LastAlertAt }) {
		d.metrics.RecordAlert("unmonitored")
		return false
	}
	if last.IsZero() && d.cooldowns != nil {
		// first alert since start; the store may remember one from before
		if at, ok, err := d.cooldowns.LastAlert(ctx, sym); err != nil {
			d.log.Warn("cooldown lookup", logger.String("symbol", sym), logger.Error(err))
		} else if ok {
			last = at
			d.reg.With(sym, func(s *registry.SymbolState) {
				if s.LastAlertAt.Before(at) {
					s.LastAlertAt = at
				}
			})
		}
	}

	now := d.now()
	if !last.IsZero() && now.Sub(last) < d.cooldownFor(sig.Category) {
		d.metrics.RecordAlert("suppressed")
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.queued[sym]; dup {
		d.metrics.RecordAlert("suppressed")
		return false
	}
	d.queued[sym] = struct{}{}
	sig.Symbol = sym
	d.pending = append(d.pending, sig)
	return true
}

// Pending returns the number of queued signals.
func (d *AlertDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush delivers the queued batch: summaries first, then one detail
// message per signal. Cooldowns start at flush time whether or not the
// notifier succeeded. It returns the number of flushed signals.
func (d *AlertDispatcher) Flush(ctx context.Context) int {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.queued = make(map[string]struct{})
	d.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	now := d.now()
	for _, sig := range batch {
		d.reg.With(sig.Symbol, func(s *registry.SymbolState) { s.LastAlertAt = now })
		if d.cooldowns != nil {
			if err := d.cooldowns.SetLastAlert(ctx, sig.Symbol, now); err != nil {
				d.log.Warn("cooldown mirror", logger.String("symbol", sig.Symbol), logger.Error(err))
			}
		}
	}

	for _, msg := range telegram.FormatSummaries(batch, d.cfg.ChunkSize) {
		d.deliver(ctx, msg, "")
	}
	for _, sig := range batch {
		d.deliver(ctx, telegram.FormatSignal(sig), sig.Symbol)
	}

	if d.sink != nil {
		if err := d.sink.Record(ctx, batch); err != nil {
			d.metrics.RecordError("record_signals")
			d.log.Error("record signals", logger.Int("count", len(batch)), logger.Error(err))
		}
	}
	return len(batch)
}

func (d *AlertDispatcher) deliver(ctx context.Context, text, symbol string) {
	if err := d.notifier.Send(ctx, text); err != nil {
		d.metrics.RecordAlert("failed")
		d.log.Error("notify", logger.String("symbol", symbol), logger.Error(err))
		return
	}
	d.metrics.RecordAlert("sent")
}
