package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
)

type fakeMetrics struct {
	mu      sync.Mutex
	errors  map[string]int
	alerts  map[string]int
	signals map[string]int
	frames  map[string]int
	states  []string
	sent    map[string]int
	size    int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		errors:  map[string]int{},
		alerts:  map[string]int{},
		signals: map[string]int{},
		frames:  map[string]int{},
		sent:    map[string]int{},
	}
}

func (m *fakeMetrics) RecordMessageSent(backend, _ string) { m.inc(m.sent, backend) }
func (m *fakeMetrics) RecordError(kind string)             { m.inc(m.errors, kind) }
func (m *fakeMetrics) RecordLastPrice(string, float64)     {}
func (m *fakeMetrics) RecordLatency(string, float64)       {}
func (m *fakeMetrics) RecordFrame(kind string)             { m.inc(m.frames, kind) }
func (m *fakeMetrics) RecordSignal(category string)        { m.inc(m.signals, category) }
func (m *fakeMetrics) RecordAlert(result string)           { m.inc(m.alerts, result) }

func (m *fakeMetrics) SetStreamState(state string) {
	m.mu.Lock()
	m.states = append(m.states, state)
	m.mu.Unlock()
}

func (m *fakeMetrics) SetUniverseSize(n int) {
	m.mu.Lock()
	m.size = n
	m.mu.Unlock()
}

func (m *fakeMetrics) inc(into map[string]int, key string) {
	m.mu.Lock()
	into[key]++
	m.mu.Unlock()
}

func (m *fakeMetrics) count(from map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return from[key]
}

var _ drepo.Metrics = (*fakeMetrics)(nil)

// fakeMarket serves canned klines per symbol; failing symbols return errMarket.
type fakeMarket struct {
	mu      sync.Mutex
	tickers []models.Ticker24h
	klines  map[string][]models.Candle
	depth   map[string]models.DepthSnapshot
	failing map[string]bool
	calls   map[string]int
}

var errMarket = errors.New("market unavailable")

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		klines:  map[string][]models.Candle{},
		depth:   map[string]models.DepthSnapshot{},
		failing: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeMarket) Tickers24h(context.Context) ([]models.Ticker24h, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Ticker24h(nil), f.tickers...), nil
}

func (f *fakeMarket) Klines(_ context.Context, symbol string, _ models.Granularity, _ int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if f.failing[symbol] {
		return nil, errMarket
	}
	cs, ok := f.klines[symbol]
	if !ok {
		cs = f.klines["*"]
	}
	return append([]models.Candle(nil), cs...), nil
}

func (f *fakeMarket) Depth(_ context.Context, symbol string, _ int) (models.DepthSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.depth[symbol]
	if !ok {
		return models.DepthSnapshot{}, errMarket
	}
	return d, nil
}

var _ drepo.MarketData = (*fakeMarket)(nil)

// trendCandles returns n hourly candles moving by step per bar.
func trendCandles(n int, start, step float64) []models.Candle {
	out := make([]models.Candle, n)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := start
	for i := range out {
		open := p
		p += step
		out[i] = models.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Hour),
			Open:     open,
			High:     max(open, p) * 1.002,
			Low:      min(open, p) * 0.998,
			Close:    p,
			Volume:   100 + float64(i),
			Closed:   true,
		}
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return n.err
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type fakeResub struct {
	mu sync.Mutex
	n  int
}

func (r *fakeResub) Resubscribe() {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
}

func (r *fakeResub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// fakeStream hands out scripted connections; dials beyond the script fail.
type fakeStream struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials [][]string
	err   error
}

func (s *fakeStream) Dial(_ context.Context, symbols []string) (drepo.StreamConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials = append(s.dials, append([]string(nil), symbols...))
	if s.err != nil || len(s.conns) == 0 {
		return nil, errors.New("dial refused")
	}
	c := s.conns[0]
	s.conns = s.conns[1:]
	return c, nil
}

func (s *fakeStream) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dials)
}

// flakyStream refuses the first failures dials, then connects every time.
type flakyStream struct {
	mu       sync.Mutex
	failures int
	dials    int
}

func (s *flakyStream) Dial(context.Context, []string) (drepo.StreamConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.dials <= s.failures {
		return nil, errors.New("dial refused")
	}
	return newFakeConn(), nil
}

func (s *flakyStream) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

type fakeConn struct {
	frames chan models.Frame
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan models.Frame, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Next(ctx context.Context) (models.Frame, error) {
	select {
	case <-ctx.Done():
		return models.Frame{}, ctx.Err()
	case err := <-c.fail:
		return models.Frame{}, err
	case f := <-c.frames:
		return f, nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	stored  []models.Signal
	batches int
	err     error
	query   []models.Signal
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) Store(_ context.Context, sig models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, sig)
	return nil
}

func (s *fakeStore) StoreBatch(_ context.Context, sigs []models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches++
	s.stored = append(s.stored, sigs...)
	return nil
}

func (s *fakeStore) Query(context.Context, string, time.Time, time.Time, int) ([]models.Signal, error) {
	return s.query, s.err
}

func (s *fakeStore) Health(context.Context) error { return s.err }
func (s *fakeStore) Close() error                 { return nil }

type fakePublisher struct {
	batches [][]models.Signal
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, s models.Signal) error {
	return p.PublishBatch(ctx, []models.Signal{s})
}

func (p *fakePublisher) PublishBatch(_ context.Context, sigs []models.Signal) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, sigs)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type memCooldowns struct {
	mu sync.Mutex
	at map[string]time.Time
}

func (c *memCooldowns) LastAlert(_ context.Context, symbol string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.at[symbol]
	return t, ok, nil
}

func (c *memCooldowns) SetLastAlert(_ context.Context, symbol string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.at == nil {
		c.at = map[string]time.Time{}
	}
	c.at[symbol] = at
	return nil
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
