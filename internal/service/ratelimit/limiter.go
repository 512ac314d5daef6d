package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerSecond returns a token bucket allowing n events per second with a
// burst of ceil(n). A non-positive n disables limiting.
func PerSecond(n float64) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(n), int(math.Max(1, math.Ceil(n))))
}

const (
	defaultIdleTTL = 10 * time.Minute
	defaultMaxKeys = 10000
)

type keyedEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Keyed holds one token bucket per key, created on first use. Buckets idle
// for longer than the idle TTL are dropped, and the key count is capped by
// evicting the least recently used bucket.
type Keyed struct {
	mu        sync.Mutex
	m         map[string]*keyedEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	maxKeys   int
	now       func() time.Time
	lastSweep time.Time
}

type KeyedOption func(*Keyed)

// WithIdleTTL drops buckets unused for d. Zero keeps them until the key cap.
func WithIdleTTL(d time.Duration) KeyedOption { return func(k *Keyed) { k.idle = d } }

// WithMaxKeys caps the number of tracked keys.
func WithMaxKeys(n int) KeyedOption { return func(k *Keyed) { k.maxKeys = n } }

func WithKeyedClock(now func() time.Time) KeyedOption { return func(k *Keyed) { k.now = now } }

func NewKeyed(perSecond float64, burst int, opts ...KeyedOption) *Keyed {
	lim := rate.Limit(perSecond)
	if perSecond <= 0 {
		lim = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	k := &Keyed{
		m:       make(map[string]*keyedEntry),
		limit:   lim,
		burst:   burst,
		idle:    defaultIdleTTL,
		maxKeys: defaultMaxKeys,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.maxKeys < 1 {
		k.maxKeys = 1
	}
	k.lastSweep = k.now()
	return k
}

// For returns the limiter for key.
func (k *Keyed) For(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	if k.idle > 0 && now.Sub(k.lastSweep) >= k.idle {
		k.sweep(now)
	}
	if e, ok := k.m[key]; ok {
		e.seen = now
		return e.lim
	}
	if len(k.m) >= k.maxKeys {
		k.sweep(now)
		if len(k.m) >= k.maxKeys {
			k.evictOldest()
		}
	}
	e := &keyedEntry{lim: rate.NewLimiter(k.limit, k.burst), seen: now}
	k.m[key] = e
	return e.lim
}

// sweep drops idle buckets. Callers hold mu.
func (k *Keyed) sweep(now time.Time) {
	k.lastSweep = now
	if k.idle <= 0 {
		return
	}
	for key, e := range k.m {
		if now.Sub(e.seen) >= k.idle {
			delete(k.m, key)
		}
	}
}

func (k *Keyed) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for key, e := range k.m {
		if oldest == "" || e.seen.Before(at) {
			oldest, at = key, e.seen
		}
	}
	delete(k.m, oldest)
}

// Allow reports whether one event for key may happen now.
func (k *Keyed) Allow(key string) bool { return k.For(key).Allow() }

// Wait blocks until an event for key is allowed or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error { return k.For(key).Wait(ctx) }

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
