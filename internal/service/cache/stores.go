package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketWatch/internal/domain/models"
	pkgcache "MarketWatch/pkg/cache"
)

// CooldownStore persists the last alert time per symbol so a restart does
// not re-alert inside the cooldown window.
type CooldownStore struct {
	svc pkgcache.Service
	ttl time.Duration
}

// NewCooldownStore keeps entries for ttl; it should exceed the longest cooldown.
func NewCooldownStore(svc pkgcache.Service, ttl time.Duration) *CooldownStore {
	return &CooldownStore{svc: svc, ttl: ttl}
}

func cooldownKey(symbol string) string {
	return pkgcache.GenerateKey("cooldown", models.NormalizeSymbol(symbol))
}

func (s *CooldownStore) LastAlert(ctx context.Context, symbol string) (time.Time, bool, error) {
	var ms int64
	if err := s.svc.Get(ctx, cooldownKey(symbol), &ms); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("cooldown get %s: %w", symbol, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *CooldownStore) SetLastAlert(ctx context.Context, symbol string, at time.Time) error {
	if err := s.svc.Set(ctx, cooldownKey(symbol), at.UnixMilli(), s.ttl); err != nil {
		return fmt.Errorf("cooldown set %s: %w", symbol, err)
	}
	return nil
}

// LevelsCache stores computed key levels per symbol and granularity.
type LevelsCache struct {
	svc pkgcache.Service
	ttl time.Duration
}

func NewLevelsCache(svc pkgcache.Service, ttl time.Duration) *LevelsCache {
	return &LevelsCache{svc: svc, ttl: ttl}
}

type levelsEntry struct {
	Supports    []float64 `json:"supports"`
	Resistances []float64 `json:"resistances"`
	ComputedAt  time.Time `json:"computed_at"`
}

func levelsKey(symbol string, g models.Granularity) string {
	return pkgcache.GenerateKey("levels", models.NormalizeSymbol(symbol), string(g))
}

func (c *LevelsCache) GetLevels(ctx context.Context, symbol string, g models.Granularity) (models.KeyLevels, bool, error) {
	var e levelsEntry
	if err := c.svc.Get(ctx, levelsKey(symbol, g), &e); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return models.KeyLevels{}, false, nil
		}
		return models.KeyLevels{}, false, fmt.Errorf("levels get %s: %w", symbol, err)
	}
	return models.KeyLevels{Supports: e.Supports, Resistances: e.Resistances, ComputedAt: e.ComputedAt}, true, nil
}

func (c *LevelsCache) SetLevels(ctx context.Context, symbol string, g models.Granularity, l models.KeyLevels) error {
	e := levelsEntry{Supports: l.Supports, Resistances: l.Resistances, ComputedAt: l.ComputedAt}
	if err := c.svc.Set(ctx, levelsKey(symbol, g), e, c.ttl); err != nil {
		return fmt.Errorf("levels set %s: %w", symbol, err)
	}
	return nil
}
