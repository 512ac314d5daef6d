package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
	pkgcache "MarketWatch/pkg/cache"
)

func TestCooldownStore(t *testing.T) {
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCooldownStore(mc, time.Hour)
	ctx := context.Background()

	_, ok, err := s.LastAlert(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastAlert(ctx, "btcusdt", at))

	got, ok, err := s.LastAlert(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(got))
}

func TestLevelsCache(t *testing.T) {
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mc.Close()
	c := NewLevelsCache(mc, time.Hour)
	ctx := context.Background()

	_, ok, err := c.GetLevels(ctx, "ETHUSDT", models.G1h)
	require.NoError(t, err)
	assert.False(t, ok)

	want := models.KeyLevels{
		Supports:    []float64{3000, 2950},
		Resistances: []float64{3100},
		ComputedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.SetLevels(ctx, "ETHUSDT", models.G1h, want))

	got, ok, err := c.GetLevels(ctx, "ethusdt", models.G1h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Supports, got.Supports)
	assert.Equal(t, want.Resistances, got.Resistances)
	assert.True(t, want.ComputedAt.Equal(got.ComputedAt))

	_, ok, _ = c.GetLevels(ctx, "ETHUSDT", models.G4h)
	assert.False(t, ok)
}
