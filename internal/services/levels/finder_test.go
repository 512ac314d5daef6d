package levels

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
)

func flat(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			OpenTime: time.Unix(int64(i*3600), 0),
			Open:     price, High: price * 1.02, Low: price * 0.98, Close: price,
		}
	}
	return out
}

func TestFindOrderingAndWindow(t *testing.T) {
	f := NewFinder()
	lv, err := f.Find(flat(200, 100), 100)
	require.NoError(t, err)

	require.Len(t, lv.Supports, 3)
	require.Len(t, lv.Resistances, 3)
	for i := 1; i < 3; i++ {
		assert.Greater(t, lv.Supports[i-1], lv.Supports[i], "supports descend")
		assert.Less(t, lv.Resistances[i-1], lv.Resistances[i], "resistances ascend")
	}
	for _, s := range lv.Supports {
		assert.True(t, s < 100 && s >= 94)
	}
	for _, r := range lv.Resistances {
		assert.True(t, r > 100 && r <= 106)
	}
}

func TestFindPadsFromPrice(t *testing.T) {
	// Too short for any candidate, so every level is padded.
	lv, err := NewFinder().Find(flat(5, 50), 50)
	require.NoError(t, err)
	assert.Equal(t, []float64{50.5, 51, 51.5}, lv.Resistances)
	assert.Equal(t, []float64{49.5, 49, 48.5}, lv.Supports)
}

func TestFindDegenerate(t *testing.T) {
	_, err := NewFinder().Find(nil, 10)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	_, err = NewFinder().Find(flat(10, 1), 0)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	lv, err := NewFinder().Find(flat(10, 0.00001), 0.00001)
	assert.True(t, errors.Is(err, domain.ErrDegenerateLevels))
	assert.True(t, lv.IsDegenerate())
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 123.46, RoundPrice(123.456))
	assert.Equal(t, 1.235, RoundPrice(1.23456))
	assert.Equal(t, 0.1235, RoundPrice(0.123456))
}

func TestPivots(t *testing.T) {
	p := PivotsOf(models.Candle{High: 110, Low: 90, Close: 100})
	assert.Equal(t, 100.0, p.P)
	assert.Equal(t, 110.0, p.R1)
	assert.Equal(t, 90.0, p.S1)
	assert.Equal(t, 120.0, p.R2)
	assert.Equal(t, 130.0, p.R3)
	assert.Equal(t, 70.0, p.S3)
}
