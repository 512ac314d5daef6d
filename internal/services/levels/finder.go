// Package levels finds support and resistance prices around the current price.
package levels

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/services/indicators"
)

const (
	maxLevels      = 3
	shortPivotBack = 20
	longPivotBack  = 50
)

var padSteps = []float64{0.01, 0.02, 0.03, 0.04, 0.05}

// Finder collects pivot, Bollinger and moving-average candidates, keeps those
// inside a window around price and pads the result to three levels per side.
type Finder struct {
	window float64
	minGap float64
	now    func() time.Time
}

type Option func(*Finder)

// WithWindow sets the half-width of the accepted band as a fraction of price.
func WithWindow(w float64) Option { return func(f *Finder) { f.window = w } }

// WithMinGap sets the minimum distance between kept levels as a fraction of price.
func WithMinGap(g float64) Option { return func(f *Finder) { f.minGap = g } }

func WithClock(now func() time.Time) Option { return func(f *Finder) { f.now = now } }

func NewFinder(opts ...Option) *Finder {
	f := &Finder{window: 0.06, minGap: 0.01, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Find returns levels for price. A non-positive price (or no candles) yields
// ErrInsufficientData; a result containing a level that rounds to zero yields
// ErrDegenerateLevels.
func (f *Finder) Find(candles []models.Candle, price float64) (models.KeyLevels, error) {
	if len(candles) == 0 || price <= 0 {
		return models.KeyLevels{}, fmt.Errorf("find levels: %w", domain.ErrInsufficientData)
	}
	resCand, supCand := candidates(candles)

	maxUp := price * (1 + f.window)
	maxDown := price * (1 - f.window)
	gap := price * f.minGap

	var res, sup []float64
	for _, p := range resCand {
		if p > price && p <= maxUp {
			res = append(res, p)
		}
	}
	for _, p := range supCand {
		if p < price && p >= maxDown {
			sup = append(sup, p)
		}
	}
	sort.Float64s(res)
	sort.Sort(sort.Reverse(sort.Float64Slice(sup)))

	res = spaced(res, gap)
	sup = spaced(sup, gap)
	res = pad(res, price, maxLevels, func(base, step float64) (float64, bool) {
		v := base * (1 + step)
		return v, v <= maxUp
	})
	sup = pad(sup, price, maxLevels, func(base, step float64) (float64, bool) {
		v := base * (1 - step)
		return v, v >= maxDown
	})

	out := models.KeyLevels{
		Supports:    roundAll(first(sup, maxLevels)),
		Resistances: roundAll(first(res, maxLevels)),
		ComputedAt:  f.now().UTC(),
	}
	if out.IsDegenerate() {
		return out, fmt.Errorf("find levels: %w", domain.ErrDegenerateLevels)
	}
	return out, nil
}

// candidates returns resistance and support candidates from the series.
func candidates(candles []models.Candle) (res, sup []float64) {
	closes := indicators.Closes(candles)
	if bb, ok := indicators.Bollinger(closes, indicators.BollingerPeriod, indicators.BollingerK); ok {
		res = append(res, bb.Upper)
		sup = append(sup, bb.Lower)
	}
	for _, p := range []int{20, 50, 120} {
		if ma, ok := indicators.SMA(closes, p); ok {
			sup = append(sup, ma)
		}
	}
	for _, back := range []int{shortPivotBack, longPivotBack} {
		if len(candles) < back {
			continue
		}
		pv := PivotsOf(candles[len(candles)-back])
		res = append(res, pv.R3, pv.R2, pv.R1)
		sup = append(sup, pv.S1, pv.S2, pv.S3)
	}
	return res, sup
}

// Pivots are classic floor-trader pivot levels.
type Pivots struct {
	P, R1, R2, R3, S1, S2, S3 float64
}

func PivotsOf(c models.Candle) Pivots {
	p := (c.High + c.Low + c.Close) / 3
	rng := c.High - c.Low
	r1 := 2*p - c.Low
	s1 := 2*p - c.High
	return Pivots{P: p, R1: r1, R2: p + rng, R3: r1 + rng, S1: s1, S2: p - rng, S3: s1 - rng}
}

func spaced(levels []float64, gap float64) []float64 {
	var out []float64
	for _, l := range levels {
		if len(out) == 0 || abs(l-out[len(out)-1]) >= gap {
			out = append(out, l)
		}
	}
	return out
}

func pad(levels []float64, price float64, n int, next func(base, step float64) (float64, bool)) []float64 {
	if len(levels) >= n {
		return levels
	}
	base := price
	if len(levels) > 0 {
		base = levels[len(levels)-1]
	}
	missing := n - len(levels)
	for i := 0; i < missing; i++ {
		step := padSteps[min(i, len(padSteps)-1)]
		if v, ok := next(base, step); ok {
			levels = append(levels, v)
		}
	}
	return levels
}

func first(v []float64, n int) []float64 {
	if len(v) > n {
		return v[:n]
	}
	return v
}

// RoundPrice rounds to 2 places at or above 100, 3 at or above 1, otherwise 4.
func RoundPrice(p float64) float64 {
	places := int32(4)
	switch {
	case p >= 100:
		places = 2
	case p >= 1:
		places = 3
	}
	return decimal.NewFromFloat(p).Round(places).InexactFloat64()
}

func roundAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, p := range v {
		out[i] = RoundPrice(p)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
