package scoring

import (
	"math"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/services/indicators"
)

const base = 50.0

func clamp(v float64) float64 { return math.Max(0, math.Min(100, v)) }

// TechnicalScore rates one timeframe's oscillators and moving averages.
func TechnicalScore(b indicators.Bundle) float64 {
	s := base
	if b.HasRSI {
		switch {
		case b.RSI < 30:
			s += 20 * (30 - b.RSI) / 30
		case b.RSI > 70:
			s -= 20 * (b.RSI - 70) / 30
		}
	}
	if b.HasMACD {
		switch {
		case b.MACD.Hist > 0 && b.MACD.Line > b.MACD.Signal:
			s += 20
		case b.MACD.Hist < 0 && b.MACD.Line < b.MACD.Signal:
			s -= 20
		}
	}
	if b.HasBollinger {
		pos := b.Bollinger.Position(b.Price)
		switch {
		case pos < 0.2:
			s += 20 * (1 - pos/0.2)
		case pos > 0.8:
			s -= 20 * (pos - 0.8) / 0.2
		}
	}
	if b.HasKDJ {
		switch {
		case b.KDJ.K < 20 && b.KDJ.K > b.KDJ.D:
			s += 20
		case b.KDJ.K > 80 && b.KDJ.K < b.KDJ.D:
			s -= 20
		}
	}
	s += 20 * float64(b.MAStack())
	return clamp(s)
}

// BlendTechnical weights per-timeframe technical scores. Missing timeframes
// are left out and the remaining weights renormalized.
func BlendTechnical(byTF map[models.Granularity]float64, weights map[models.Granularity]float64) float64 {
	sum, wsum := 0.0, 0.0
	for g, w := range weights {
		v, ok := byTF[g]
		if !ok || w <= 0 {
			continue
		}
		sum += v * w
		wsum += w
	}
	if wsum == 0 {
		return base
	}
	return clamp(sum / wsum)
}

// SupportResistanceScore rewards proximity to support and penalizes proximity to resistance.
func SupportResistanceScore(price float64, levels models.KeyLevels) float64 {
	s := base
	if price <= 0 {
		return s
	}
	if sup, ok := nearest(price, levels.Supports); ok {
		r := price / sup
		switch {
		case r >= 0.99 && r <= 1.01:
			s += 30
		case r >= 0.95 && r < 0.99:
			s += 20
		}
	}
	if res, ok := nearest(price, levels.Resistances); ok {
		r := price / res
		switch {
		case r >= 0.99 && r <= 1.01:
			s -= 30
		case r > 1.01 && r <= 1.05:
			s -= 20
		}
	}
	return clamp(s)
}

func nearest(price float64, levels []float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l <= 0 {
			continue
		}
		if !found || math.Abs(l-price) < math.Abs(best-price) {
			best, found = l, true
		}
	}
	return best, found
}

// VolumeScore rates volume expansion and order-book pressure.
func VolumeScore(v models.VolumeData) float64 {
	s := base
	switch {
	case v.Ratio > 2:
		s += 25
	case v.Ratio > 1.5:
		s += 15
	case v.Ratio > 0 && v.Ratio < 0.5:
		s -= 25
	case v.Ratio > 0 && v.Ratio < 0.7:
		s -= 15
	}
	if v.BidVolume > 0 || v.AskVolume > 0 {
		p := v.Pressure
		switch {
		case p > 1.5:
			s += 25
		case p > 1.2:
			s += 15
		case p < 0.67:
			s -= 25
		case p < 0.83:
			s -= 15
		}
	}
	return clamp(s)
}

// PatternScore rates double tops/bottoms and the short-term trend class.
func PatternScore(b indicators.Bundle) float64 {
	s := base
	if b.DoubleBottom {
		s += 25
	}
	if b.DoubleTop {
		s -= 25
	}
	switch b.Trend {
	case indicators.TrendStrongUp:
		s += 25
	case indicators.TrendWeakUp:
		s += 15
	case indicators.TrendStrongDown:
		s -= 25
	case indicators.TrendWeakDown:
		s -= 15
	}
	return clamp(s)
}

// Alignment is bullish when every timeframe trends up beyond 0.1%, bearish
// for the mirror, mixed otherwise.
func Alignment(bundles map[models.Granularity]indicators.Bundle) models.TrendAlignment {
	if len(bundles) == 0 {
		return models.TrendMixed
	}
	up, down := true, true
	for _, b := range bundles {
		up = up && b.TrendStrength > 0.1
		down = down && b.TrendStrength < -0.1
	}
	switch {
	case up:
		return models.TrendBullish
	case down:
		return models.TrendBearish
	}
	return models.TrendMixed
}
