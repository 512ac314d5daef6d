// Package scoring turns precomputed indicators, key levels and volume data
// into a categorized signal. It performs no I/O.
package scoring

import (
	"fmt"
	"time"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/services/indicators"
)

// Inputs is everything Score needs for one symbol.
type Inputs struct {
	Symbol string
	Price  float64
	// Timeframes holds one bundle per analysed granularity (4h, 1h, 15m).
	Timeframes map[models.Granularity]indicators.Bundle
	// Primary is the granularity used for patterns, reasons and risk.
	Primary models.Granularity
	Levels  models.KeyLevels
	Volume  models.VolumeData
	Now     time.Time
}

// Combine is the weighted sum of the sub-scores.
func Combine(s models.SubScores, w Weights) float64 {
	return s.Technical*w.Technical +
		s.Volume*w.Volume +
		s.SupportResistance*w.SupportResistance +
		s.Pattern*w.Pattern
}

// Classify maps a score to a category before corroboration.
func Classify(score float64, t Thresholds) models.Category {
	switch {
	case score >= t.StrongBuy:
		return models.StrongBuy
	case score >= t.Buy:
		return models.Buy
	case score <= t.StrongSell:
		return models.StrongSell
	case score <= t.Sell:
		return models.Sell
	}
	return models.Neutral
}

// Corroborate downgrades a strong category when the volume sub-score or the
// trend alignment points the other way.
func Corroborate(c models.Category, volumeScore float64, trend models.TrendAlignment) models.Category {
	switch c {
	case models.StrongBuy:
		if volumeScore < base || trend == models.TrendBearish {
			return models.Buy
		}
	case models.StrongSell:
		if volumeScore > base || trend == models.TrendBullish {
			return models.Sell
		}
	}
	return c
}

// Risk combines volatility, position in the recent range and volume anomaly.
// Each factor contributes 1..3; 7+ is high, 5+ medium.
func Risk(b indicators.Bundle, v models.VolumeData) models.RiskLevel {
	total := 1
	switch {
	case b.Volatility >= 5:
		total = 3
	case b.Volatility >= 3:
		total = 2
	}

	switch pos := b.RangePosition; {
	case pos > 0.9 || pos < 0.1:
		total += 3
	case pos > 0.75 || pos < 0.25:
		total += 2
	default:
		total++
	}

	switch r := v.Ratio; {
	case r > 2 || (r > 0 && r < 0.5):
		total += 3
	case r > 1.5 || (r > 0 && r < 0.7):
		total += 2
	default:
		total++
	}

	switch {
	case total >= 7:
		return models.RiskHigh
	case total >= 5:
		return models.RiskMedium
	}
	return models.RiskLow
}

// Reasons lists the facts supporting a direction, in a fixed order.
func Reasons(dir int, b indicators.Bundle, price float64, levels models.KeyLevels, v models.VolumeData) []string {
	var out []string
	if dir > 0 {
		if b.HasRSI && b.RSI < 30 {
			out = append(out, fmt.Sprintf("RSI oversold (%.1f)", b.RSI))
		}
		if b.HasMACD && b.MACD.Hist > 0 {
			out = append(out, "MACD bullish cross")
		}
		if b.DoubleBottom {
			out = append(out, "double bottom")
		}
		if v.Ratio > 1.5 {
			out = append(out, fmt.Sprintf("volume expanded %.1fx", v.Ratio))
		}
		if s, ok := nearest(price, levels.Supports); ok && price/s >= 0.99 && price/s <= 1.01 {
			out = append(out, fmt.Sprintf("near support %g", s))
		}
		return out
	}
	if b.HasRSI && b.RSI > 70 {
		out = append(out, fmt.Sprintf("RSI overbought (%.1f)", b.RSI))
	}
	if b.HasMACD && b.MACD.Hist < 0 {
		out = append(out, "MACD bearish cross")
	}
	if b.DoubleTop {
		out = append(out, "double top")
	}
	if v.Ratio > 0 && v.Ratio < 0.7 {
		out = append(out, fmt.Sprintf("volume contracted %.1fx", 1/v.Ratio))
	}
	if r, ok := nearest(price, levels.Resistances); ok && price/r >= 0.99 && price/r <= 1.01 {
		out = append(out, fmt.Sprintf("near resistance %g", r))
	}
	return out
}

// Score computes the signal for in. The bool is false when the category is
// neutral, in which case nothing should be forwarded.
func Score(in Inputs, cfg Config) (models.Signal, bool) {
	tfw := cfg.TimeframeWeights
	if len(tfw) == 0 {
		tfw = DefaultTimeframeWeights()
	}
	byTF := make(map[models.Granularity]float64, len(in.Timeframes))
	for g, b := range in.Timeframes {
		byTF[g] = TechnicalScore(b)
	}
	primary := in.Timeframes[in.Primary]

	subs := models.SubScores{
		Technical:         BlendTechnical(byTF, tfw),
		SupportResistance: SupportResistanceScore(in.Price, in.Levels),
		Volume:            VolumeScore(in.Volume),
		Pattern:           PatternScore(primary),
		ByTimeframe:       byTF,
	}
	return Evaluate(in, subs, cfg)
}

// Evaluate finishes scoring from already computed sub-scores. The returned
// signal has no ID; callers assign one when it is forwarded.
func Evaluate(in Inputs, subs models.SubScores, cfg Config) (models.Signal, bool) {
	primary := in.Timeframes[in.Primary]
	trend := Alignment(in.Timeframes)
	total := Combine(subs, cfg.Weights)
	cat := Corroborate(Classify(total, cfg.Thresholds), subs.Volume, trend)

	sig := models.Signal{
		Symbol:    models.NormalizeSymbol(in.Symbol),
		Category:  cat,
		Score:     total,
		Risk:      Risk(primary, in.Volume),
		Price:     in.Price,
		Trend:     trend,
		Scores:    subs,
		Volume:    in.Volume,
		CreatedAt: in.Now,
	}
	if cat == models.Neutral {
		return sig, false
	}
	sig.Reasons = Reasons(cat.Direction(), primary, in.Price, in.Levels, in.Volume)
	return sig, true
}
