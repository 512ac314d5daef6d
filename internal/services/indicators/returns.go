package indicators

import (
	"math"

	"MarketWatch/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if there is not enough data.
func LogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized volatility over the last window returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for g.
func BarsPerYear(g models.Granularity) float64 {
	d := g.Duration()
	if d <= 0 {
		d = models.G1m.Duration()
	}
	return float64(365*24*60*60) / d.Seconds()
}

// PctChanges returns (v_t - v_{t-lag}) / v_{t-lag} for every t >= lag.
func PctChanges(values []float64, lag int) []float64 {
	if lag < 1 || len(values) <= lag {
		return nil
	}
	out := make([]float64, 0, len(values)-lag)
	for i := lag; i < len(values); i++ {
		prev := values[i-lag]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}

// Mean is the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

// StdDev is the sample standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	s := 0.0
	for _, v := range values {
		s += (v - m) * (v - m)
	}
	return math.Sqrt(s / float64(len(values)-1))
}
