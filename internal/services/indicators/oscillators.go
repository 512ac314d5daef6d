package indicators

import (
	"math"

	"MarketWatch/internal/domain/models"
)

// Closes extracts close prices.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts traded volumes.
func Volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period < 1 || len(values) < period {
		return 0, false
	}
	return Mean(values[len(values)-period:]), true
}

// EMASeries returns the exponential moving average aligned with values. Entries
// before the seed index (period-1) are NaN; the seed is the SMA of the first period values.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 || len(values) < period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	out[period-1] = Mean(values[:period])
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI uses Wilder smoothing and needs more than period values.
func RSI(values []float64, period int) (float64, bool) {
	if period < 1 || len(values) <= period {
		return 0, false
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	p := float64(period)
	gain /= p
	loss /= p
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
	}
	if loss == 0 {
		if gain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

type MACDValue struct {
	Line   float64
	Signal float64
	Hist   float64
}

// MACD returns the latest MACD line, signal line and histogram.
func MACD(values []float64, fast, slow, signal int) (MACDValue, bool) {
	if fast >= slow || len(values) < slow+signal-1 {
		return MACDValue{}, false
	}
	ef := EMASeries(values, fast)
	es := EMASeries(values, slow)
	line := make([]float64, 0, len(values)-slow+1)
	for i := slow - 1; i < len(values); i++ {
		line = append(line, ef[i]-es[i])
	}
	sig := EMASeries(line, signal)
	last := len(line) - 1
	if math.IsNaN(sig[last]) {
		return MACDValue{}, false
	}
	return MACDValue{Line: line[last], Signal: sig[last], Hist: line[last] - sig[last]}, true
}

type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Position is where price sits between the bands (0 lower, 1 upper).
func (b BollingerBands) Position(price float64) float64 {
	w := b.Upper - b.Lower
	if w <= 0 {
		return 0.5
	}
	return (price - b.Lower) / w
}

// Bollinger uses the population standard deviation of the last period values.
func Bollinger(values []float64, period int, k float64) (BollingerBands, bool) {
	mid, ok := SMA(values, period)
	if !ok {
		return BollingerBands{}, false
	}
	s := 0.0
	for _, v := range values[len(values)-period:] {
		s += (v - mid) * (v - mid)
	}
	sd := math.Sqrt(s / float64(period))
	return BollingerBands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}, true
}

type KDJValue struct {
	K float64
	D float64
	J float64
}

// KDJ is the slow stochastic: %K over n bars smoothed by m1, then %D smoothed by m2.
func KDJ(candles []models.Candle, n, m1, m2 int) (KDJValue, bool) {
	if n < 1 || len(candles) < n+m1+m2-2 {
		return KDJValue{}, false
	}
	fastK := make([]float64, 0, len(candles)-n+1)
	for i := n - 1; i < len(candles); i++ {
		hi, lo := candles[i].High, candles[i].Low
		for _, c := range candles[i-n+1 : i] {
			hi = math.Max(hi, c.High)
			lo = math.Min(lo, c.Low)
		}
		if hi == lo {
			fastK = append(fastK, 50)
			continue
		}
		fastK = append(fastK, (candles[i].Close-lo)/(hi-lo)*100)
	}
	slowK := rolling(fastK, m1)
	slowD := rolling(slowK, m2)
	if len(slowD) == 0 {
		return KDJValue{}, false
	}
	k, d := slowK[len(slowK)-1], slowD[len(slowD)-1]
	return KDJValue{K: k, D: d, J: 3*k - 2*d}, true
}

func rolling(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	for i := period; i <= len(values); i++ {
		out = append(out, Mean(values[i-period:i]))
	}
	return out
}

// ATR is Wilder's average true range and needs more than period candles.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period < 1 || len(candles) <= period {
		return 0, false
	}
	tr := func(i int) float64 {
		c, prev := candles[i], candles[i-1].Close
		return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += tr(i)
	}
	p := float64(period)
	atr /= p
	for i := period + 1; i < len(candles); i++ {
		atr = (atr*(p-1) + tr(i)) / p
	}
	return atr, true
}
