// Package indicators computes the technical inputs consumed by the scorer and
// the key-level finder. Everything here is pure and deterministic.
package indicators

import (
	"math"

	"MarketWatch/internal/domain/models"
)

const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerK      = 2.0
	KDJPeriod       = 9
	KDJSmoothK      = 3
	KDJSmoothD      = 3
	ATRPeriod       = 14
	VolumeMAPeriod  = 20

	patternLookback  = 30
	trendLookback    = 20
	patternTolerance = 0.02
)

// MAPeriods are the moving averages checked for a stacked trend.
var MAPeriods = []int{5, 10, 20, 50}

// Bundle is every indicator for one candle series. Has* flags are false when
// the series was too short for that indicator.
type Bundle struct {
	Price float64

	RSI    float64
	HasRSI bool

	MACD    MACDValue
	HasMACD bool

	Bollinger    BollingerBands
	HasBollinger bool

	KDJ    KDJValue
	HasKDJ bool

	ATR    float64
	HasATR bool

	MA map[int]float64

	// Volatility is the std dev of bar returns in percent.
	Volatility float64
	// Momentum is the mean 5-bar % change.
	Momentum float64
	// RangePosition places Price between the series low (0) and high (1).
	RangePosition float64

	TrendStrength float64
	Trend         TrendClass
	DoubleTop     bool
	DoubleBottom  bool

	VolumeRatio float64
	HasVolume   bool
}

// Compute derives a Bundle from candles ordered oldest first.
func Compute(candles []models.Candle) Bundle {
	b := Bundle{MA: make(map[int]float64, len(MAPeriods)), Trend: TrendFlat, RangePosition: 0.5}
	if len(candles) == 0 {
		return b
	}
	closes := Closes(candles)
	b.Price = closes[len(closes)-1]

	b.RSI, b.HasRSI = RSI(closes, RSIPeriod)
	b.MACD, b.HasMACD = MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if len(closes) > BollingerPeriod {
		b.Bollinger, b.HasBollinger = Bollinger(closes, BollingerPeriod, BollingerK)
	}
	b.KDJ, b.HasKDJ = KDJ(candles, KDJPeriod, KDJSmoothK, KDJSmoothD)
	b.ATR, b.HasATR = ATR(candles, ATRPeriod)
	for _, p := range MAPeriods {
		if len(closes) > p {
			b.MA[p], _ = SMA(closes, p)
		}
	}

	b.Volatility = StdDev(PctChanges(closes, 1)) * 100
	b.Momentum = Mean(PctChanges(closes, 5)) * 100

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	if hi > lo {
		b.RangePosition = (b.Price - lo) / (hi - lo)
	}

	b.TrendStrength = TrendStrength(tail(closes, trendLookback))
	b.Trend = ClassifyTrend(b.TrendStrength)

	recent := tailCandles(candles, patternLookback)
	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, c := range recent {
		highs[i], lows[i] = c.High, c.Low
	}
	b.DoubleTop = DoubleTop(highs, patternTolerance)
	b.DoubleBottom = DoubleBottom(lows, patternTolerance)

	vols := Volumes(candles)
	if len(vols) > VolumeMAPeriod {
		if ma, _ := SMA(vols, VolumeMAPeriod); ma > 0 {
			b.VolumeRatio = vols[len(vols)-1] / ma
			b.HasVolume = true
		}
	}
	return b
}

// MAStack returns +1 for MA5 > MA10 > MA20 > MA50, -1 for the reverse, else 0.
func (b Bundle) MAStack() int {
	vals := make([]float64, 0, len(MAPeriods))
	for _, p := range MAPeriods {
		v, ok := b.MA[p]
		if !ok {
			return 0
		}
		vals = append(vals, v)
	}
	up, down := true, true
	for i := 1; i < len(vals); i++ {
		up = up && vals[i-1] > vals[i]
		down = down && vals[i-1] < vals[i]
	}
	switch {
	case up:
		return 1
	case down:
		return -1
	}
	return 0
}

func tail(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func tailCandles(v []models.Candle, n int) []models.Candle {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}
