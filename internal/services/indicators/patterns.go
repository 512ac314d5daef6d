package indicators

import "math"

type TrendClass string

const (
	TrendStrongUp   TrendClass = "strong_up"
	TrendWeakUp     TrendClass = "weak_up"
	TrendFlat       TrendClass = "neutral"
	TrendWeakDown   TrendClass = "weak_down"
	TrendStrongDown TrendClass = "strong_down"
)

// TrendStrength is the mean bar-to-bar % change of closes.
func TrendStrength(closes []float64) float64 {
	return Mean(PctChanges(closes, 1)) * 100
}

func ClassifyTrend(strength float64) TrendClass {
	switch {
	case strength > 0.5:
		return TrendStrongUp
	case strength > 0.1:
		return TrendWeakUp
	case strength < -0.5:
		return TrendStrongDown
	case strength < -0.1:
		return TrendWeakDown
	default:
		return TrendFlat
	}
}

// localMaxima returns indices i with v[i-1] < v[i] > v[i+1]. Flat tops are
// reported once, at their middle.
func localMaxima(v []float64) []int {
	var peaks []int
	i := 1
	for i < len(v)-1 {
		if v[i-1] < v[i] {
			j := i
			for j < len(v)-1 && v[j+1] == v[i] {
				j++
			}
			if j < len(v)-1 && v[j+1] < v[i] {
				peaks = append(peaks, (i+j)/2)
			}
			i = j + 1
			continue
		}
		i++
	}
	return peaks
}

func twinExtrema(v []float64, idx []int, tolerance float64) bool {
	if len(idx) < 2 {
		return false
	}
	a, b := v[idx[len(idx)-2]], v[idx[len(idx)-1]]
	avg := (a + b) / 2
	if avg == 0 {
		return false
	}
	return math.Abs(a-b)/math.Abs(avg) < tolerance
}

// DoubleTop reports whether the last two local highs are within tolerance of each other.
func DoubleTop(highs []float64, tolerance float64) bool {
	return twinExtrema(highs, localMaxima(highs), tolerance)
}

// DoubleBottom is the mirror of DoubleTop over lows.
func DoubleBottom(lows []float64, tolerance float64) bool {
	neg := make([]float64, len(lows))
	for i, v := range lows {
		neg[i] = -v
	}
	return twinExtrema(lows, localMaxima(neg), tolerance)
}
