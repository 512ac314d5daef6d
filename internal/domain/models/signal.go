package models

import "time"

// Category is the categorical outcome of scoring.
type Category string

const (
	StrongBuy  Category = "strong_buy"
	Buy        Category = "buy"
	Sell       Category = "sell"
	StrongSell Category = "strong_sell"
	Neutral    Category = "neutral"
)

// IsStrong reports whether c is strong_buy or strong_sell.
func (c Category) IsStrong() bool { return c == StrongBuy || c == StrongSell }

// Direction returns +1 for buy categories, -1 for sell categories and 0 otherwise.
func (c Category) Direction() int {
	switch c {
	case StrongBuy, Buy:
		return 1
	case StrongSell, Sell:
		return -1
	default:
		return 0
	}
}

// RiskLevel is attached to signals for display.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// TrendAlignment summarizes whether timeframes agree on direction.
type TrendAlignment string

const (
	TrendBullish TrendAlignment = "bullish"
	TrendBearish TrendAlignment = "bearish"
	TrendMixed   TrendAlignment = "mixed"
)

// SubScores is the breakdown behind a final score. Each value is in [0,100].
type SubScores struct {
	Technical         float64
	SupportResistance float64
	Volume            float64
	Pattern           float64
	ByTimeframe       map[Granularity]float64
}

// VolumeData compares current book volume to recent traded volume.
type VolumeData struct {
	BidVolume           float64
	AskVolume           float64
	CurrentVolume       float64
	AvgVolume           float64
	Ratio               float64
	Pressure            float64
	ConsecutiveIncrease int
}

// Signal is a scored recommendation for one symbol at one point in time.
type Signal struct {
	ID        string
	Symbol    string
	Category  Category
	Score     float64
	Risk      RiskLevel
	Reasons   []string
	Price     float64
	Trend     TrendAlignment
	Scores    SubScores
	Volume    VolumeData
	CreatedAt time.Time
}

// HeadlineReport is the hourly multi-timeframe summary for a headline symbol.
type HeadlineReport struct {
	Symbol      string
	Price       float64
	Change24h   float64
	Trend4h     float64
	Trend1h     float64
	RSI1h       float64
	MACDHist1h  float64
	Levels      KeyLevels
	Advice      string
	GeneratedAt time.Time
}
