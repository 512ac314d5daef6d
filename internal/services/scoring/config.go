package scoring

import "MarketWatch/internal/domain/models"

// Weights are the sub-score weights of the final score. They need not sum to 1
// but normally do.
type Weights struct {
	Technical         float64 `yaml:"technical" default:"0.40" validate:"gte=0,lte=1"`
	Volume            float64 `yaml:"volume" default:"0.15" validate:"gte=0,lte=1"`
	SupportResistance float64 `yaml:"support_resistance" default:"0.25" validate:"gte=0,lte=1"`
	Pattern           float64 `yaml:"pattern" default:"0.20" validate:"gte=0,lte=1"`
}

// Thresholds map a final score to a category.
type Thresholds struct {
	StrongBuy  float64 `yaml:"strong_buy" default:"75" validate:"gte=0,lte=100"`
	Buy        float64 `yaml:"buy" default:"60" validate:"gte=0,lte=100"`
	Sell       float64 `yaml:"sell" default:"40" validate:"gte=0,lte=100"`
	StrongSell float64 `yaml:"strong_sell" default:"25" validate:"gte=0,lte=100"`
}

type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
	// TimeframeWeights blends per-timeframe technical scores.
	TimeframeWeights map[models.Granularity]float64 `yaml:"timeframe_weights"`
}

func DefaultConfig() Config {
	return Config{
		Weights:          Weights{Technical: 0.40, Volume: 0.15, SupportResistance: 0.25, Pattern: 0.20},
		Thresholds:       Thresholds{StrongBuy: 75, Buy: 60, Sell: 40, StrongSell: 25},
		TimeframeWeights: DefaultTimeframeWeights(),
	}
}

func DefaultTimeframeWeights() map[models.Granularity]float64 {
	return map[models.Granularity]float64{models.G4h: 0.5, models.G1h: 0.3, models.G15m: 0.2}
}
