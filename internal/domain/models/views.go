package models

import "time"

// Read-side views served by the HTTP API.

type SymbolSummary struct {
	Symbol         string     `json:"symbol"`
	LastPrice      float64    `json:"last_price"`
	LastAnalysisAt *time.Time `json:"last_analysis_at,omitempty"`
	LastAlertAt    *time.Time `json:"last_alert_at,omitempty"`
}

type CandleView struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Closed   bool      `json:"closed"`
}

func NewCandleView(c Candle) *CandleView {
	return &CandleView{
		OpenTime: c.OpenTime,
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
		Closed:   c.Closed,
	}
}

type LevelsView struct {
	Supports    []float64  `json:"supports"`
	Resistances []float64  `json:"resistances"`
	ComputedAt  *time.Time `json:"computed_at,omitempty"`
}

type DepthView struct {
	BidVolume float64   `json:"bid_volume"`
	AskVolume float64   `json:"ask_volume"`
	Pressure  float64   `json:"pressure"`
	At        time.Time `json:"at"`
}

// SymbolDetail is the snapshot of one monitored symbol on one granularity.
type SymbolDetail struct {
	Symbol         string                     `json:"symbol"`
	Granularity    Granularity                `json:"granularity"`
	Candles        int                        `json:"candles"`
	LastCandle     *CandleView                `json:"last_candle,omitempty"`
	Levels         map[Granularity]LevelsView `json:"levels"`
	Depth          *DepthView                 `json:"depth,omitempty"`
	LastAnalysisAt *time.Time                 `json:"last_analysis_at,omitempty"`
	LastAlertAt    *time.Time                 `json:"last_alert_at,omitempty"`
}

// HealthStatus aggregates dependency checks. Status is "ok" or "degraded".
type HealthStatus struct {
	Status string            `json:"status"`
	Stream string            `json:"stream"`
	Checks map[string]string `json:"checks"`
}

// TimePtr returns nil for the zero time.
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
