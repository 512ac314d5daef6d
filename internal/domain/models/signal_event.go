package models

import "time"

// SignalEvent is the wire schema of a signal on the message bus and in the HTTP API.
type SignalEvent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Category  string    `json:"category"`
	Score     float64   `json:"score"`
	Risk      string    `json:"risk"`
	Price     float64   `json:"price"`
	Trend     string    `json:"trend"`
	Reasons   []string  `json:"reasons"`
	Technical float64   `json:"technical"`
	SR        float64   `json:"sr"`
	Volume    float64   `json:"volume"`
	Pattern   float64   `json:"pattern"`
	VolRatio  float64   `json:"vol_ratio"`
	Pressure  float64   `json:"pressure"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSignalEvent flattens a Signal.
func NewSignalEvent(s Signal) SignalEvent {
	return SignalEvent{
		ID:        s.ID,
		Symbol:    s.Symbol,
		Category:  string(s.Category),
		Score:     s.Score,
		Risk:      string(s.Risk),
		Price:     s.Price,
		Trend:     string(s.Trend),
		Reasons:   s.Reasons,
		Technical: s.Scores.Technical,
		SR:        s.Scores.SupportResistance,
		Volume:    s.Scores.Volume,
		Pattern:   s.Scores.Pattern,
		VolRatio:  s.Volume.Ratio,
		Pressure:  s.Volume.Pressure,
		CreatedAt: s.CreatedAt,
	}
}

// Signal restores the domain value. Per-timeframe scores are not carried on the wire.
func (e SignalEvent) Signal() Signal {
	return Signal{
		ID:       e.ID,
		Symbol:   e.Symbol,
		Category: Category(e.Category),
		Score:    e.Score,
		Risk:     RiskLevel(e.Risk),
		Reasons:  e.Reasons,
		Price:    e.Price,
		Trend:    TrendAlignment(e.Trend),
		Scores: SubScores{
			Technical:         e.Technical,
			SupportResistance: e.SR,
			Volume:            e.Volume,
			Pattern:           e.Pattern,
		},
		Volume:    VolumeData{Ratio: e.VolRatio, Pressure: e.Pressure},
		CreatedAt: e.CreatedAt,
	}
}
