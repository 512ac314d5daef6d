package models

import (
	"strings"
	"time"
)

// Granularity is a candle bucket size using exchange interval notation.
type Granularity string

const (
	G1m  Granularity = "1m"
	G5m  Granularity = "5m"
	G15m Granularity = "15m"
	G1h  Granularity = "1h"
	G4h  Granularity = "4h"
	G1d  Granularity = "1d"
)

// Duration returns the bucket length, or 0 for unknown granularities.
func (g Granularity) Duration() time.Duration {
	switch g {
	case G1m:
		return time.Minute
	case G5m:
		return 5 * time.Minute
	case G15m:
		return 15 * time.Minute
	case G1h:
		return time.Hour
	case G4h:
		return 4 * time.Hour
	case G1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// IsValidGranularity returns true if g is a supported granularity.
func IsValidGranularity(g Granularity) bool { return g.Duration() > 0 }

// NormalizeGranularity converts a raw string to a valid granularity (or def).
func NormalizeGranularity(s string, def Granularity) Granularity {
	g := Granularity(strings.TrimSpace(s))
	if IsValidGranularity(g) {
		return g
	}
	return def
}

// NormalizeSymbol returns the canonical (upper case) form of a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Candle is an OHLCV summary of one bucket.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Closed   bool
}

// Bucket is the key used to replace an in-progress candle.
func (c Candle) Bucket() int64 { return c.OpenTime.UnixMilli() }

// CandleBucket adapts Candle.Bucket for series.Bounded.ReplaceOrPush.
func CandleBucket(c Candle) int64 { return c.Bucket() }

// DepthSample aggregates top-of-book quantities at one instant.
type DepthSample struct {
	Timestamp time.Time
	BidVolume float64
	AskVolume float64
}

// Total returns bid plus ask volume.
func (d DepthSample) Total() float64 { return d.BidVolume + d.AskVolume }

// Pressure returns bid/ask, or 1 when there is no ask volume.
func (d DepthSample) Pressure() float64 {
	if d.AskVolume <= 0 {
		return 1
	}
	return d.BidVolume / d.AskVolume
}

// KeyLevels holds support (descending) and resistance (ascending) prices.
type KeyLevels struct {
	Supports    []float64
	Resistances []float64
	ComputedAt  time.Time
}

// IsDegenerate reports whether the levels are unusable (missing or containing zeros).
func (k KeyLevels) IsDegenerate() bool {
	if len(k.Supports) == 0 && len(k.Resistances) == 0 {
		return true
	}
	for _, p := range k.Supports {
		if p <= 0 {
			return true
		}
	}
	for _, p := range k.Resistances {
		if p <= 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (k KeyLevels) Clone() KeyLevels {
	return KeyLevels{
		Supports:    append([]float64(nil), k.Supports...),
		Resistances: append([]float64(nil), k.Resistances...),
		ComputedAt:  k.ComputedAt,
	}
}

// Ticker24h is a rolling 24h statistics row for one symbol.
type Ticker24h struct {
	Symbol             string
	LastPrice          float64
	PriceChangePercent float64
	Volume             float64
	QuoteVolume        float64
}

// DepthSnapshot is a REST order book snapshot reduced to summed quantities.
type DepthSnapshot struct {
	Symbol    string
	BidVolume float64
	AskVolume float64
	BestBid   float64
	BestAsk   float64
}
