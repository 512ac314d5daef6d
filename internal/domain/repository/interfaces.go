package repository

import (
	"context"
	"time"

	"MarketWatch/internal/domain/models"
)

// MarketData is the request/response side of the market-data provider.
type MarketData interface {
	Tickers24h(ctx context.Context) ([]models.Ticker24h, error)
	Klines(ctx context.Context, symbol string, g models.Granularity, limit int) ([]models.Candle, error)
	Depth(ctx context.Context, symbol string, limit int) (models.DepthSnapshot, error)
}

// MarketStream opens streaming connections for a fixed subscription list.
// A new subscription list always requires a new connection.
type MarketStream interface {
	Dial(ctx context.Context, symbols []string) (StreamConn, error)
}

// StreamConn is one live streaming connection.
type StreamConn interface {
	// Next blocks until a frame arrives. Unparseable frames are returned with
	// Kind FrameUnknown and a nil error; connection failures return an error.
	Next(ctx context.Context) (models.Frame, error)
	Close() error
}

// Notifier delivers text to an external channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type SignalPublisher interface {
	Publish(ctx context.Context, s models.Signal) error
	PublishBatch(ctx context.Context, signals []models.Signal) error
	Close() error
}

type SignalStore interface {
	Init(ctx context.Context) error // ensure tables
	Store(ctx context.Context, s models.Signal) error
	StoreBatch(ctx context.Context, signals []models.Signal) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Signal, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// CooldownStore persists last-alert times so restarts do not re-alert.
type CooldownStore interface {
	LastAlert(ctx context.Context, symbol string) (time.Time, bool, error)
	SetLastAlert(ctx context.Context, symbol string, at time.Time) error
}

// LevelsCache caches computed key levels between scans.
type LevelsCache interface {
	GetLevels(ctx context.Context, symbol string, g models.Granularity) (models.KeyLevels, bool, error)
	SetLevels(ctx context.Context, symbol string, g models.Granularity, levels models.KeyLevels) error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordFrame(kind string)
	SetStreamState(state string)
	SetUniverseSize(n int)
	RecordSignal(category string)
	RecordAlert(result string)
}
