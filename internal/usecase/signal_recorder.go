package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// SignalRecorder routes dispatched signals to the configured backend.
type SignalRecorder struct {
	backend   string
	publisher drepo.SignalPublisher
	store     drepo.SignalStore
	metrics   drepo.Metrics
	batchSize int
}

// NewSignalRecorder creates a recorder. The dependency matching backend must
// be non-nil.
func NewSignalRecorder(backend string, publisher drepo.SignalPublisher, store drepo.SignalStore, metrics drepo.Metrics, batchSize int) (*SignalRecorder, error) {
	switch backend {
	case BackendKafka:
		if publisher == nil {
			return nil, fmt.Errorf("signal recorder: kafka backend without publisher")
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("signal recorder: clickhouse backend without store")
		}
	case BackendNone, "":
		backend = BackendNone
	default:
		return nil, fmt.Errorf("signal recorder: unknown backend %q", backend)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SignalRecorder{
		backend:   backend,
		publisher: publisher,
		store:     store,
		metrics:   metrics,
		batchSize: batchSize,
	}, nil
}

func (r *SignalRecorder) Backend() string { return r.backend }

// Record writes signals in chunks of the batch size.
func (r *SignalRecorder) Record(ctx context.Context, signals []models.Signal) error {
	if r.backend == BackendNone || len(signals) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(signals); lo += r.batchSize {
		hi := lo + r.batchSize
		if hi > len(signals) {
			hi = len(signals)
		}
		chunk := signals[lo:hi]

		var err error
		switch r.backend {
		case BackendKafka:
			err = r.publisher.PublishBatch(ctx, chunk)
		case BackendClickHouse:
			err = r.store.StoreBatch(ctx, chunk)
		}
		if err != nil {
			r.metrics.RecordError("record_" + r.backend)
			return fmt.Errorf("record %d signals to %s: %w", len(chunk), r.backend, err)
		}
		for _, s := range chunk {
			r.metrics.RecordMessageSent(r.backend, s.Symbol)
		}
	}
	r.metrics.RecordLatency("record_"+r.backend, time.Since(start).Seconds())
	return nil
}
