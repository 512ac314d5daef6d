package usecase

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	pkgkafka "MarketWatch/pkg/kafka"
)

// SignalArchiver consumes signal events from the bus and writes them to the
// signal store.
type SignalArchiver struct {
	topic   string
	store   drepo.SignalStore
	metrics drepo.Metrics
}

func NewSignalArchiver(topic string, store drepo.SignalStore, metrics drepo.Metrics) *SignalArchiver {
	return &SignalArchiver{topic: topic, store: store, metrics: metrics}
}

func (h *SignalArchiver) Topic() string { return h.topic }

// Handle decodes one SignalEvent. Invalid events fail so the consumer can
// park them on the DLQ.
func (h *SignalArchiver) Handle(ctx context.Context, b []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("archiver_unmarshal")
		return fmt.Errorf("decode signal event: %w", err)
	}
	if ev.ID == "" || ev.Symbol == "" {
		h.metrics.RecordError("archiver_invalid")
		return fmt.Errorf("signal event missing id or symbol")
	}
	if !ev.CreatedAt.IsZero() {
		h.metrics.RecordLatency("archive_e2e", time.Since(ev.CreatedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Store(ctx, ev.Signal())
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("archiver_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", ev.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*SignalArchiver)(nil)
