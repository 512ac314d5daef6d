package repository

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
	pkgkafka "MarketWatch/pkg/kafka"
)

func TestBuildQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	q, args := buildQuery("mw.signals", "btcusdt", from, to, 50)
	assert.Contains(t, q, "FROM mw.signals FINAL WHERE symbol = ? AND created_at >= ? AND created_at <= ?")
	assert.Equal(t, []any{"BTCUSDT", from, to, 50}, args)

	q, args = buildQuery("mw.signals", "", from, to, 10)
	assert.NotContains(t, q, "symbol = ?")
	assert.Len(t, args, 3)
}

func TestSignalRowOrderMatchesColumns(t *testing.T) {
	sig := models.Signal{
		ID:        "id-1",
		Symbol:    "ETHUSDT",
		Category:  models.Buy,
		Score:     61,
		Risk:      models.RiskLow,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600)),
	}
	row := signalRow(sig)
	require.Len(t, row, 15)
	assert.Equal(t, "buy", row[2])
	assert.Equal(t, []string{}, row[7])
	assert.Equal(t, time.UTC, row[14].(time.Time).Location())
}

func TestSignalSchema(t *testing.T) {
	stmts := SignalSchema("marketwatch", "signals")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "marketwatch.signals")
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
}

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaSignalPublisher(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaSignalPublisher(pkgkafka.NewProducerWithWriter(w, "none", prometheus.NewRegistry()), "signals")

	err := p.PublishBatch(context.Background(), []models.Signal{
		{ID: "a", Symbol: "BTCUSDT", Category: models.StrongBuy, Score: 80},
		{ID: "b", Symbol: "ETHUSDT", Category: models.Sell, Score: 35},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "BTCUSDT", string(w.msgs[0].Key))

	var ev models.SignalEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, "b", ev.ID)
	assert.Equal(t, "sell", ev.Category)
}
