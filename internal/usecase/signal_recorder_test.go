package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
)

func signals(n int) []models.Signal {
	out := make([]models.Signal, n)
	for i := range out {
		out[i] = models.Signal{ID: string(rune('a' + i)), Symbol: "BTCUSDT", Category: models.Buy}
	}
	return out
}

func TestSignalRecorderBackends(t *testing.T) {
	ctx := context.Background()

	pub := &fakePublisher{}
	m := newFakeMetrics()
	r, err := NewSignalRecorder(BackendKafka, pub, nil, m, 2)
	require.NoError(t, err)
	require.NoError(t, r.Record(ctx, signals(5)))
	require.Len(t, pub.batches, 3)
	assert.Len(t, pub.batches[2], 1)
	assert.Equal(t, 5, m.count(m.sent, BackendKafka))

	store := &fakeStore{}
	r, err = NewSignalRecorder(BackendClickHouse, nil, store, newFakeMetrics(), 0)
	require.NoError(t, err)
	require.NoError(t, r.Record(ctx, signals(3)))
	assert.Equal(t, 1, store.batches)
	assert.Len(t, store.stored, 3)

	r, err = NewSignalRecorder("", nil, nil, newFakeMetrics(), 0)
	require.NoError(t, err)
	assert.Equal(t, BackendNone, r.Backend())
	assert.NoError(t, r.Record(ctx, signals(1)))
}

func TestSignalRecorderErrors(t *testing.T) {
	_, err := NewSignalRecorder(BackendKafka, nil, nil, newFakeMetrics(), 0)
	assert.Error(t, err)
	_, err = NewSignalRecorder(BackendClickHouse, nil, nil, newFakeMetrics(), 0)
	assert.Error(t, err)
	_, err = NewSignalRecorder("postgres", nil, nil, newFakeMetrics(), 0)
	assert.Error(t, err)

	boom := errors.New("boom")
	m := newFakeMetrics()
	r, err := NewSignalRecorder(BackendKafka, &fakePublisher{err: boom}, nil, m, 10)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Record(context.Background(), signals(2)), boom)
	assert.Equal(t, 1, m.count(m.errors, "record_kafka"))
}

func TestSignalArchiverHandle(t *testing.T) {
	store := &fakeStore{}
	m := newFakeMetrics()
	h := NewSignalArchiver("signals", store, m)
	assert.Equal(t, "signals", h.Topic())

	ev := models.NewSignalEvent(models.Signal{
		ID: "id-1", Symbol: "ETHUSDT", Category: models.StrongSell, Score: 18,
		Scores:    models.SubScores{Technical: 20, Volume: 10},
		Volume:    models.VolumeData{Ratio: 2, Pressure: 0.4},
		CreatedAt: time.Now().Add(-time.Second),
	})
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.stored, 1)
	got := store.stored[0]
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, models.StrongSell, got.Category)
	assert.Equal(t, 0.4, got.Volume.Pressure)
	assert.Equal(t, 1, m.count(m.sent, "clickhouse"))
}

func TestSignalArchiverRejects(t *testing.T) {
	store := &fakeStore{}
	m := newFakeMetrics()
	h := NewSignalArchiver("signals", store, m)
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, []byte("{not json")))
	assert.Error(t, h.Handle(ctx, []byte(`{"symbol":"BTCUSDT"}`)))
	assert.Empty(t, store.stored)
	assert.Equal(t, 1, m.count(m.errors, "archiver_unmarshal"))
	assert.Equal(t, 1, m.count(m.errors, "archiver_invalid"))

	store.err = errors.New("clickhouse down")
	assert.Error(t, h.Handle(ctx, []byte(`{"id":"x","symbol":"BTCUSDT"}`)))
	assert.Equal(t, 1, m.count(m.errors, "archiver_store"))
}
