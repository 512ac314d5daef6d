package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/registry"
	"MarketWatch/pkg/logger"
)

func runIngestor(t *testing.T, in *StreamIngestor) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- in.Run(ctx) }()
	t.Cleanup(cancelFn)
	return cancelFn, ch
}

func TestIngestorAppliesFramesAndEndsCancelled(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	conn := newFakeConn()
	stream := &fakeStream{conns: []*fakeConn{conn}}
	m := newFakeMetrics()
	in := NewStreamIngestor(stream, reg, m, logger.Nop(), WithReconnectDelay(10*time.Millisecond))

	cancel, done := runIngestor(t, in)
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)

	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	conn.frames <- models.Frame{Kind: models.FrameKline, Symbol: "BTCUSDT", Granularity: models.G5m,
		Candle: models.Candle{OpenTime: open, Close: 100}}
	conn.frames <- models.Frame{Kind: models.FrameKline, Symbol: "BTCUSDT", Granularity: models.G5m,
		Candle: models.Candle{OpenTime: open, Close: 101}}
	conn.frames <- models.Frame{Kind: models.FrameDepth, Symbol: "BTCUSDT",
		Depth: models.DepthSample{BidVolume: 3, AskVolume: 1}}
	conn.frames <- models.Frame{Kind: models.FrameKline, Symbol: "ETHUSDT", Granularity: models.G5m,
		Candle: models.Candle{OpenTime: open, Close: 5}}
	conn.frames <- models.Frame{Kind: models.FrameUnknown, Stream: "garbage"}

	require.Eventually(t, func() bool { return m.count(m.errors, "malformed_frame") == 1 }, time.Second, 5*time.Millisecond)

	snap, ok := reg.Snapshot("BTCUSDT")
	require.True(t, ok)
	require.Len(t, snap.Candles[models.G5m], 1, "update for the same bucket replaces the tail")
	assert.Equal(t, 101.0, snap.Candles[models.G5m][0].Close)
	d, ok := snap.LastDepth()
	require.True(t, ok)
	assert.Equal(t, 3.0, d.Pressure())
	assert.False(t, reg.Contains("ETHUSDT"), "frames for unmonitored symbols are dropped")
	assert.Equal(t, 3, m.count(m.frames, "kline"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateCancelled, in.State())
	<-conn.closed
}

func TestIngestorReconnectsAfterStreamLoss(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	first, second := newFakeConn(), newFakeConn()
	stream := &fakeStream{conns: []*fakeConn{first, second}}
	in := NewStreamIngestor(stream, reg, newFakeMetrics(), logger.Nop(), WithReconnectDelay(20*time.Millisecond))

	runIngestor(t, in)
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)

	first.fail <- errors.New("connection reset")
	require.Eventually(t, func() bool { return len(in.States()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, stream.dialCount())
	<-first.closed

	var seen []StreamState
	for i := 0; i < 5; i++ {
		seen = append(seen, <-in.States())
	}
	assert.Equal(t, []StreamState{StateConnecting, StateConnected, StateDisconnected, StateConnecting, StateConnected}, seen)
}

func TestIngestorKeepsRetryingFailedDials(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	stream := &fakeStream{err: errors.New("refused")}
	m := newFakeMetrics()
	in := NewStreamIngestor(stream, reg, m, logger.Nop(), WithReconnectDelay(5*time.Millisecond))

	cancel, done := runIngestor(t, in)
	require.Eventually(t, func() bool { return stream.dialCount() >= 3 }, time.Second, 2*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, StateCancelled, in.State())
	assert.GreaterOrEqual(t, m.count(m.errors, "stream_dial"), 3)
}

func TestIngestorResubscribeRedialsWithNewSymbols(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	first, second := newFakeConn(), newFakeConn()
	stream := &fakeStream{conns: []*fakeConn{first, second}}
	// a long delay proves the resubscribe path does not wait
	in := NewStreamIngestor(stream, reg, newFakeMetrics(), logger.Nop(), WithReconnectDelay(time.Hour))

	runIngestor(t, in)
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)

	reg.Upsert("ETHUSDT")
	in.Resubscribe()
	require.Eventually(t, func() bool { return stream.dialCount() == 2 }, time.Second, 5*time.Millisecond)
	<-first.closed

	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.Equal(t, []string{"BTCUSDT"}, stream.dials[0])
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, stream.dials[1])
}

func TestIngestorWaitsForSymbols(t *testing.T) {
	reg := registry.New()
	stream := &fakeStream{conns: []*fakeConn{newFakeConn()}}
	in := NewStreamIngestor(stream, reg, newFakeMetrics(), logger.Nop())

	runIngestor(t, in)
	assert.Never(t, func() bool { return stream.dialCount() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateDisconnected, in.State())

	reg.Upsert("SOLUSDT")
	in.Resubscribe()
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, stream.dialCount())
}

func TestStreamStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
}

func TestIngestorConnectsAfterFailedDials(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	stream := &flakyStream{failures: 3}
	m := newFakeMetrics()
	in := NewStreamIngestor(stream, reg, m, logger.Nop(), WithReconnectDelay(5*time.Millisecond))

	runIngestor(t, in)
	require.Eventually(t, func() bool { return in.State() == StateConnected }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 4, stream.dialCount())
	assert.Equal(t, 3, m.count(m.errors, "stream_dial"))
}

func TestIngestorCancelsDuringReconnectWait(t *testing.T) {
	reg := registry.New()
	reg.Upsert("BTCUSDT")
	stream := &flakyStream{failures: 1}
	in := NewStreamIngestor(stream, reg, newFakeMetrics(), logger.Nop(), WithReconnectDelay(time.Hour))

	cancel, done := runIngestor(t, in)
	require.Eventually(t, func() bool {
		return stream.dialCount() == 1 && in.State() == StateDisconnected
	}, time.Second, 2*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ingestor kept waiting after cancel")
	}
	assert.Equal(t, StateCancelled, in.State())
	assert.Equal(t, 1, stream.dialCount(), "no redial after cancel")

	var seen []StreamState
	for len(in.States()) > 0 {
		seen = append(seen, <-in.States())
	}
	assert.Equal(t, []StreamState{StateConnecting, StateDisconnected, StateCancelled}, seen)
}
