package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func (w *captureWriter) snapshot() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type chanReader struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newChanReader(msgs ...kafka.Message) *chanReader {
	r := &chanReader{in: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.in <- m
	}
	return r
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.in:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducerEncodesValues(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "snappy", prometheus.NewRegistry())

	err := p.PublishBatch(context.Background(), "signals", []Message{
		{Key: []byte("BTCUSDT"), Value: map[string]int{"score": 80}},
		{Key: []byte("ETHUSDT"), Value: "raw"},
	})
	require.NoError(t, err)
	require.NoError(t, p.PublishMessage(context.Background(), "logs", []byte("x")))

	msgs := w.snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "signals", msgs[0].Topic)
	assert.Equal(t, []byte("BTCUSDT"), msgs[0].Key)
	assert.JSONEq(t, `{"score":80}`, string(msgs[0].Value))
	assert.Equal(t, "raw", string(msgs[1].Value))
	assert.Equal(t, "logs", msgs[2].Topic)
	assert.Nil(t, msgs[2].Key)
}

func TestProducerPropagatesWriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "none", prometheus.NewRegistry())
	assert.Error(t, p.Publish(context.Background(), "signals", nil, "v"))
	assert.NoError(t, p.PublishBatch(context.Background(), "signals", nil))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	reader := newChanReader(
		kafka.Message{Topic: "signals", Offset: 1, Value: []byte("a")},
		kafka.Message{Topic: "signals", Offset: 2, Value: []byte("b")},
	)
	var mu sync.Mutex
	var seen []string
	c, err := NewConsumer(
		WithReaderFactory(func(string) Reader { return reader }),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	c.RegisterHandler(funcHandler{topic: "signals", fn: func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(b))
		return nil
	}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: "signals", Offset: 7, Value: []byte("bad")})
	dlq := &captureWriter{}
	var mu sync.Mutex
	attempts := 0
	c, err := NewConsumer(
		WithReaderFactory(func(string) Reader { return reader }),
		WithDLQWriter(dlq),
		WithConsumerDLQ("signals.dlq"),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	c.RegisterHandler(funcHandler{topic: "signals", fn: func([]byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("decode failed")
	}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
	msgs := dlq.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "signals.dlq", msgs[0].Topic)
	assert.Equal(t, "signals", string(msgs[0].Headers[0].Value))
}

func TestStartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(
		WithReaderFactory(func(string) Reader { return newChanReader() }),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	assert.Error(t, c.Start())
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(d, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", km, data, nil)
	assert.Equal(t, ">ab", string(data))
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	var errs int
	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ },
	}
	_, _, _, err = NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, 1, errs)
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", ctx.Value(CtxTraceID))
	_, ok := ctx.Value(CtxStartTime).(time.Time)
	assert.True(t, ok)
}
