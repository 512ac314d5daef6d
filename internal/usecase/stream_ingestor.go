package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	"MarketWatch/internal/registry"
	"MarketWatch/pkg/logger"
)

// StreamState is the connection state of the StreamIngestor.
type StreamState int32

const (
	StateDisconnected StreamState = iota
	StateConnecting
	StateConnected
	StateCancelled
)

func (s StreamState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCancelled:
		return "cancelled"
	default:
		return "disconnected"
	}
}

var errResubscribe = errors.New("resubscribe requested")

// StreamIngestor keeps one combined stream open for the registry's symbols
// and applies frames to the registry. Reconnects use a fixed delay; a
// resubscribe tears the connection down and dials again immediately.
type StreamIngestor struct {
	stream  drepo.MarketStream
	reg     *registry.Registry
	metrics drepo.Metrics
	log     *logger.Logger
	delay   time.Duration

	state  atomic.Int32
	states chan StreamState
	resub  chan struct{}
}

type IngestorOption func(*StreamIngestor)

// WithReconnectDelay sets the fixed wait between a failure and the next dial.
func WithReconnectDelay(d time.Duration) IngestorOption {
	return func(in *StreamIngestor) { in.delay = d }
}

// WithStateBuffer sizes the state channel. Transitions are dropped when it is full.
func WithStateBuffer(n int) IngestorOption {
	return func(in *StreamIngestor) { in.states = make(chan StreamState, n) }
}

func NewStreamIngestor(stream drepo.MarketStream, reg *registry.Registry, metrics drepo.Metrics, log *logger.Logger, opts ...IngestorOption) *StreamIngestor {
	in := &StreamIngestor{
		stream:  stream,
		reg:     reg,
		metrics: metrics,
		log:     log.With("stream_ingestor"),
		delay:   5 * time.Second,
		states:  make(chan StreamState, 16),
		resub:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// State returns the current connection state.
func (in *StreamIngestor) State() StreamState { return StreamState(in.state.Load()) }

// States publishes every transition.
func (in *StreamIngestor) States() <-chan StreamState { return in.states }

// Resubscribe asks for a new connection built from the current registry
// symbols. Requests coalesce.
func (in *StreamIngestor) Resubscribe() {
	select {
	case in.resub <- struct{}{}:
	default:
	}
}

func (in *StreamIngestor) setState(s StreamState) {
	if StreamState(in.state.Swap(int32(s))) == s {
		return
	}
	in.metrics.SetStreamState(s.String())
	select {
	case in.states <- s:
	default:
	}
}

// Run blocks until ctx is done. It always ends in StateCancelled.
func (in *StreamIngestor) Run(ctx context.Context) error {
	defer in.setState(StateCancelled)

	for ctx.Err() == nil {
		// a pending request is satisfied by the dial below
		select {
		case <-in.resub:
		default:
		}

		symbols := in.reg.Symbols()
		if len(symbols) == 0 {
			in.setState(StateDisconnected)
			select {
			case <-ctx.Done():
				return nil
			case <-in.resub:
				continue
			}
		}

		in.setState(StateConnecting)
		conn, err := in.stream.Dial(ctx, symbols)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			in.metrics.RecordError("stream_dial")
			in.log.Warn("dial failed", logger.Error(err), logger.Duration("retry_in", in.delay))
			in.setState(StateDisconnected)
			if !in.wait(ctx) {
				return nil
			}
			continue
		}

		in.setState(StateConnected)
		in.log.Info("connected", logger.Int("symbols", len(symbols)))
		err = in.consume(ctx, conn)
		_ = conn.Close()

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errResubscribe):
			in.log.Info("resubscribing")
			continue
		}
		in.metrics.RecordError("stream_read")
		in.log.Warn("stream lost", logger.Error(err), logger.Duration("retry_in", in.delay))
		in.setState(StateDisconnected)
		if !in.wait(ctx) {
			return nil
		}
	}
	return nil
}

// wait sleeps for the reconnect delay; false means ctx ended first.
func (in *StreamIngestor) wait(ctx context.Context) bool {
	t := time.NewTimer(in.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (in *StreamIngestor) consume(ctx context.Context, conn drepo.StreamConn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var resubscribed atomic.Bool
	go func() {
		select {
		case <-in.resub:
			resubscribed.Store(true)
			cancel()
		case <-connCtx.Done():
		}
	}()

	for {
		f, err := conn.Next(connCtx)
		if err != nil {
			if resubscribed.Load() && ctx.Err() == nil {
				return errResubscribe
			}
			return err
		}
		in.apply(f)
	}
}

func (in *StreamIngestor) apply(f models.Frame) {
	in.metrics.RecordFrame(f.Kind.String())
	switch f.Kind {
	case models.FrameKline:
		if in.reg.With(f.Symbol, func(s *registry.SymbolState) { s.ApplyCandle(f.Granularity, f.Candle) }) {
			in.metrics.RecordLastPrice(f.Symbol, f.Candle.Close)
		}
	case models.FrameDepth:
		in.reg.With(f.Symbol, func(s *registry.SymbolState) { s.Depth.Push(f.Depth) })
	case models.FrameUnknown:
		in.metrics.RecordError("malformed_frame")
		in.log.Debug("dropped frame", logger.String("stream", f.Stream))
	}
}
