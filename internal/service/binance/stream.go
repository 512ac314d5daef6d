package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
)

const depthStreamSuffix = "@depth5@1000ms"

// Stream implements repository.MarketStream over the Binance combined
// stream endpoint. Every Dial opens a fresh connection.
type Stream struct {
	baseURL      string
	granularity  models.Granularity
	pingInterval time.Duration
	readTimeout  time.Duration
	dialer       *websocket.Dialer
}

// StreamOption configures Stream.
type StreamOption func(*Stream)

func WithPingInterval(d time.Duration) StreamOption {
	return func(s *Stream) { s.pingInterval = d }
}

// WithReadTimeout sets how long Next waits for any frame (or pong) before
// the connection is considered dead.
func WithReadTimeout(d time.Duration) StreamOption {
	return func(s *Stream) { s.readTimeout = d }
}

func WithDialer(d *websocket.Dialer) StreamOption {
	return func(s *Stream) { s.dialer = d }
}

// NewStream creates a stream client. baseURL is e.g. wss://stream.binance.com:9443.
func NewStream(baseURL string, g models.Granularity, opts ...StreamOption) *Stream {
	s := &Stream{
		baseURL:      strings.TrimRight(baseURL, "/"),
		granularity:  g,
		pingInterval: 30 * time.Second,
		readTimeout:  90 * time.Second,
		dialer:       websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamURL builds <base>/stream?streams=<sym>@kline_<g>/<sym>@depth5@1000ms/...
func StreamURL(baseURL string, g models.Granularity, symbols []string) string {
	parts := make([]string, 0, 2*len(symbols))
	for _, sym := range symbols {
		s := strings.ToLower(strings.TrimSpace(sym))
		if s == "" {
			continue
		}
		parts = append(parts, s+"@kline_"+string(g), s+depthStreamSuffix)
	}
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(parts, "/")
}

// Dial opens a combined stream for symbols.
func (s *Stream) Dial(ctx context.Context, symbols []string) (drepo.StreamConn, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("dial stream: no symbols")
	}
	u := StreamURL(s.baseURL, s.granularity, symbols)
	ws, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	c := &conn{
		ws:          ws,
		readTimeout: s.readTimeout,
		done:        make(chan struct{}),
	}
	_ = ws.SetReadDeadline(time.Now().Add(s.readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.readTimeout))
	})
	if s.pingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(s.pingInterval)
	}
	return c, nil
}

type conn struct {
	ws          *websocket.Conn
	readTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func (c *conn) pingLoop(every time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Next reads one message. Decoding failures come back as FrameUnknown with
// a nil error so that callers can count and drop them.
func (c *conn) Next(ctx context.Context) (models.Frame, error) {
	// unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, b, err := c.ws.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return models.Frame{}, ctx.Err()
		}
		return models.Frame{}, fmt.Errorf("read stream: %w", err)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))

	f, err := DecodeFrame(b)
	if err != nil {
		return models.Frame{Kind: models.FrameUnknown, Stream: f.Stream}, nil
	}
	return f, nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
		c.wg.Wait()
	})
	return err
}

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type klineEvent struct {
	Symbol string `json:"s"`
	K      struct {
		OpenTime int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

type partialDepth struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// DecodeFrame parses one combined-stream message. The routing key is the
// stream name; payloads that do not match it return ErrMalformedFrame.
func DecodeFrame(b []byte) (models.Frame, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return models.Frame{}, fmt.Errorf("%w: envelope: %v", domain.ErrMalformedFrame, err)
	}
	f := models.Frame{Kind: models.FrameUnknown, Stream: env.Stream}
	sym, kind, ok := strings.Cut(env.Stream, "@")
	if !ok || len(env.Data) == 0 {
		return f, fmt.Errorf("%w: stream %q", domain.ErrMalformedFrame, env.Stream)
	}
	f.Symbol = models.NormalizeSymbol(sym)

	switch {
	case strings.HasPrefix(kind, "kline_"):
		var ev klineEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return f, fmt.Errorf("%w: kline: %v", domain.ErrMalformedFrame, err)
		}
		candle, err := ev.candle()
		if err != nil {
			return f, fmt.Errorf("%w: kline: %v", domain.ErrMalformedFrame, err)
		}
		f.Kind = models.FrameKline
		f.Granularity = models.Granularity(ev.K.Interval)
		f.Candle = candle
		return f, nil

	case strings.HasPrefix(kind, "depth"):
		var d partialDepth
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return f, fmt.Errorf("%w: depth: %v", domain.ErrMalformedFrame, err)
		}
		bid, _, err := sumLevels(top(d.Bids, 5))
		if err != nil {
			return f, fmt.Errorf("%w: depth: %v", domain.ErrMalformedFrame, err)
		}
		ask, _, err := sumLevels(top(d.Asks, 5))
		if err != nil {
			return f, fmt.Errorf("%w: depth: %v", domain.ErrMalformedFrame, err)
		}
		f.Kind = models.FrameDepth
		f.Depth = models.DepthSample{Timestamp: time.Now().UTC(), BidVolume: bid, AskVolume: ask}
		return f, nil
	}
	return f, fmt.Errorf("%w: unhandled stream %q", domain.ErrMalformedFrame, env.Stream)
}

func (ev klineEvent) candle() (models.Candle, error) {
	var vals [5]float64
	for i, s := range []string{ev.K.Open, ev.K.High, ev.K.Low, ev.K.Close, ev.K.Volume} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, err
		}
		vals[i] = d.InexactFloat64()
	}
	return models.Candle{
		OpenTime: time.UnixMilli(ev.K.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
		Closed:   ev.K.Closed,
	}, nil
}

func top(levels [][2]string, n int) [][2]string {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
