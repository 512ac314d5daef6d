package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"MarketWatch/internal/domain/models"
	xhttp "MarketWatch/pkg/http"
)

const (
	pathTicker24h = "/api/v3/ticker/24hr"
	pathKlines    = "/api/v3/klines"
	pathDepth     = "/api/v3/depth"

	maxKlineLimit = 1000
)

// RESTClient implements repository.MarketData against the Binance spot REST API.
type RESTClient struct {
	baseURL string
	http    *xhttp.Client
}

// NewRESTClient creates a client for baseURL (e.g. https://api.binance.com).
// Rate limiting is the responsibility of the supplied http client.
func NewRESTClient(baseURL string, client *xhttp.Client) *RESTClient {
	return &RESTClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

type tickerDTO struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Tickers24h returns rolling 24h statistics for every symbol.
func (c *RESTClient) Tickers24h(ctx context.Context) ([]models.Ticker24h, error) {
	var rows []tickerDTO
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + pathTicker24h,
	}, &rows); err != nil {
		return nil, fmt.Errorf("ticker 24h: %w", err)
	}

	out := make([]models.Ticker24h, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			// delisted pairs occasionally carry empty numbers
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r tickerDTO) toModel() (models.Ticker24h, error) {
	last, err := parseDecimal(r.LastPrice)
	if err != nil {
		return models.Ticker24h{}, err
	}
	chg, err := parseDecimal(r.PriceChangePercent)
	if err != nil {
		return models.Ticker24h{}, err
	}
	vol, err := parseDecimal(r.Volume)
	if err != nil {
		return models.Ticker24h{}, err
	}
	qv, err := parseDecimal(r.QuoteVolume)
	if err != nil {
		return models.Ticker24h{}, err
	}
	return models.Ticker24h{
		Symbol:             r.Symbol,
		LastPrice:          last,
		PriceChangePercent: chg,
		Volume:             vol,
		QuoteVolume:        qv,
	}, nil
}

// Klines returns up to limit candles, oldest first. The last candle is
// usually still open.
func (c *RESTClient) Klines(ctx context.Context, symbol string, g models.Granularity, limit int) ([]models.Candle, error) {
	if !models.IsValidGranularity(g) {
		return nil, fmt.Errorf("klines %s: unsupported granularity %q", symbol, g)
	}
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	var rows [][]json.RawMessage
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + pathKlines,
		QueryParams: map[string][]string{
			"symbol":   {models.NormalizeSymbol(symbol)},
			"interval": {string(g)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, g, err)
	}

	now := time.Now()
	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKlineRow(row, now)
		if err != nil {
			return nil, fmt.Errorf("klines %s row %d: %w", symbol, i, err)
		}
		out = append(out, candle)
	}
	return out, nil
}

// parseKlineRow decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlineRow(row []json.RawMessage, now time.Time) (models.Candle, error) {
	if len(row) < 7 {
		return models.Candle{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openMs, closeMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return models.Candle{}, fmt.Errorf("close time: %w", err)
	}

	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		f, err := parseDecimal(s)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = f
	}

	return models.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
		Closed:   time.UnixMilli(closeMs).Before(now),
	}, nil
}

type depthDTO struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// Depth returns the order book reduced to summed quantities over limit levels.
func (c *RESTClient) Depth(ctx context.Context, symbol string, limit int) (models.DepthSnapshot, error) {
	var d depthDTO
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + pathDepth,
		QueryParams: map[string][]string{
			"symbol": {models.NormalizeSymbol(symbol)},
			"limit":  {strconv.Itoa(limit)},
		},
	}, &d); err != nil {
		return models.DepthSnapshot{}, fmt.Errorf("depth %s: %w", symbol, err)
	}

	bidQty, bestBid, err := sumLevels(d.Bids)
	if err != nil {
		return models.DepthSnapshot{}, fmt.Errorf("depth %s bids: %w", symbol, err)
	}
	askQty, bestAsk, err := sumLevels(d.Asks)
	if err != nil {
		return models.DepthSnapshot{}, fmt.Errorf("depth %s asks: %w", symbol, err)
	}
	return models.DepthSnapshot{
		Symbol:    models.NormalizeSymbol(symbol),
		BidVolume: bidQty,
		AskVolume: askQty,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
	}, nil
}

// sumLevels adds quantities of [price, qty] pairs and returns the first price.
func sumLevels(levels [][2]string) (qty float64, best float64, err error) {
	total := decimal.Zero
	for i, lvl := range levels {
		q, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return 0, 0, fmt.Errorf("qty %q: %w", lvl[1], err)
		}
		total = total.Add(q)
		if i == 0 {
			p, err := decimal.NewFromString(lvl[0])
			if err != nil {
				return 0, 0, fmt.Errorf("price %q: %w", lvl[0], err)
			}
			best = p.InexactFloat64()
		}
	}
	return total.InexactFloat64(), best, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
