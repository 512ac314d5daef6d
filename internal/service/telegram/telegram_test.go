package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/service/ratelimit"
	xhttp "MarketWatch/pkg/http"
)

func TestSendPostsHTMLMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	n, err := New("TOKEN", "-100", xhttp.NewClient(), WithAPIURL(srv.URL), WithLimiter(ratelimit.NewKeyed(0, 1)))
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), "<b>hi</b>"))

	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "<b>hi</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
}

func TestSendErrorsDoNotLeakToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n, err := New("SECRET", "1", xhttp.NewClient(), WithAPIURL(srv.URL), WithLimiter(ratelimit.NewKeyed(0, 1)))
	require.NoError(t, err)
	err = n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), "SECRET")

	srv.Close()
	err = n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New("", "1", xhttp.NewClient())
	assert.True(t, errors.Is(err, domain.ErrNotifierDisabled))
}

func sampleSignal(sym string, cat models.Category) models.Signal {
	return models.Signal{
		Symbol:   sym,
		Category: cat,
		Score:    81.25,
		Risk:     models.RiskMedium,
		Price:    0.01234,
		Trend:    models.TrendBullish,
		Reasons:  []string{"RSI oversold (24.0)", "volume <expanded>"},
		Scores: models.SubScores{
			Technical:   70,
			ByTimeframe: map[models.Granularity]float64{models.G1h: 60, models.G4h: 80, models.G15m: 50},
		},
		Volume: models.VolumeData{Ratio: 2.5, Pressure: 0.5},
	}
}

func TestFormatSummariesChunks(t *testing.T) {
	var sigs []models.Signal
	for i := 0; i < 7; i++ {
		sigs = append(sigs, sampleSignal("SYM"+string(rune('A'+i)), models.Buy))
	}
	msgs := FormatSummaries(sigs, 5)
	require.Len(t, msgs, 2)
	assert.Equal(t, 5, strings.Count(msgs[0], "\n📈 "))
	assert.Equal(t, 2, strings.Count(msgs[1], "\n📈 "))
	assert.Contains(t, msgs[1], "<b>SYMG</b>")
	assert.Nil(t, FormatSummaries(nil, 5))
}

func TestFormatSignal(t *testing.T) {
	msg := FormatSignal(sampleSignal("PEPEUSDT", models.StrongBuy))
	assert.True(t, strings.HasPrefix(msg, "<b>🔥 STRONG BUY</b>"))
	assert.Contains(t, msg, "<code>0.01234000</code>")
	assert.Contains(t, msg, "4h 80.0 | 1h 60.0 | 15m 50.0 | total 70.0")
	assert.Contains(t, msg, "volume &lt;expanded&gt;")
	assert.Contains(t, msg, "🔴 Ratio")
	assert.Contains(t, msg, "🔵 Bid/Ask")
}

func TestFormatHeadline(t *testing.T) {
	msg := FormatHeadline(models.HeadlineReport{
		Symbol:      "BTCUSDT",
		Price:       64000,
		Change24h:   -1.5,
		Trend4h:     0.6,
		Trend1h:     0.4,
		Levels:      models.KeyLevels{Supports: []float64{63000}, Resistances: []float64{65000, 66000}},
		Advice:      "long",
		GeneratedAt: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, msg, "(-1.50% 24h)")
	assert.Contains(t, msg, "65000.00 / 66000.00")
	assert.Contains(t, msg, "<b>long</b>")
	assert.Contains(t, msg, "2024-01-02 03:00:00 UTC")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "123.46", FormatPrice(123.456))
	assert.Equal(t, "1.2346", FormatPrice(1.23456))
	assert.Equal(t, "0.00012346", FormatPrice(0.000123456))
}
