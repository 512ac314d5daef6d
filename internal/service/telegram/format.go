package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"MarketWatch/internal/domain/models"
)

const riskNotice = "\n⚠️ Signals are informational only. Size positions and set stops."

var categoryTitle = map[models.Category]string{
	models.StrongBuy:  "🔥 STRONG BUY",
	models.Buy:        "📈 BUY",
	models.Sell:       "📉 SELL",
	models.StrongSell: "❄️ STRONG SELL",
}

var categoryIcon = map[models.Category]string{
	models.StrongBuy:  "🔥",
	models.Buy:        "📈",
	models.Sell:       "📉",
	models.StrongSell: "❄️",
}

// FormatSummaries renders one summary line per signal, chunkSize signals per message.
func FormatSummaries(signals []models.Signal, chunkSize int) []string {
	if len(signals) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = len(signals)
	}
	var out []string
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}
		var b strings.Builder
		b.WriteString("🔔 <b>Signal summary</b>")
		for _, s := range signals[start:end] {
			fmt.Fprintf(&b, "\n%s <b>%s</b> | price %s | score %.1f | risk %s",
				categoryIcon[s.Category], html.EscapeString(s.Symbol), FormatPrice(s.Price), s.Score, s.Risk)
		}
		b.WriteString("\n\nDetails follow.")
		out = append(out, b.String())
	}
	return out
}

// FormatSignal renders the detail message for one signal.
func FormatSignal(s models.Signal) string {
	var b strings.Builder
	title, ok := categoryTitle[s.Category]
	if !ok {
		title = string(s.Category)
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", title)
	fmt.Fprintf(&b, "\n🎯 Pair: <b>%s</b>", html.EscapeString(s.Symbol))
	fmt.Fprintf(&b, "\n💰 Price: <code>%s</code>", FormatPrice(s.Price))
	fmt.Fprintf(&b, "\n📊 Score: <code>%.1f/100</code>", s.Score)

	b.WriteString("\n\n📈 Technical:")
	fmt.Fprintf(&b, "\n<code>%s</code>", formatTimeframes(s.Scores))
	fmt.Fprintf(&b, "\n🎯 Trend: <code>%s</code>", s.Trend)
	fmt.Fprintf(&b, "\n🧱 S/R: <code>%.1f</code> | Pattern: <code>%.1f</code>", s.Scores.SupportResistance, s.Scores.Pattern)

	b.WriteString("\n\n📊 Volume:")
	fmt.Fprintf(&b, "\n%s Ratio: <code>%.2f</code>", ratioMarker(s.Volume.Ratio), s.Volume.Ratio)
	fmt.Fprintf(&b, "\n%s Bid/Ask: <code>%.2f</code>", pressureMarker(s.Volume.Pressure), s.Volume.Pressure)

	fmt.Fprintf(&b, "\n\n⚠️ Risk: <code>%s</code>", s.Risk)
	if len(s.Reasons) > 0 {
		b.WriteString("\n\n📝 Reasons:")
		for _, r := range s.Reasons {
			fmt.Fprintf(&b, "\n• %s", html.EscapeString(r))
		}
	}
	b.WriteString("\n--------------------------------")
	b.WriteString(riskNotice)
	return b.String()
}

// FormatHeadline renders the hourly report for one symbol.
func FormatHeadline(r models.HeadlineReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕐 <b>%s hourly report</b>", html.EscapeString(r.Symbol))
	fmt.Fprintf(&b, "\n💰 Price: <code>%s</code> (%+.2f%% 24h)", FormatPrice(r.Price), r.Change24h)
	fmt.Fprintf(&b, "\n📈 Trend 4h: <code>%+.2f</code> | 1h: <code>%+.2f</code>", r.Trend4h, r.Trend1h)
	fmt.Fprintf(&b, "\n📊 RSI(1h): <code>%.1f</code> | MACD hist: <code>%.4f</code>", r.RSI1h, r.MACDHist1h)
	if len(r.Levels.Resistances) > 0 {
		fmt.Fprintf(&b, "\n🔺 Resistance: <code>%s</code>", joinPrices(r.Levels.Resistances))
	}
	if len(r.Levels.Supports) > 0 {
		fmt.Fprintf(&b, "\n🔻 Support: <code>%s</code>", joinPrices(r.Levels.Supports))
	}
	fmt.Fprintf(&b, "\n\n💡 Advice: <b>%s</b>", r.Advice)
	fmt.Fprintf(&b, "\n⏰ %s UTC", r.GeneratedAt.UTC().Format(time.DateTime))
	return b.String()
}

// FormatPrice trims precision by magnitude.
func FormatPrice(p float64) string {
	switch {
	case p >= 100:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}

func joinPrices(ps []float64) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = FormatPrice(p)
	}
	return strings.Join(parts, " / ")
}

func formatTimeframes(s models.SubScores) string {
	if len(s.ByTimeframe) == 0 {
		return fmt.Sprintf("total %.1f", s.Technical)
	}
	gs := make([]models.Granularity, 0, len(s.ByTimeframe))
	for g := range s.ByTimeframe {
		gs = append(gs, g)
	}
	// longest first
	sort.Slice(gs, func(i, j int) bool { return gs[i].Duration() > gs[j].Duration() })
	parts := make([]string, 0, len(gs)+1)
	for _, g := range gs {
		parts = append(parts, fmt.Sprintf("%s %.1f", g, s.ByTimeframe[g]))
	}
	parts = append(parts, fmt.Sprintf("total %.1f", s.Technical))
	return strings.Join(parts, " | ")
}

func ratioMarker(r float64) string {
	if r > 2 {
		return "🔴"
	}
	return "⚪️"
}

func pressureMarker(p float64) string {
	switch {
	case p > 1.5:
		return "🔴"
	case p < 0.7:
		return "🔵"
	default:
		return "⚪️"
	}
}
