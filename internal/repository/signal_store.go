package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/domain/repository"
	pkgch "MarketWatch/pkg/clickhouse"
)

const signalColumns = "id, symbol, category, score, risk, price, trend, reasons, technical, sr, volume, pattern, vol_ratio, pressure, created_at"

// SignalSchema returns the DDL for the signal history table.
func SignalSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	id String,
	symbol LowCardinality(String),
	category LowCardinality(String),
	score Float64,
	risk LowCardinality(String),
	price Float64,
	trend LowCardinality(String),
	reasons Array(String),
	technical Float64,
	sr Float64,
	volume Float64,
	pattern Float64,
	vol_ratio Float64,
	pressure Float64,
	created_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (symbol, created_at, id)`, database, table),
	}
}

// ClickHouseSignalStore implements SignalStore for ClickHouse.
type ClickHouseSignalStore struct {
	client   *pkgch.Client
	database string
	table    string
}

// NewClickHouseSignalStore stores signals in database.table.
func NewClickHouseSignalStore(client *pkgch.Client, database, table string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{client: client, database: database, table: table}
}

var _ repository.SignalStore = (*ClickHouseSignalStore)(nil)

func (s *ClickHouseSignalStore) fqtn() string { return s.database + "." + s.table }

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, SignalSchema(s.database, s.table))
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig models.Signal) error {
	return s.StoreBatch(ctx, []models.Signal{sig})
}

// StoreBatch writes signals as one block. ReplacingMergeTree collapses
// redeliveries that share an id.
func (s *ClickHouseSignalStore) StoreBatch(ctx context.Context, signals []models.Signal) error {
	rows := make([][]any, 0, len(signals))
	for _, sig := range signals {
		if sig.ID == "" || sig.Symbol == "" {
			continue
		}
		rows = append(rows, signalRow(sig))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s)", s.fqtn(), signalColumns)
	if err := s.client.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("store signals: %w", err)
	}
	return nil
}

func signalRow(sig models.Signal) []any {
	reasons := sig.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return []any{
		sig.ID,
		sig.Symbol,
		string(sig.Category),
		sig.Score,
		string(sig.Risk),
		sig.Price,
		string(sig.Trend),
		reasons,
		sig.Scores.Technical,
		sig.Scores.SupportResistance,
		sig.Scores.Volume,
		sig.Scores.Pattern,
		sig.Volume.Ratio,
		sig.Volume.Pressure,
		sig.CreatedAt.UTC(),
	}
}

// buildQuery returns the history query; an empty symbol matches all symbols.
func buildQuery(table, symbol string, from, to time.Time, limit int) (string, []any) {
	where := []string{"created_at >= ?", "created_at <= ?"}
	args := []any{from.UTC(), to.UTC()}
	if symbol != "" {
		where = append([]string{"symbol = ?"}, where...)
		args = append([]any{models.NormalizeSymbol(symbol)}, args...)
	}
	args = append(args, limit)
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE %s ORDER BY created_at DESC LIMIT ?",
		signalColumns, table, strings.Join(where, " AND "))
	return q, args
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Signal, error) {
	q, args := buildQuery(s.fqtn(), symbol, from, to, limit)
	rows, err := s.client.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var (
			sig                   models.Signal
			category, risk, trend string
		)
		if err := rows.Scan(
			&sig.ID, &sig.Symbol, &category, &sig.Score, &risk, &sig.Price, &trend, &sig.Reasons,
			&sig.Scores.Technical, &sig.Scores.SupportResistance, &sig.Scores.Volume, &sig.Scores.Pattern,
			&sig.Volume.Ratio, &sig.Volume.Pressure, &sig.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Category = models.Category(category)
		sig.Risk = models.RiskLevel(risk)
		sig.Trend = models.TrendAlignment(trend)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the client is owned by DI.
func (s *ClickHouseSignalStore) Close() error { return nil }
