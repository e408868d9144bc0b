package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	pkgch "FinChart/pkg/clickhouse"
	applogger "FinChart/pkg/logger"
)

// CHCandleStore implements CandleSource backed by ClickHouse tables
// <database>.candles_<timeframe>.
type CHCandleStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), database: database, l: l}
}

// Schema returns the DDL for the database and one table per timeframe.
func (s *CHCandleStore) Schema() []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)}
	for _, tf := range domrepo.Timeframes() {
		stmts = append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            bucket DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, bucket)`, s.table(tf)))
	}
	return stmts
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	out, err := s.query(ctx, "get_candles", table, symbol, tf, fmt.Sprintf(qtpl, table), symbol, from, to)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	out, err := s.query(ctx, "latest_candles", table, symbol, tf, fmt.Sprintf(qtpl, table), symbol, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHCandleStore) query(ctx context.Context, op, table, symbol string, tf domrepo.Timeframe, q string, args ...any) ([]models.Candle, error) {
	start := time.Now()
	fail := func(stage string, err error) ([]models.Candle, error) {
		s.l.Error("clickhouse "+op+" "+stage+" error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", op, stage, err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 128)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.OpenTime, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return fail("scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return fail("rows", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %s@%s: %w", op, symbol, tf, domrepo.ErrNoCandles)
	}

	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHCandleStore) table(tf domrepo.Timeframe) string {
	return fmt.Sprintf("%s.candles_%s", s.database, tf)
}

func (s *CHCandleStore) tableFor(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return s.table(tf), nil
}
