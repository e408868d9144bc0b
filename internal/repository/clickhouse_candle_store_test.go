package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	domrepo "FinChart/internal/domain/repository"
	pkgch "FinChart/pkg/clickhouse"
	applogger "FinChart/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*CHCandleStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCHCandleStore(pkgch.NewClientFromDB(db), "finchart", applogger.Nop()), mock
}

var candleColumns = []string{"bucket", "symbol", "open", "high", "low", "close", "volume"}

func TestCHCandleStoreLatestIsAscending(t *testing.T) {
	store, mock := newMockStore(t)
	t0 := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM finchart\.candles_1h FINAL\s+WHERE symbol = \?\s+ORDER BY bucket DESC`).
		WithArgs("EURUSD", 2).
		WillReturnRows(sqlmock.NewRows(candleColumns).
			AddRow(t0.Add(time.Hour), "EURUSD", 1.1005, 1.1012, 1.1001, 1.1010, 900.0).
			AddRow(t0, "EURUSD", 1.1000, 1.1010, 1.0990, 1.1005, 1200.0))

	out, err := store.GetLatestNCandles(context.Background(), "EURUSD", 2, domrepo.TF1h)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, t0, out[0].OpenTime)
	assert.Equal(t, 1.1005, out[0].Close)
	assert.Equal(t, 1.1010, out[1].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHCandleStoreRange(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(`FROM finchart\.candles_15m FINAL\s+WHERE symbol = \? AND bucket >= \? AND bucket <= \?`).
		WithArgs("GBPUSD", from, to).
		WillReturnRows(sqlmock.NewRows(candleColumns).AddRow(from, "GBPUSD", 1.27, 1.28, 1.26, 1.275, 10.0))

	out, err := store.GetCandles(context.Background(), "GBPUSD", from, to, domrepo.TF15m)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCHCandleStoreErrors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	_, err := store.GetLatestNCandles(ctx, "EURUSD", 10, "2h")
	assert.ErrorContains(t, err, "unsupported timeframe")

	mock.ExpectQuery("candles_1d").WillReturnRows(sqlmock.NewRows(candleColumns))
	_, err = store.GetLatestNCandles(ctx, "EURUSD", 10, domrepo.TF1d)
	assert.ErrorIs(t, err, domrepo.ErrNoCandles)

	mock.ExpectQuery("candles_1m").WillReturnError(errors.New("connection reset"))
	_, err = store.GetLatestNCandles(ctx, "EURUSD", 10, domrepo.TF1m)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCHCandleStoreSchema(t *testing.T) {
	store, _ := newMockStore(t)
	stmts := store.Schema()

	require.Len(t, stmts, 1+len(domrepo.Timeframes()))
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS finchart")
	assert.Contains(t, stmts[5], "finchart.candles_1h")
}
