package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/marcboeker/go-duckdb/v2"
)

const candlesTable = "candles"

// DuckDBMirror wraps a primary DatasetStore and copies every saved dataset
// into a DuckDB table for ad-hoc queries. Loads always come from the primary.
// A failed mirror write is logged and does not fail the save.
type DuckDBMirror struct {
	primary DatasetStore
	db      *sql.DB
	dbPath  string
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewDuckDBMirror opens dbPath (":memory:" is allowed) and creates the
// candles table if needed.
func NewDuckDBMirror(ctx context.Context, primary DatasetStore, dbPath string, logger *slog.Logger) (*DuckDBMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, NewStorageError("open", dbPath, fmt.Errorf("failed to open DuckDB database: %w", err))
	}

	// DuckDB allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	m := &DuckDBMirror{primary: primary, db: db, dbPath: dbPath, logger: logger}
	if err := m.createCandlesTable(ctx); err != nil {
		db.Close()
		return nil, NewStorageError("initialize", candlesTable, err)
	}

	logger.Info("DuckDB mirror initialized", "db_path", dbPath)
	return m, nil
}

func (m *DuckDBMirror) createCandlesTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS candles (
			token_address VARCHAR NOT NULL,
			pair_address VARCHAR NOT NULL,
			timeframe VARCHAR NOT NULL,
			timestamp BIGINT NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (token_address, timeframe, timestamp)
		)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create candles table: %w", err)
	}
	return nil
}

// Load implements DatasetStore.Load by delegating to the primary store.
func (m *DuckDBMirror) Load(ctx context.Context, loc DatasetLocation) (*models.Dataset, error) {
	return m.primary.Load(ctx, loc)
}

// Save implements DatasetStore.Save. The primary write decides the result.
func (m *DuckDBMirror) Save(ctx context.Context, loc DatasetLocation, ds *models.Dataset) error {
	if err := m.primary.Save(ctx, loc, ds); err != nil {
		return err
	}

	if err := m.replace(ctx, loc, ds); err != nil {
		m.logger.Warn("failed to mirror dataset to DuckDB",
			"key", loc.Key(),
			"db_path", m.dbPath,
			"error", err)
	}
	return nil
}

// replace swaps the mirrored rows for (token, timeframe) with ds.Candles in
// one transaction. The appender writes through the same connection, so the
// transaction is driven with explicit statements rather than sql.Tx.
func (m *DuckDBMirror) replace(ctx context.Context, loc DatasetLocation, ds *models.Dataset) (err error) {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return NewSaveError(candlesTable, fmt.Errorf("database connection is closed"))
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to get connection: %w", err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if _, rbErr := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
				m.logger.Warn("failed to roll back DuckDB mirror", "key", loc.Key(), "error", rbErr)
			}
		}
	}()

	if _, err := conn.ExecContext(ctx,
		"DELETE FROM candles WHERE token_address = ? AND timeframe = ?",
		loc.TokenAddress, loc.Timeframe); err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to clear previous rows: %w", err))
	}

	if len(ds.Candles) > 0 {
		if err := m.appendCandles(conn, loc, ds); err != nil {
			return err
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to commit: %w", err))
	}

	m.logger.Debug("mirrored dataset",
		"key", loc.Key(),
		"count", len(ds.Candles),
		"duration", time.Since(start))
	return nil
}

// appendCandles bulk-inserts ds.Candles through conn. Closing the appender
// flushes it, so rows are visible to the open transaction on return.
func (m *DuckDBMirror) appendCandles(conn *sql.Conn, loc DatasetLocation, ds *models.Dataset) (err error) {
	var driverConn *duckdb.Conn
	err = conn.Raw(func(dc interface{}) error {
		var ok bool
		driverConn, ok = dc.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("underlying connection is not a DuckDB connection")
		}
		return nil
	})
	if err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to get DuckDB connection: %w", err))
	}

	appender, err := duckdb.NewAppenderFromConn(driverConn, "", candlesTable)
	if err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to create appender: %w", err))
	}
	defer func() {
		if closeErr := appender.Close(); closeErr != nil && err == nil {
			err = NewSaveError(candlesTable, fmt.Errorf("failed to close appender: %w", closeErr))
		}
	}()

	updatedAt := time.Now().UTC()
	for _, c := range ds.Candles {
		if err := appender.AppendRow(
			loc.TokenAddress,
			ds.Meta.PairAddress,
			loc.Timeframe,
			c.Timestamp,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			updatedAt,
		); err != nil {
			return NewSaveError(candlesTable, fmt.Errorf("failed to append candle %d: %w", c.Timestamp, err))
		}
	}

	if err := appender.Flush(); err != nil {
		return NewSaveError(candlesTable, fmt.Errorf("failed to flush appender: %w", err))
	}
	return nil
}

// Candles returns the mirrored candles for (token, timeframe) in ascending
// timestamp order. DateReadable is rendered in tz.
func (m *DuckDBMirror) Candles(ctx context.Context, tokenAddress, timeframe string, tz *time.Location) ([]models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.db == nil {
		return nil, NewStorageError("query", candlesTable, fmt.Errorf("database connection is closed"))
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE token_address = ? AND timeframe = ?
		ORDER BY timestamp ASC`, tokenAddress, timeframe)
	if err != nil {
		return nil, NewStorageError("query", candlesTable, err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var (
			ts                  int64
			o, h, l, cl, volume float64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &cl, &volume); err != nil {
			return nil, NewStorageError("scan", candlesTable, err)
		}
		candles = append(candles, models.NewCandle(ts, o, h, l, cl, volume, tz))
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("query", candlesTable, err)
	}
	return candles, nil
}

// Stats reports totals across the mirrored table.
func (m *DuckDBMirror) Stats(ctx context.Context) (StorageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats StorageStats
	if m.db == nil {
		return stats, NewStorageError("stats", candlesTable, fmt.Errorf("database connection is closed"))
	}

	var minTS, maxTS sql.NullInt64
	err := m.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT token_address || '/' || timeframe),
			COUNT(*),
			MIN(timestamp),
			MAX(timestamp)
		FROM candles`).Scan(&stats.TotalDatasets, &stats.TotalCandles, &minTS, &maxTS)
	if err != nil {
		return stats, NewStorageError("stats", candlesTable, err)
	}

	if minTS.Valid {
		stats.EarliestData = time.Unix(minTS.Int64, 0).UTC()
	}
	if maxTS.Valid {
		stats.LatestData = time.Unix(maxTS.Int64, 0).UTC()
	}
	return stats, nil
}

// Close releases the DuckDB handle. The primary store is not closed.
func (m *DuckDBMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return NewStorageError("close", m.dbPath, err)
	}
	return nil
}
