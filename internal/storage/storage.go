// Package storage defines the dataset persistence layer for scraped candles.
// A dataset is addressed by an explicit DatasetLocation and persisted as a
// whole. JSON files are the primary backend; an in-memory store serves tests
// and dry runs, and a DuckDB mirror can copy saved candles into a table.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// ErrDatasetNotFound is returned by Load when no dataset exists at a location.
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetStore loads and saves complete datasets.
type DatasetStore interface {
	// Load returns the dataset stored at loc, or ErrDatasetNotFound.
	// Candles come back normalized, in stored order.
	Load(ctx context.Context, loc DatasetLocation) (*models.Dataset, error)

	// Save replaces whatever is stored at loc with ds. The store recomputes
	// ds.Meta.TotalCandles and ds.Meta.LastUpdated before writing.
	Save(ctx context.Context, loc DatasetLocation, ds *models.Dataset) error
}

// DatasetLocation identifies one (token, timeframe) dataset.
type DatasetLocation struct {
	// Dir is the directory holding dataset files
	Dir string

	// Symbol is the base-token symbol; it is sanitized for the filename
	Symbol string

	// TokenAddress is the token mint address
	TokenAddress string

	// Timeframe is the raw timeframe code, e.g. "1h"
	Timeframe string
}

// FileName returns "{symbol}_{token}_{timeframe}.json" with the symbol
// reduced to letters, digits, '_' and '-'.
func (l DatasetLocation) FileName() string {
	return fmt.Sprintf("%s_%s_%s.json", SanitizeSymbol(l.Symbol), l.TokenAddress, l.Timeframe)
}

// Path joins Dir and FileName.
func (l DatasetLocation) Path() string {
	return filepath.Join(l.Dir, l.FileName())
}

// Key identifies the dataset independent of Dir.
func (l DatasetLocation) Key() string {
	return l.TokenAddress + "/" + l.Timeframe
}

// SanitizeSymbol keeps letters, digits, '_' and '-'.
func SanitizeSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, symbol)
}

// StorageStats summarizes what a store currently holds.
type StorageStats struct {
	// TotalDatasets is the number of distinct (token, timeframe) datasets
	TotalDatasets int

	// TotalCandles is the number of candles across all datasets
	TotalCandles int64

	// EarliestData is the timestamp of the oldest candle
	EarliestData time.Time

	// LatestData is the timestamp of the newest candle
	LatestData time.Time
}

// StorageError represents errors that occur during storage operations.
type StorageError struct {
	// Operation is the storage operation that failed (e.g., "load", "save")
	Operation string

	// Target is the file or table involved in the operation
	Target string

	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for StorageError.
func (e *StorageError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("storage operation %s on %s failed: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the provided details.
func NewStorageError(operation, target string, err error) *StorageError {
	return &StorageError{Operation: operation, Target: target, Err: err}
}

// NewLoadError creates a StorageError for read operations.
func NewLoadError(target string, err error) *StorageError {
	return &StorageError{Operation: "load", Target: target, Err: err}
}

// NewSaveError creates a StorageError for write operations.
func NewSaveError(target string, err error) *StorageError {
	return &StorageError{Operation: "save", Target: target, Err: err}
}

// prepareDataset refreshes derived metadata and checks ordering before a save.
func prepareDataset(ds *models.Dataset, now time.Time, loc *time.Location) error {
	if ds == nil {
		return errors.New("dataset is nil")
	}
	if err := ds.CheckOrder(); err != nil {
		return err
	}
	ds.Refresh(now, loc)
	return nil
}

// cloneDataset copies ds so callers cannot mutate stored state.
func cloneDataset(ds *models.Dataset) *models.Dataset {
	out := &models.Dataset{Meta: ds.Meta, Candles: make([]models.Candle, len(ds.Candles))}
	copy(out.Candles, ds.Candles)
	return out
}
