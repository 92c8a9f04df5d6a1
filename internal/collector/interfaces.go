// Package collector drives a scrape run: it discovers and selects a trading
// pair, plans fetch windows around the stored dataset, pages candles out of
// the OHLCV source, merges them with what is stored and saves the result.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// ErrNoPairs is returned when pair discovery finds nothing on the chain.
var ErrNoPairs = errors.New("no pairs found")

// CollectionError represents errors that end a scrape run.
type CollectionError struct {
	Type      string // "discovery", "storage", "request"
	Operation string // Specific operation that failed
	Token     string // Token address involved
	Err       error  // Underlying error
	Timestamp time.Time
}

// Error implements the error interface for CollectionError.
func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection error [%s:%s] for %s: %v", e.Type, e.Operation, e.Token, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *CollectionError) Unwrap() error {
	return e.Err
}

// NewCollectionError creates a new CollectionError stamped with the current time.
func NewCollectionError(errorType, operation, token string, err error) *CollectionError {
	return &CollectionError{
		Type:      errorType,
		Operation: operation,
		Token:     token,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// IsDiscoveryError reports whether err came from pair discovery.
func IsDiscoveryError(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce) && ce.Type == "discovery"
}

// PairChooser lets a user pick one of the candidate pairs. candidates is the
// displayed head of the sorted list and total the number of pairs found.
// It returns the raw 1-based answer; an empty answer means the first candidate.
type PairChooser interface {
	ChoosePair(ctx context.Context, candidates []models.TradingPair, total int) (string, error)
}

// PairChooserFunc adapts a function to PairChooser.
type PairChooserFunc func(ctx context.Context, candidates []models.TradingPair, total int) (string, error)

// ChoosePair implements PairChooser.
func (f PairChooserFunc) ChoosePair(ctx context.Context, candidates []models.TradingPair, total int) (string, error) {
	return f(ctx, candidates, total)
}

// Config configures the scraper behavior
type Config struct {
	ChainID        string
	DataDir        string
	MaxPairChoices int
	ReportGaps     bool
	InspectCandles bool
	Pager          PagerConfig
	Location       *time.Location
	Logger         *slog.Logger
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		ChainID:        DefaultChainID,
		DataDir:        ".",
		MaxPairChoices: 10,
		ReportGaps:     true,
		InspectCandles: true,
		Pager:          DefaultPagerConfig(),
		Location:       time.Local,
		Logger:         slog.Default(),
	}
}

// ValidateConfig validates a scraper configuration.
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.ChainID == "" {
		return fmt.Errorf("chain id is required")
	}
	if config.MaxPairChoices <= 0 {
		return fmt.Errorf("max pair choices must be positive, got %d", config.MaxPairChoices)
	}
	if config.Pager.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", config.Pager.PageSize)
	}
	if config.Pager.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive, got %d", config.Pager.MaxPages)
	}
	if config.Pager.RateLimitPause <= 0 {
		return fmt.Errorf("rate limit pause must be positive, got %s", config.Pager.RateLimitPause)
	}
	return nil
}
