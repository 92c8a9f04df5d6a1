package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/storage"
)

// ScraperBuilder provides a builder pattern for creating scrapers
type ScraperBuilder struct {
	pairs  exchange.PairProvider
	source exchange.CandleSource
	store  storage.DatasetStore
	config *Config
	logger *slog.Logger
}

// NewBuilder creates a new scraper builder
func NewBuilder() *ScraperBuilder {
	return &ScraperBuilder{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
}

// WithPairProvider sets the pair discovery client
func (b *ScraperBuilder) WithPairProvider(pairs exchange.PairProvider) *ScraperBuilder {
	b.pairs = pairs
	return b
}

// WithCandleSource sets the OHLCV client
func (b *ScraperBuilder) WithCandleSource(source exchange.CandleSource) *ScraperBuilder {
	b.source = source
	return b
}

// WithStore sets the dataset store
func (b *ScraperBuilder) WithStore(store storage.DatasetStore) *ScraperBuilder {
	b.store = store
	return b
}

// WithConfig sets the configuration
func (b *ScraperBuilder) WithConfig(config *Config) *ScraperBuilder {
	if config != nil {
		b.config = config
	}
	return b
}

// WithLogger sets the logger
func (b *ScraperBuilder) WithLogger(logger *slog.Logger) *ScraperBuilder {
	b.logger = logger
	return b
}

// WithDataDir sets the directory datasets are written to
func (b *ScraperBuilder) WithDataDir(dir string) *ScraperBuilder {
	b.config.DataDir = dir
	return b
}

// WithChainID sets the chain discovered pairs are filtered to
func (b *ScraperBuilder) WithChainID(chainID string) *ScraperBuilder {
	b.config.ChainID = chainID
	return b
}

// WithMaxPages sets the page cap per window
func (b *ScraperBuilder) WithMaxPages(pages int) *ScraperBuilder {
	b.config.Pager.MaxPages = pages
	return b
}

// WithPageSize sets the candles requested per page
func (b *ScraperBuilder) WithPageSize(size int) *ScraperBuilder {
	b.config.Pager.PageSize = size
	return b
}

// WithRateLimitPause sets the wait after an HTTP 429
func (b *ScraperBuilder) WithRateLimitPause(pause time.Duration) *ScraperBuilder {
	b.config.Pager.RateLimitPause = pause
	return b
}

// WithLocation sets the zone used for readable dates
func (b *ScraperBuilder) WithLocation(loc *time.Location) *ScraperBuilder {
	b.config.Location = loc
	b.config.Pager.Location = loc
	return b
}

// WithReports enables or disables the gap and candle reports
func (b *ScraperBuilder) WithReports(gaps, candles bool) *ScraperBuilder {
	b.config.ReportGaps = gaps
	b.config.InspectCandles = candles
	return b
}

// Build creates the scraper with the configured options
func (b *ScraperBuilder) Build() (*Scraper, error) {
	if b.pairs == nil {
		return nil, fmt.Errorf("pair provider is required")
	}
	if b.source == nil {
		return nil, fmt.Errorf("candle source is required")
	}
	if b.store == nil {
		return nil, fmt.Errorf("dataset store is required")
	}

	if b.logger != nil {
		b.config.Logger = b.logger
	}

	if err := ValidateConfig(b.config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return New(b.pairs, b.source, b.store, b.config), nil
}
