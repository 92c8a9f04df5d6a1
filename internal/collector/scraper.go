package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/johnayoung/solana-candle-scraper/internal/errors"
	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/gaps"
	"github.com/johnayoung/solana-candle-scraper/internal/logger"
	"github.com/johnayoung/solana-candle-scraper/internal/metrics"
	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/johnayoung/solana-candle-scraper/internal/storage"
	"github.com/johnayoung/solana-candle-scraper/internal/validator"
)

// RunRequest describes one scrape.
type RunRequest struct {
	TokenAddress string

	// Timeframe is the raw code; unknown codes fetch daily candles
	Timeframe string

	// Chooser is consulted when more than one pair is found; nil picks the top pair
	Chooser PairChooser
}

// RunResult summarizes a completed scrape.
type RunResult struct {
	TraceID   string
	Pair      models.TradingPair
	Location  storage.DatasetLocation
	Dataset   *models.Dataset
	Merge     MergeResult
	Windows   []*WindowResult
	Gaps      *gaps.Report
	Anomalies *validator.Report
	Metrics   metrics.Snapshot

	// ErrorStats counts the classified failures the run recovered from
	ErrorStats map[apperrors.ErrorType]apperrors.ErrorStats
}

// Scraper runs the discover, load, fetch, merge and save cycle.
type Scraper struct {
	config    *Config
	pairs     exchange.PairProvider
	source    exchange.CandleSource
	store     storage.DatasetStore
	gaps      *gaps.Detector
	validator *validator.OHLCVValidator
	logger    *slog.Logger
}

// New creates a Scraper. A nil config uses DefaultConfig.
func New(pairs exchange.PairProvider, source exchange.CandleSource, store storage.DatasetStore, config *Config) *Scraper {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Pager.Location == nil {
		config.Pager.Location = config.Location
	}

	return &Scraper{
		config:    config,
		pairs:     pairs,
		source:    source,
		store:     store,
		gaps:      gaps.NewDetector(config.Logger.With("component", "gaps")),
		validator: validator.NewOHLCVValidator(config.Logger.With("component", "validator")),
		logger:    config.Logger,
	}
}

// Run performs one scrape. Fetch failures inside a window only shorten that
// window; discovery failures, save failures and cancellation end the run
// with an error.
func (s *Scraper) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	token := strings.TrimSpace(req.TokenAddress)
	if token == "" {
		return nil, NewCollectionError("request", "validate", token, errors.New("token address is required"))
	}
	tfCode := req.Timeframe
	if tfCode == "" {
		tfCode = "1d"
	}
	tf := models.ParseTimeframe(tfCode)

	ctx = logger.NewRunContext(ctx, token, tfCode)
	log := logger.FromContext(ctx, s.logger)
	if !models.IsKnownTimeframe(tfCode) {
		log.Warn("unknown timeframe, fetching daily candles", "supported", models.SupportedTimeframes())
	}

	runMetrics := metrics.NewRunMetrics()
	classifier := apperrors.NewErrorClassifier(log)
	result := &RunResult{TraceID: logger.GetTraceID(ctx)}

	pair, err := s.discoverPair(ctx, log, classifier, token, req.Chooser)
	if err != nil {
		return nil, err
	}
	result.Pair = pair
	result.Location = storage.DatasetLocation{
		Dir:          s.config.DataDir,
		Symbol:       pair.BaseSymbol,
		TokenAddress: token,
		Timeframe:    tfCode,
	}

	existing := s.loadExisting(ctx, log, classifier, result.Location)
	bounds, hasData := existing.Bounds()

	pager := NewPager(s.source, s.config.Pager, s.logger, runMetrics)
	pager.classifier = classifier
	var future, history []models.Candle
	for _, window := range PlanWindows(bounds, hasData) {
		wr, err := pager.Fetch(ctx, pair.PairAddress, tf, window)
		if wr != nil {
			result.Windows = append(result.Windows, wr)
		}
		if err != nil {
			return nil, err
		}

		if window.Kind == models.WindowHistory {
			history = append(history, wr.Candles...)
		} else {
			future = append(future, wr.Candles...)
		}
	}

	var existingCandles []models.Candle
	if existing != nil {
		existingCandles = existing.Candles
	}
	result.Merge = MergeCandles(existingCandles, future, history)
	log.Info("merged datasets",
		"summary", fmt.Sprintf("%d existing + %d new recent + %d older fetched.",
			result.Merge.Existing, result.Merge.Future, result.Merge.History),
		"added", result.Merge.Added,
		"total", len(result.Merge.Candles))

	if s.config.ReportGaps {
		result.Gaps = s.gaps.Inspect(result.Merge.Candles, tf)
	}
	if s.config.InspectCandles {
		result.Anomalies = s.validator.Inspect(ctx, result.Merge.Candles)
	}

	result.Dataset = models.NewDataset(pair, token, tfCode, result.Merge.Candles)
	err = logger.LogOperation(ctx, s.logger, "save_dataset", func() error {
		return s.store.Save(ctx, result.Location, result.Dataset)
	})
	if err != nil {
		return nil, NewCollectionError("storage", "save", token, err)
	}

	result.Metrics = runMetrics.Snapshot()
	result.ErrorStats = classifier.GetStats()
	attrs := append([]any{
		"path", result.Location.Path(),
		"candles", len(result.Dataset.Candles),
	}, result.Metrics.LogAttrs()...)
	if len(result.ErrorStats) > 0 {
		attrs = append(attrs, "error_stats", result.ErrorStats)
	}
	log.Info("scrape complete", attrs...)
	return result, nil
}

// discoverPair lists pairs for token, keeps those on the configured chain and
// picks one. A chooser is only asked when there is more than one candidate.
func (s *Scraper) discoverPair(ctx context.Context, log *slog.Logger, classifier *apperrors.ErrorClassifier, token string, chooser PairChooser) (models.TradingPair, error) {
	log.Info("finding liquidity pools", "chain", s.config.ChainID)

	all, err := s.pairs.TokenPairs(ctx, token)
	if err != nil {
		classified := classifier.Classify(err, "scraper", "discover_pairs")
		log.Error("pair discovery failed", classified.LogAttrs()...)
		return models.TradingPair{}, NewCollectionError("discovery", "token_pairs", token, err)
	}

	candidates := FilterChain(all, s.config.ChainID)
	if len(candidates) == 0 {
		log.Error("no pairs on chain", "chain", s.config.ChainID, "pairs_seen", len(all))
		return models.TradingPair{}, NewCollectionError("discovery", "filter_chain", token, ErrNoPairs)
	}

	if chooser == nil || len(candidates) == 1 {
		log.Info("auto-selected top pair", "pair_address", candidates[0].PairAddress, "pair", candidates[0].String())
		return candidates[0], nil
	}

	shown := candidates[:min(len(candidates), s.config.MaxPairChoices)]
	choice, err := chooser.ChoosePair(ctx, shown, len(candidates))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.TradingPair{}, ctxErr
		}
		log.Warn("pair choice failed, using top pair", "error", err)
		choice = ""
	}

	pair, ok, err := SelectPair(candidates, choice)
	if err != nil {
		return models.TradingPair{}, NewCollectionError("discovery", "select_pair", token, err)
	}
	if !ok {
		log.Warn("invalid pair selection, using top pair", "choice", choice)
	}
	log.Info("selected pair", "pair_address", pair.PairAddress, "symbol", pair.BaseSymbol)
	return pair, nil
}

// loadExisting returns the stored dataset, or nil when there is none or it
// cannot be read. Unreadable datasets are logged and refetched from scratch.
func (s *Scraper) loadExisting(ctx context.Context, log *slog.Logger, classifier *apperrors.ErrorClassifier, loc storage.DatasetLocation) *models.Dataset {
	ds, err := s.store.Load(ctx, loc)
	switch {
	case errors.Is(err, storage.ErrDatasetNotFound):
		log.Info("no existing dataset", "path", loc.Path())
		return nil
	case err != nil:
		classified := classifier.Classify(err, "scraper", "load_dataset")
		log.Warn("error reading dataset, starting fresh", append(classified.LogAttrs(), "path", loc.Path())...)
		return nil
	}

	if bounds, ok := ds.Bounds(); ok {
		log.Info("found existing dataset",
			"path", loc.Path(),
			"candles", len(ds.Candles),
			"range_start", models.FormatTimestamp(bounds.Min, s.config.Location),
			"range_end", models.FormatTimestamp(bounds.Max, s.config.Location))
	}
	return ds
}
