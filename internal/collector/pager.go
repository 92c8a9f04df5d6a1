package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/johnayoung/solana-candle-scraper/internal/errors"
	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/logger"
	"github.com/johnayoung/solana-candle-scraper/internal/metrics"
	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

const (
	// DefaultPageSize is the number of candles requested per page
	DefaultPageSize = 1000

	// DefaultMaxPages bounds the successful pages fetched for one window
	DefaultMaxPages = 50

	// DefaultRateLimitPause is the fixed wait after an HTTP 429
	DefaultRateLimitPause = 10 * time.Second
)

// PagerState is the state of the pagination state machine.
type PagerState string

const (
	StateFetching          PagerState = "fetching"
	StateBackoff           PagerState = "backoff"
	StateStoppedOverlap    PagerState = "stopped-overlap"
	StateStoppedEmpty      PagerState = "stopped-empty"
	StateStoppedCap        PagerState = "stopped-cap"
	StateStoppedNoProgress PagerState = "stopped-no-progress"
	StateStoppedError      PagerState = "stopped-error"
	StateStoppedCancelled  PagerState = "stopped-cancelled"
)

// Terminal reports whether the pager stops in this state.
func (s PagerState) Terminal() bool {
	return s != StateFetching && s != StateBackoff
}

// PagerConfig configures pagination limits.
type PagerConfig struct {
	PageSize       int
	MaxPages       int
	RateLimitPause time.Duration

	// Location renders page ranges in progress logs
	Location *time.Location
}

// DefaultPagerConfig returns a page size of 1000, a cap of 50 pages and a
// 10 second pause on rate limiting.
func DefaultPagerConfig() PagerConfig {
	return PagerConfig{
		PageSize:       DefaultPageSize,
		MaxPages:       DefaultMaxPages,
		RateLimitPause: DefaultRateLimitPause,
		Location:       time.Local,
	}
}

// WindowResult is the outcome of one fetch window.
type WindowResult struct {
	Window models.FetchWindow

	// Candles are kept in arrival order: newest page first, upstream order within a page
	Candles []models.Candle

	State         PagerState
	Pages         int
	Requests      int
	RateLimitHits int
	Overlapped    bool

	// Err is the failure that moved the pager to stopped-error or stopped-cancelled
	Err error
}

// Pager walks a cursor backward through a CandleSource for one window.
type Pager struct {
	source     exchange.CandleSource
	config     PagerConfig
	logger     *slog.Logger
	classifier *apperrors.ErrorClassifier
	metrics    *metrics.RunMetrics

	// sleep waits out a rate-limit pause; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPager creates a pager. Zero config fields take the defaults.
func NewPager(source exchange.CandleSource, cfg PagerConfig, log *slog.Logger, runMetrics *metrics.RunMetrics) *Pager {
	if log == nil {
		log = slog.Default()
	}
	defaults := DefaultPagerConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.RateLimitPause <= 0 {
		cfg.RateLimitPause = defaults.RateLimitPause
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}
	if runMetrics == nil {
		runMetrics = metrics.NewRunMetrics()
	}

	return &Pager{
		source:     source,
		config:     cfg,
		logger:     log,
		classifier: apperrors.NewErrorClassifier(log),
		metrics:    runMetrics,
		sleep:      sleepContext,
	}
}

// Fetch runs one window to completion and returns the candles it gathered.
// Upstream failures end the window early and are recorded in the result;
// the returned error is non-nil only when ctx is cancelled, in which case
// the partial result is returned alongside it.
func (p *Pager) Fetch(ctx context.Context, pairAddress string, tf models.Timeframe, window models.FetchWindow) (*WindowResult, error) {
	ctx = logger.WithWindow(ctx, string(window.Kind))
	log := logger.FromContext(ctx, p.logger)

	result := &WindowResult{
		Window: window,
		State:  StateFetching,
	}

	cursor := window.Cursor

	log.Info("fetching window", "window", window.String(), "pair_address", pairAddress)

	for !result.State.Terminal() {
		req := exchange.OHLCVRequest{
			PairAddress: pairAddress,
			Timeframe:   tf,
			Before:      cursor,
			Limit:       p.config.PageSize,
		}

		page, err := p.fetchPage(ctx, log, result, req)
		if err != nil {
			if ctx.Err() != nil {
				return p.cancel(ctx, result, ctx.Err())
			}

			classified := p.classifier.Classify(err, "pager", "fetch_page")
			p.metrics.RecordError(string(classified.Type))
			log.Warn("window ended by fetch error", append(classified.LogAttrs(), "page", result.Pages+1)...)
			result.Err = err
			result.State = StateStoppedError
			break
		}

		result.State = p.accept(log, result, window, page, &cursor)
	}

	p.metrics.RecordWindowStop(string(window.Kind), string(result.State))
	log.Info("window finished",
		"state", result.State,
		"pages", result.Pages,
		"candles", len(result.Candles),
		"rate_limit_hits", result.RateLimitHits)
	return result, nil
}

// accept applies one successful page to result and returns the next state.
// cursor is moved to the oldest timestamp of the unfiltered page.
func (p *Pager) accept(log *slog.Logger, result *WindowResult, window models.FetchWindow, page *exchange.OHLCVPage, cursor **int64) PagerState {
	raw := page.Candles
	result.Pages++

	kept := raw
	overlap := false
	if window.StopAt != nil {
		kept = make([]models.Candle, 0, len(raw))
		for _, c := range raw {
			if c.Timestamp <= *window.StopAt {
				overlap = true
				continue
			}
			kept = append(kept, c)
		}
	}
	result.Candles = append(result.Candles, kept...)
	result.Overlapped = result.Overlapped || overlap
	p.metrics.RecordPage(string(window.Kind), len(kept))

	if bounds, ok := models.CandleBounds(raw); ok {
		log.Info("page fetched",
			"page", result.Pages,
			"new_candles", len(kept),
			"range_start", models.FormatTimestamp(bounds.Min, p.config.Location),
			"range_end", models.FormatTimestamp(bounds.Max, p.config.Location))
	}

	if overlap && window.LimitStop {
		return StateStoppedOverlap
	}
	if len(raw) == 0 {
		return StateStoppedEmpty
	}

	oldest, _ := page.Oldest()
	if *cursor != nil && **cursor == oldest {
		log.Debug("cursor did not move", "cursor", oldest)
		return StateStoppedNoProgress
	}
	*cursor = &oldest

	if result.Pages >= p.config.MaxPages {
		log.Info("page cap reached", "max_pages", p.config.MaxPages)
		return StateStoppedCap
	}
	return StateFetching
}

// fetchPage requests one page, pausing and retrying the same request for as
// long as the source answers HTTP 429. Any other failure is returned as is.
func (p *Pager) fetchPage(ctx context.Context, log *slog.Logger, result *WindowResult, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
	operation := func() (*exchange.OHLCVPage, error) {
		result.State = StateFetching

		start := time.Now()
		page, err := p.source.FetchPage(ctx, req)
		result.Requests++
		p.metrics.RecordRequest(time.Since(start))

		switch {
		case err == nil:
			return page, nil
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		case exchange.IsRateLimited(err):
			result.RateLimitHits++
			p.metrics.RecordRateLimitHit()
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		result.State = StateBackoff
		log.Warn("rate limited, pausing", "pause", wait, "page", result.Pages+1)
	}

	pause := backoff.WithContext(backoff.NewConstantBackOff(p.config.RateLimitPause), ctx)
	return backoff.RetryNotifyWithTimerAndData(operation, pause, notify, &sleepTimer{ctx: ctx, sleep: p.sleep})
}

func (p *Pager) cancel(ctx context.Context, result *WindowResult, err error) (*WindowResult, error) {
	if err == nil {
		err = context.Canceled
	}
	result.State = StateStoppedCancelled
	result.Err = err
	logger.FromContext(ctx, p.logger).Warn("window cancelled",
		"pages", result.Pages,
		"candles", len(result.Candles))
	return result, fmt.Errorf("fetch %s window: %w", result.Window.Kind, err)
}

// sleepTimer is a backoff.Timer that waits through sleep. It fires only when
// the wait completed; a cancelled wait leaves the retry loop to observe ctx.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
