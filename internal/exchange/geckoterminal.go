package exchange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// GeckoTerminal public API base URL
	geckoTerminalBaseURL = "https://api.geckoterminal.com/api/v2"

	// OHLCV endpoint: network, pool address, resolution
	ohlcvEndpoint = "/networks/%s/pools/%s/ohlcv/%s"

	// Path of the candle list inside the response document
	ohlcvListPath = "data.attributes.ohlcv_list"

	defaultNetwork  = "solana"
	defaultPageSize = 1000

	// The public API allows roughly 30 calls per minute
	defaultThrottle = 2100 * time.Millisecond

	requestTimeout   = 30 * time.Second
	defaultUserAgent = "solana-candle-scraper/1.0"
)

// GeckoTerminalConfig configures a GeckoTerminalClient. Zero values fall back
// to the public API defaults, except Throttle where zero disables throttling.
// A positive Throttle is waited in full before every request.
type GeckoTerminalConfig struct {
	BaseURL   string
	Network   string
	PageSize  int
	Throttle  time.Duration
	Timeout   time.Duration
	UserAgent string

	// Location renders candle dates; nil means time.Local
	Location *time.Location
}

// DefaultGeckoTerminalConfig returns the settings used against the public API.
func DefaultGeckoTerminalConfig() GeckoTerminalConfig {
	return GeckoTerminalConfig{
		BaseURL:   geckoTerminalBaseURL,
		Network:   defaultNetwork,
		PageSize:  defaultPageSize,
		Throttle:  defaultThrottle,
		Timeout:   requestTimeout,
		UserAgent: defaultUserAgent,
	}
}

// GeckoTerminalClient implements CandleSource for the GeckoTerminal pool OHLCV API.
type GeckoTerminalClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	throttle    time.Duration
	baseURL     string
	network     string
	pageSize    int
	userAgent   string
	loc         *time.Location
	logger      *slog.Logger

	// sleep waits out the fixed throttle; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGeckoTerminalClient creates a client. Every request first sleeps for
// cfg.Throttle and then waits on a limiter that caps the call rate at one per
// cfg.Throttle.
func NewGeckoTerminalClient(cfg GeckoTerminalConfig, logger *slog.Logger) *GeckoTerminalClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geckoTerminalBaseURL
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = requestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}

	return &GeckoTerminalClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(limit, 1),
		throttle:    cfg.Throttle,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		network:     cfg.Network,
		pageSize:    cfg.PageSize,
		userAgent:   cfg.UserAgent,
		loc:         cfg.Location,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// FetchPage implements the CandleSource interface.
func (g *GeckoTerminalClient) FetchPage(ctx context.Context, req OHLCVRequest) (*OHLCVPage, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if g.throttle > 0 {
		if err := g.sleep(ctx, g.throttle); err != nil {
			return nil, fmt.Errorf("throttle wait failed: %w", err)
		}
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait failed: %w", err)
	}

	requestURL := g.pageURL(req)
	g.logger.Debug("fetching ohlcv page",
		"pair", req.PairAddress,
		"timeframe", req.Timeframe.Code,
		"before", formatCursor(req.Before))

	body, err := g.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(body, ohlcvListPath)
	if !list.Exists() {
		// A missing list is treated like an empty page
		return &OHLCVPage{Candles: []models.Candle{}, FetchedAt: time.Now()}, nil
	}

	candles, err := models.NormalizeArray(list, g.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ohlcv page: %w", err)
	}

	return &OHLCVPage{Candles: candles, FetchedAt: time.Now()}, nil
}

// pageURL builds the request URL for one page.
func (g *GeckoTerminalClient) pageURL(req OHLCVRequest) string {
	limit := req.Limit
	if limit == 0 {
		limit = g.pageSize
	}

	params := url.Values{}
	params.Set("aggregate", strconv.Itoa(req.Timeframe.Aggregate))
	params.Set("limit", strconv.Itoa(limit))
	if req.Before != nil {
		params.Set("before_timestamp", strconv.FormatInt(*req.Before, 10))
	}

	path := fmt.Sprintf(ohlcvEndpoint,
		url.PathEscape(g.network),
		url.PathEscape(req.PairAddress),
		url.PathEscape(string(req.Timeframe.Resolution)))

	return g.baseURL + path + "?" + params.Encode()
}

// get performs one GET and returns the body of a 200 response.
func (g *GeckoTerminalClient) get(ctx context.Context, requestURL string) ([]byte, error) {
	return doGet(ctx, g.httpClient, requestURL, g.userAgent)
}

// doGet is shared by the upstream clients: it issues a JSON GET and maps
// non-200 statuses to *HTTPStatusError.
func doGet(ctx context.Context, client *http.Client, requestURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        requestURL,
			Body:       truncateBody(body),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse response from %s: invalid JSON", requestURL)
	}

	return body, nil
}

func formatCursor(ts *int64) string {
	if ts == nil {
		return "now"
	}
	return strconv.FormatInt(*ts, 10)
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
