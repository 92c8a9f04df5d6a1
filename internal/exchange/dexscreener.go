package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/tidwall/gjson"
)

const (
	// DexScreener public API base URL
	dexScreenerBaseURL = "https://api.dexscreener.com"

	// Token pairs endpoint
	tokenPairsEndpoint = "/latest/dex/tokens/%s"
)

// DexScreenerClient implements PairProvider for the DexScreener token API.
type DexScreenerClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

// NewDexScreenerClient creates a client for baseURL; an empty baseURL uses
// the public API.
func NewDexScreenerClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DexScreenerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = dexScreenerBaseURL
	}
	if timeout <= 0 {
		timeout = requestTimeout
	}

	return &DexScreenerClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// TokenPairs implements the PairProvider interface. A response without a
// pairs list yields an empty slice.
func (d *DexScreenerClient) TokenPairs(ctx context.Context, tokenAddress string) ([]models.TradingPair, error) {
	if strings.TrimSpace(tokenAddress) == "" {
		return nil, &ValidationError{Field: "token_address", Message: "token address cannot be empty"}
	}

	requestURL := d.baseURL + fmt.Sprintf(tokenPairsEndpoint, url.PathEscape(tokenAddress))
	d.logger.Debug("fetching token pairs", "token", tokenAddress)

	body, err := doGet(ctx, d.httpClient, requestURL, d.userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pairs for %s: %w", tokenAddress, err)
	}

	raw := gjson.GetBytes(body, "pairs")
	if !raw.IsArray() {
		return []models.TradingPair{}, nil
	}

	pairs := make([]models.TradingPair, 0, len(raw.Array()))
	raw.ForEach(func(_, p gjson.Result) bool {
		pairs = append(pairs, convertPair(p))
		return true
	})

	d.logger.Debug("token pairs fetched", "token", tokenAddress, "count", len(pairs))
	return pairs, nil
}

// convertPair maps one DexScreener pair object. Missing names become
// models.UnknownName and missing liquidity becomes zero.
func convertPair(p gjson.Result) models.TradingPair {
	return models.TradingPair{
		ChainID:      p.Get("chainId").String(),
		DexID:        p.Get("dexId").String(),
		PairAddress:  p.Get("pairAddress").String(),
		BaseName:     stringOr(p.Get("baseToken.name"), models.UnknownName),
		BaseSymbol:   stringOr(p.Get("baseToken.symbol"), models.UnknownName),
		BaseAddress:  p.Get("baseToken.address").String(),
		QuoteSymbol:  p.Get("quoteToken.symbol").String(),
		LiquidityUSD: p.Get("liquidity.usd").Float(),
	}
}

func stringOr(r gjson.Result, fallback string) string {
	if r.Type == gjson.String && r.Str != "" {
		return r.Str
	}
	return fallback
}
