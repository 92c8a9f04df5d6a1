// Package exchange defines the upstream market-data clients used by the scraper.
//
// Two small interfaces cover the two upstreams: CandleSource returns one page
// of OHLCV candles for a pool, and PairProvider lists candidate pools for a
// token. Implementations talk HTTP, normalize payloads into internal models
// and report non-success statuses as *HTTPStatusError.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// CandleSource retrieves OHLCV candles one page at a time.
type CandleSource interface {
	// FetchPage requests at most req.Limit candles strictly older than
	// req.Before (or the most recent ones when Before is nil).
	//
	// Candles are returned in upstream order, which is newest first, already
	// normalized into canonical records. An empty page is not an error.
	// A non-success HTTP status is returned as *HTTPStatusError so callers
	// can tell rate limiting apart from other failures.
	FetchPage(ctx context.Context, req OHLCVRequest) (*OHLCVPage, error)
}

// PairProvider discovers the markets that trade a token.
type PairProvider interface {
	// TokenPairs returns every pair the upstream knows for tokenAddress,
	// across all chains and in upstream order.
	TokenPairs(ctx context.Context, tokenAddress string) ([]models.TradingPair, error)
}

// OHLCVRequest specifies one page request.
type OHLCVRequest struct {
	// PairAddress is the pool address on the network
	PairAddress string `json:"pair_address"`

	// Timeframe selects resolution and aggregation
	Timeframe models.Timeframe `json:"timeframe"`

	// Before is the exclusive upper bound (unix seconds); nil means now
	Before *int64 `json:"before,omitempty"`

	// Limit caps the number of candles returned; 0 uses the client default
	Limit int `json:"limit,omitempty"`
}

// OHLCVPage is one upstream response.
type OHLCVPage struct {
	// Candles in upstream order (newest first)
	Candles []models.Candle `json:"candles"`

	// FetchedAt is when the response was received
	FetchedAt time.Time `json:"fetched_at"`
}

// Oldest returns the smallest timestamp on the page.
func (p *OHLCVPage) Oldest() (int64, bool) {
	r, ok := models.CandleBounds(p.Candles)
	return r.Min, ok
}

// Validate checks if the OHLCVRequest has valid parameters.
func (r *OHLCVRequest) Validate() error {
	if r.PairAddress == "" {
		return &ValidationError{Field: "pair_address", Message: "pair address cannot be empty"}
	}
	if r.Timeframe.Aggregate <= 0 {
		return &ValidationError{Field: "timeframe", Message: "aggregate must be positive"}
	}
	if r.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "limit cannot be negative"}
	}
	if r.Before != nil && *r.Before <= 0 {
		return &ValidationError{Field: "before", Message: "cursor must be a positive timestamp"}
	}
	return nil
}

// ErrRateLimited matches any *HTTPStatusError carrying HTTP 429.
var ErrRateLimited = errors.New("rate limited")

// HTTPStatusError reports a non-success response from an upstream.
type HTTPStatusError struct {
	StatusCode int    `json:"status_code"`
	URL        string `json:"url"`
	Body       string `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
	}
	return fmt.Sprintf("upstream returned %d %s for %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL, e.Body)
}

// HTTPStatus returns the response status code.
func (e *HTTPStatusError) HTTPStatus() int {
	return e.StatusCode
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is an HTTP 429 from an upstream.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ValidationError represents a validation error for exchange requests.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation error for field " + e.Field + ": " + e.Message
}

// maxErrorBody bounds how much of an error response is kept in HTTPStatusError.
const maxErrorBody = 256

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
