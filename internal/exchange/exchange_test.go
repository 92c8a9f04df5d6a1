package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInterfaceDefinitions verifies that the clients satisfy the interfaces.
func TestInterfaceDefinitions(t *testing.T) {
	var (
		_ CandleSource = (*GeckoTerminalClient)(nil)
		_ PairProvider = (*DexScreenerClient)(nil)
	)
}

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createMockServer(responses map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, exists := responses[r.URL.Path]; exists {
			handler(w, r)
		} else {
			http.NotFound(w, r)
		}
	}))
}

func int64Ptr(v int64) *int64 { return &v }

func TestOHLCVRequestValidation(t *testing.T) {
	tf := models.ParseTimeframe("1h")

	tests := []struct {
		name        string
		request     OHLCVRequest
		expectError bool
		field       string
	}{
		{"valid request", OHLCVRequest{PairAddress: "pool", Timeframe: tf}, false, ""},
		{"valid with cursor", OHLCVRequest{PairAddress: "pool", Timeframe: tf, Before: int64Ptr(100), Limit: 10}, false, ""},
		{"missing pair", OHLCVRequest{Timeframe: tf}, true, "pair_address"},
		{"zero aggregate", OHLCVRequest{PairAddress: "pool"}, true, "timeframe"},
		{"negative limit", OHLCVRequest{PairAddress: "pool", Timeframe: tf, Limit: -1}, true, "limit"},
		{"zero cursor", OHLCVRequest{PairAddress: "pool", Timeframe: tf, Before: int64Ptr(0)}, true, "before"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHTTPStatusError(t *testing.T) {
	rateLimited := &HTTPStatusError{StatusCode: http.StatusTooManyRequests, URL: "http://x"}
	serverErr := &HTTPStatusError{StatusCode: http.StatusBadGateway, URL: "http://x", Body: "oops"}

	assert.True(t, IsRateLimited(rateLimited))
	assert.True(t, IsRateLimited(fmt.Errorf("page 3: %w", rateLimited)))
	assert.False(t, IsRateLimited(serverErr))
	assert.False(t, IsRateLimited(errors.New("rate limited")))

	assert.Equal(t, 502, serverErr.HTTPStatus())
	assert.Equal(t, "upstream returned 502 Bad Gateway for http://x: oops", serverErr.Error())
	assert.Equal(t, "upstream returned 429 Too Many Requests for http://x", rateLimited.Error())
}

func TestTruncateBody(t *testing.T) {
	long := make([]byte, maxErrorBody+10)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, truncateBody(long), maxErrorBody+3)
	assert.Equal(t, "short", truncateBody([]byte("short")))
}

func TestOHLCVPage_Oldest(t *testing.T) {
	page := &OHLCVPage{Candles: []models.Candle{{Timestamp: 300}, {Timestamp: 200}, {Timestamp: 100}}}
	oldest, ok := page.Oldest()
	require.True(t, ok)
	assert.Equal(t, int64(100), oldest)

	_, ok = (&OHLCVPage{}).Oldest()
	assert.False(t, ok)
}

func TestDoGet_ContextCancelled(t *testing.T) {
	server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
		"/slow": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := doGet(ctx, server.Client(), server.URL+"/slow", "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
