package collector

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

// candlesDesc builds candles in the newest-first order the upstream uses.
func candlesDesc(timestamps ...int64) []models.Candle {
	out := make([]models.Candle, len(timestamps))
	for i, ts := range timestamps {
		out[i] = models.NewCandle(ts, 1, 2, 0.5, 1.5, 10, nil)
	}
	return out
}

func timestampsOf(candles []models.Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.Timestamp
	}
	return out
}

// fakeSource answers FetchPage from a scripted handler and records requests.
type fakeSource struct {
	mu       sync.Mutex
	requests []exchange.OHLCVRequest
	handler  func(n int, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error)
}

func (f *fakeSource) FetchPage(ctx context.Context, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	return f.handler(n, req)
}

func (f *fakeSource) Requests() []exchange.OHLCVRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.OHLCVRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// pagesOf serves pages in order and then empty pages.
func pagesOf(pages ...[]models.Candle) func(n int, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
	return func(n int, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
		if n > len(pages) {
			return &exchange.OHLCVPage{}, nil
		}
		return &exchange.OHLCVPage{Candles: pages[n-1]}, nil
	}
}

// endlessHistory serves two candles strictly older than the cursor on every call.
func endlessHistory(start, step int64) func(n int, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
	return func(n int, req exchange.OHLCVRequest) (*exchange.OHLCVPage, error) {
		top := start
		if req.Before != nil {
			top = *req.Before - step
		}
		return &exchange.OHLCVPage{Candles: candlesDesc(top, top-step)}, nil
	}
}

type fakePairs struct {
	pairs []models.TradingPair
	err   error
	calls int
}

func (f *fakePairs) TokenPairs(ctx context.Context, token string) ([]models.TradingPair, error) {
	f.calls++
	return f.pairs, f.err
}
