package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	apperrors "github.com/johnayoung/solana-candle-scraper/internal/errors"
	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Flags
		wantErr bool
	}{
		{name: "no arguments", args: nil, want: Flags{}},
		{name: "automation", args: []string{"Mint111", "1h"}, want: Flags{Args: []string{"Mint111", "1h"}}},
		{
			name: "config and data dir",
			args: []string{"--config", "scraper.yaml", "-d", "data", "Mint111", "4h"},
			want: Flags{ConfigPath: "scraper.yaml", DataDir: "data", Args: []string{"Mint111", "4h"}},
		},
		{name: "write config", args: []string{"--write-config", "out.json"}, want: Flags{WriteConfig: "out.json"}},
		{name: "version", args: []string{"-v"}, want: Flags{Version: true}},
		{name: "help", args: []string{"help"}, want: Flags{Help: true}},
		{name: "missing value", args: []string{"--config"}, wantErr: true},
		{name: "unknown flag", args: []string{"--pair", "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	assert.Equal(t, ExitUsageError, run([]string{"--bogus"}))
	assert.Equal(t, ExitUsageError, run([]string{"only-token"}))
	assert.Equal(t, ExitSuccess, run([]string{"--version"}))
}

func TestErrorAttrs(t *testing.T) {
	err := fmt.Errorf("discovery: %w", &exchange.HTTPStatusError{StatusCode: 503})
	attrs := errorAttrs(err)

	got := map[string]any{}
	for i := 0; i+1 < len(attrs); i += 2 {
		got[attrs[i].(string)] = attrs[i+1]
	}
	assert.Equal(t, err, got["error"])
	assert.Equal(t, "server_error", got["error_type"])
	assert.Equal(t, "medium", got["severity"])
	assert.Equal(t, true, got["retryable"])

	attrs = errorAttrs(errors.New("storage: permission denied"))
	assert.Contains(t, attrs, "high")
	assert.Contains(t, attrs, false)
}

func TestFormatErrorStats(t *testing.T) {
	assert.Empty(t, formatErrorStats(nil))

	stats := map[apperrors.ErrorType]apperrors.ErrorStats{
		apperrors.ErrorTypeServerError: {Count: 2},
		apperrors.ErrorTypeDecode:      {Count: 1},
	}
	assert.Equal(t, "Recovered from 3 errors (decode=1, server_error=2)", formatErrorStats(stats))
}

func TestPrompter_TokenAndTimeframe(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("  Mint111 \n4H\n"), &out)
	ctx := context.Background()

	token, err := p.TokenAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mint111", token)

	tf, err := p.Timeframe(ctx, "1d")
	require.NoError(t, err)
	assert.Equal(t, "4h", tf)

	assert.Contains(t, out.String(), "Enter Token Address: ")
	assert.Contains(t, out.String(), "Timeframes: 1m, 5m, 15m, 1h, 4h, 12h, 1d")
}

func TestPrompter_Defaults(t *testing.T) {
	ctx := context.Background()

	p := newPrompter(strings.NewReader("\n"), io.Discard)
	_, err := p.TokenAddress(ctx)
	assert.ErrorIs(t, err, errAddressRequired)

	p = newPrompter(strings.NewReader("Mint111\n\n"), io.Discard)
	_, err = p.TokenAddress(ctx)
	require.NoError(t, err)
	tf, err := p.Timeframe(ctx, "1d")
	require.NoError(t, err)
	assert.Equal(t, "1d", tf)

	p = newPrompter(strings.NewReader("Mint111"), io.Discard)
	token, err := p.TokenAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mint111", token)
	tf, err = p.Timeframe(ctx, "1d")
	require.NoError(t, err)
	assert.Equal(t, "1d", tf, "end of input takes the default")
}

func TestPrompter_ChoosePair(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("2\n"), &out)

	candidates := []models.TradingPair{
		{BaseSymbol: "BONK", DexID: "raydium", PairAddress: "big", LiquidityUSD: 5000},
		{BaseSymbol: "BONK", DexID: "orca", PairAddress: "small", LiquidityUSD: 10},
	}
	answer, err := p.ChoosePair(context.Background(), candidates, len(candidates))
	require.NoError(t, err)
	assert.Equal(t, "2", answer)

	assert.Contains(t, out.String(), "Found 2 pairs:\n")
	assert.Contains(t, out.String(), "1. BONK on raydium | Liquidity: $5000.00 | Addr: big")
	assert.Contains(t, out.String(), "2. BONK on orca | Liquidity: $10.00 | Addr: small")
}

func TestPrompter_ChoosePairHeaderCountsAllPairs(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("\n"), &out)

	shown := []models.TradingPair{{BaseSymbol: "BONK", DexID: "raydium", PairAddress: "big"}}
	_, err := p.ChoosePair(context.Background(), shown, 14)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Found 14 pairs, showing top 1:")
}

func TestPrompter_ExhaustedInputDoesNotBlock(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("MINT\n"), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	token, err := p.TokenAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MINT", token)

	tf, err := p.Timeframe(ctx, "1d")
	require.NoError(t, err)
	assert.Equal(t, "1d", tf)

	candidates := []models.TradingPair{{BaseSymbol: "MINT", DexID: "raydium", PairAddress: "big"}}
	for i := 0; i < 2; i++ {
		answer, err := p.ChoosePair(ctx, candidates, 1)
		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, answer)
	}
	assert.NoError(t, ctx.Err(), "prompts returned before the deadline")
}

func TestPrompter_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	p := newPrompter(r, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.TokenAddress(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
