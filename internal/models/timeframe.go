package models

import "time"

// Resolution is the upstream OHLCV bucket unit.
type Resolution string

const (
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDay    Resolution = "day"
)

// Duration returns the length of one unit of the resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionMinute:
		return time.Minute
	case ResolutionHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Timeframe maps a user-facing code such as "4h" to the upstream
// resolution and aggregation multiplier.
type Timeframe struct {
	Code       string
	Resolution Resolution
	Aggregate  int
}

// timeframeCodes lists the recognized codes in display order.
var timeframeCodes = []string{"1m", "5m", "15m", "1h", "4h", "12h", "1d"}

var timeframes = map[string]Timeframe{
	"1m":  {Code: "1m", Resolution: ResolutionMinute, Aggregate: 1},
	"5m":  {Code: "5m", Resolution: ResolutionMinute, Aggregate: 5},
	"15m": {Code: "15m", Resolution: ResolutionMinute, Aggregate: 15},
	"1h":  {Code: "1h", Resolution: ResolutionHour, Aggregate: 1},
	"4h":  {Code: "4h", Resolution: ResolutionHour, Aggregate: 4},
	"12h": {Code: "12h", Resolution: ResolutionHour, Aggregate: 12},
	"1d":  {Code: "1d", Resolution: ResolutionDay, Aggregate: 1},
}

// ParseTimeframe resolves a timeframe code. Unrecognized codes fall back to
// one-day resolution but keep the caller's code, which still names the dataset.
func ParseTimeframe(code string) Timeframe {
	if tf, ok := timeframes[code]; ok {
		return tf
	}
	return Timeframe{Code: code, Resolution: ResolutionDay, Aggregate: 1}
}

// IsKnownTimeframe reports whether code is one of the recognized codes.
func IsKnownTimeframe(code string) bool {
	_, ok := timeframes[code]
	return ok
}

// SupportedTimeframes returns the recognized codes in display order.
func SupportedTimeframes() []string {
	out := make([]string, len(timeframeCodes))
	copy(out, timeframeCodes)
	return out
}

// Step is the expected spacing between consecutive candles.
func (t Timeframe) Step() time.Duration {
	agg := t.Aggregate
	if agg <= 0 {
		agg = 1
	}
	return time.Duration(agg) * t.Resolution.Duration()
}
