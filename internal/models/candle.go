// Package models provides the canonical records shared by the scraper.
// This package contains candles, persisted datasets, trading pairs,
// timeframes and the fetch windows that drive pagination.
package models

import (
	"fmt"
	"time"
)

// DateLayout is the format used for Candle.DateReadable and dataset timestamps.
const DateLayout = "2006-01-02 15:04:05"

// Candle represents one OHLCV observation keyed by its unix timestamp (seconds).
// Field order matches the persisted JSON layout.
type Candle struct {
	Timestamp    int64   `json:"timestamp"`
	DateReadable string  `json:"date_readable"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       float64 `json:"volume"`
}

// NewCandle builds a candle and derives its display date in loc.
// A nil location means time.Local.
func NewCandle(timestamp int64, open, high, low, close, volume float64, loc *time.Location) Candle {
	return Candle{
		Timestamp:    timestamp,
		DateReadable: FormatTimestamp(timestamp, loc),
		Open:         open,
		High:         high,
		Low:          low,
		Close:        close,
		Volume:       volume,
	}
}

// FormatTimestamp renders a unix timestamp using DateLayout.
func FormatTimestamp(timestamp int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(timestamp, 0).In(loc).Format(DateLayout)
}

// Time returns the candle open time in UTC.
func (c Candle) Time() time.Time {
	return time.Unix(c.Timestamp, 0).UTC()
}

// String returns a human-readable representation of the candle.
func (c Candle) String() string {
	return fmt.Sprintf("Candle{T: %d (%s), O: %g, H: %g, L: %g, C: %g, V: %g}",
		c.Timestamp, c.DateReadable, c.Open, c.High, c.Low, c.Close, c.Volume)
}

// TimeRange is an inclusive span of candle timestamps.
type TimeRange struct {
	Min int64
	Max int64
}

// CandleBounds returns the smallest and largest timestamps in candles.
// ok is false for an empty slice.
func CandleBounds(candles []Candle) (r TimeRange, ok bool) {
	if len(candles) == 0 {
		return TimeRange{}, false
	}

	r = TimeRange{Min: candles[0].Timestamp, Max: candles[0].Timestamp}
	for _, c := range candles[1:] {
		r.Min = min(r.Min, c.Timestamp)
		r.Max = max(r.Max, c.Timestamp)
	}
	return r, true
}
