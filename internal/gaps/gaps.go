// Package gaps finds missing periods inside a merged candle series. Gaps are
// reported for information only; the scraper never backfills them on its own
// beyond the regular history window.
package gaps

import (
	"fmt"
	"time"
)

// GapPriority ranks a gap by how much of the series it removes.
type GapPriority string

const (
	PriorityLow      GapPriority = "low"
	PriorityMedium   GapPriority = "medium"
	PriorityHigh     GapPriority = "high"
	PriorityCritical GapPriority = "critical"
)

// Gap is a run of missing candles between two present ones. Start is the
// first missing timestamp and End is the timestamp of the next present candle.
type Gap struct {
	Start    int64
	End      int64
	Missing  int
	Priority GapPriority
}

// Duration returns the wall-clock span of the gap.
func (g Gap) Duration() time.Duration {
	return time.Duration(g.End-g.Start) * time.Second
}

// String returns a human-readable representation of the gap.
func (g Gap) String() string {
	return fmt.Sprintf("Gap{%d -> %d, missing=%d, priority=%s}", g.Start, g.End, g.Missing, g.Priority)
}

// Report summarizes the gaps of one series.
type Report struct {
	Step         time.Duration
	Checked      int
	Gaps         []Gap
	TotalMissing int
	Largest      *Gap
}

// HasGaps reports whether any gap was found.
func (r *Report) HasGaps() bool {
	return r != nil && len(r.Gaps) > 0
}

// Coverage is the share of expected candles that are present, in [0, 1].
func (r *Report) Coverage() float64 {
	if r == nil || r.Checked == 0 {
		return 1
	}
	return float64(r.Checked) / float64(r.Checked+r.TotalMissing)
}

// calculateGapPriority grades a gap by its length in steps.
func calculateGapPriority(missing int, step time.Duration) GapPriority {
	duration := time.Duration(missing) * step

	switch {
	case duration > 7*24*time.Hour || missing > 500:
		return PriorityCritical
	case duration > 24*time.Hour || missing > 100:
		return PriorityHigh
	case missing > 10:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
