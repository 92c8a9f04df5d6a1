package gaps

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// Detector scans ascending candle series for interior gaps.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a detector. A nil logger uses slog.Default.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// DetectInSequence returns every interior gap where consecutive candles are
// further apart than step. Candles must be strictly ascending. When spacing
// is not a whole multiple of step, every slot before the next candle counts.
func (d *Detector) DetectInSequence(candles []models.Candle, step time.Duration) (*Report, error) {
	stepSec := int64(step / time.Second)
	if stepSec <= 0 {
		return nil, fmt.Errorf("invalid step %s", step)
	}

	report := &Report{Step: step, Checked: len(candles)}
	for i := 1; i < len(candles); i++ {
		prev, next := candles[i-1].Timestamp, candles[i].Timestamp
		if next <= prev {
			return nil, fmt.Errorf("candles out of order at index %d: %d >= %d", i, prev, next)
		}

		diff := next - prev
		if diff <= stepSec {
			continue
		}

		missing := int(diff/stepSec) - 1
		if diff%stepSec != 0 {
			missing++
		}
		gap := Gap{
			Start:    prev + stepSec,
			End:      next,
			Missing:  missing,
			Priority: calculateGapPriority(missing, step),
		}
		report.Gaps = append(report.Gaps, gap)
		report.TotalMissing += missing
	}

	for i := range report.Gaps {
		if report.Largest == nil || report.Gaps[i].Missing > report.Largest.Missing {
			report.Largest = &report.Gaps[i]
		}
	}
	return report, nil
}

// Inspect runs DetectInSequence and logs the outcome. Failures are logged
// and yield a nil report.
func (d *Detector) Inspect(candles []models.Candle, tf models.Timeframe) *Report {
	report, err := d.DetectInSequence(candles, tf.Step())
	if err != nil {
		d.logger.Warn("gap detection skipped", "timeframe", tf.Code, "error", err)
		return nil
	}

	if !report.HasGaps() {
		d.logger.Debug("no gaps detected", "timeframe", tf.Code, "candles", report.Checked)
		return report
	}

	d.logger.Info("gaps detected",
		"timeframe", tf.Code,
		"gaps", len(report.Gaps),
		"missing_candles", report.TotalMissing,
		"coverage", fmt.Sprintf("%.2f%%", report.Coverage()*100),
		"largest_start", models.FormatTimestamp(report.Largest.Start, time.UTC),
		"largest_missing", report.Largest.Missing,
		"largest_priority", report.Largest.Priority,
	)
	return report
}
