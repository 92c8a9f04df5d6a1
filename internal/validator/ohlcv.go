package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/shopspring/decimal"
)

// OHLCVValidator checks candles with decimal arithmetic so ratios of very
// small token prices stay exact.
type OHLCVValidator struct {
	logger     *slog.Logger
	config     *ValidationConfig
	thresholds map[AnomalyType]decimal.Decimal
}

// NewOHLCVValidator creates a validator with DefaultValidationConfig.
func NewOHLCVValidator(logger *slog.Logger) *OHLCVValidator {
	v, _ := NewOHLCVValidatorWithConfig(DefaultValidationConfig(), logger)
	return v
}

// NewOHLCVValidatorWithConfig creates a validator with custom thresholds.
func NewOHLCVValidatorWithConfig(config *ValidationConfig, logger *slog.Logger) (*OHLCVValidator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultValidationConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validation config: %w", err)
	}

	return &OHLCVValidator{
		logger: logger,
		config: config,
		thresholds: map[AnomalyType]decimal.Decimal{
			AnomalyPriceSpike:  decimal.NewFromFloat(config.PriceSpikeThreshold),
			AnomalyVolumeSurge: decimal.NewFromFloat(config.VolumeSurgeThreshold),
		},
	}, nil
}

// ohlcv is a candle lifted into decimals.
type ohlcv struct {
	ts     int64
	open   decimal.Decimal
	high   decimal.Decimal
	low    decimal.Decimal
	close  decimal.Decimal
	volume decimal.Decimal
}

func toDecimal(c models.Candle) ohlcv {
	return ohlcv{
		ts:     c.Timestamp,
		open:   decimal.NewFromFloat(c.Open),
		high:   decimal.NewFromFloat(c.High),
		low:    decimal.NewFromFloat(c.Low),
		close:  decimal.NewFromFloat(c.Close),
		volume: decimal.NewFromFloat(c.Volume),
	}
}

// ValidateCandles checks every candle and, when enabled, each consecutive pair.
func (v *OHLCVValidator) ValidateCandles(ctx context.Context, candles []models.Candle) (*Report, error) {
	startTime := time.Now()
	report := &Report{Checked: len(candles)}

	var prev *ohlcv
	for i, c := range candles {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cur := toDecimal(c)
		logical := v.detectLogicalAnomalies(cur)
		if len(logical) > 0 {
			report.InvalidCandles++
			report.Anomalies = append(report.Anomalies, logical...)
		}

		if v.config.EnableAnomalyDetection && prev != nil {
			report.Anomalies = append(report.Anomalies, v.detectCrossCandleAnomalies(*prev, cur)...)
		}
		prev = &cur
	}

	report.ProcessingTime = time.Since(startTime)
	v.logger.Debug("completed candle validation",
		"count", len(candles),
		"invalid", report.InvalidCandles,
		"anomalies", len(report.Anomalies),
		"processing_time", report.ProcessingTime)
	return report, nil
}

// detectLogicalAnomalies checks the OHLC relationships of a single candle:
// prices > 0, volume >= 0, high >= max(open, close), low <= min(open, close).
func (v *OHLCVValidator) detectLogicalAnomalies(c ohlcv) []Anomaly {
	var anomalies []Anomaly

	for _, p := range []struct {
		name  string
		value decimal.Decimal
	}{{"open", c.open}, {"high", c.high}, {"low", c.low}, {"close", c.close}} {
		if p.value.LessThanOrEqual(decimal.Zero) {
			anomalies = append(anomalies, Anomaly{
				Timestamp:   c.ts,
				Type:        AnomalyNonPositivePrice,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("%s price %s is not positive", p.name, p.value),
				Value:       p.value,
				Threshold:   decimal.Zero,
			})
		}
	}

	if c.volume.IsNegative() {
		anomalies = append(anomalies, Anomaly{
			Timestamp:   c.ts,
			Type:        AnomalyNegativeVolume,
			Severity:    SeverityError,
			Description: fmt.Sprintf("volume %s is negative", c.volume),
			Value:       c.volume,
			Threshold:   decimal.Zero,
		})
	}

	bodyTop := decimal.Max(c.open, c.close)
	if c.high.LessThan(bodyTop) {
		anomalies = append(anomalies, Anomaly{
			Timestamp:   c.ts,
			Type:        AnomalyHighBelowBody,
			Severity:    SeverityError,
			Description: fmt.Sprintf("high %s is below max(open, close) %s", c.high, bodyTop),
			Value:       c.high,
			Threshold:   bodyTop,
		})
	}

	bodyBottom := decimal.Min(c.open, c.close)
	if c.low.GreaterThan(bodyBottom) {
		anomalies = append(anomalies, Anomaly{
			Timestamp:   c.ts,
			Type:        AnomalyLowAboveBody,
			Severity:    SeverityError,
			Description: fmt.Sprintf("low %s is above min(open, close) %s", c.low, bodyBottom),
			Value:       c.low,
			Threshold:   bodyBottom,
		})
	}

	return anomalies
}

// detectCrossCandleAnomalies compares a candle with its predecessor.
func (v *OHLCVValidator) detectCrossCandleAnomalies(prev, cur ohlcv) []Anomaly {
	var anomalies []Anomaly

	if prev.high.IsPositive() {
		ratio := cur.high.Div(prev.high)
		threshold := v.thresholds[AnomalyPriceSpike]
		if ratio.GreaterThan(threshold) {
			anomalies = append(anomalies, Anomaly{
				Timestamp:   cur.ts,
				Type:        AnomalyPriceSpike,
				Severity:    SeverityWarning,
				Description: fmt.Sprintf("high rose %sx over the previous candle", ratio.StringFixed(2)),
				Value:       ratio,
				Threshold:   threshold,
			})
		}
	}

	if prev.volume.IsPositive() {
		ratio := cur.volume.Div(prev.volume)
		threshold := v.thresholds[AnomalyVolumeSurge]
		if ratio.GreaterThan(threshold) {
			anomalies = append(anomalies, Anomaly{
				Timestamp:   cur.ts,
				Type:        AnomalyVolumeSurge,
				Severity:    SeverityWarning,
				Description: fmt.Sprintf("volume rose %sx over the previous candle", ratio.StringFixed(2)),
				Value:       ratio,
				Threshold:   threshold,
			})
		}
	}

	return anomalies
}

// GetConfig returns the active configuration.
func (v *OHLCVValidator) GetConfig() *ValidationConfig {
	return v.config
}

// Inspect validates candles and logs a summary. It never fails the caller;
// errors are logged and yield a nil report.
func (v *OHLCVValidator) Inspect(ctx context.Context, candles []models.Candle) *Report {
	report, err := v.ValidateCandles(ctx, candles)
	if err != nil {
		v.logger.Warn("candle validation skipped", "error", err)
		return nil
	}
	if len(report.Anomalies) == 0 {
		return report
	}

	attrs := []any{
		"checked", report.Checked,
		"invalid_candles", report.InvalidCandles,
		"quality_score", fmt.Sprintf("%.4f", report.QualityScore()),
	}
	for typ, n := range report.CountByType() {
		attrs = append(attrs, string(typ), n)
	}
	v.logger.Info("candle anomalies detected", attrs...)
	return report
}
