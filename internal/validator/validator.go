// Package validator inspects candle series for logical inconsistencies and
// anomalies. Findings are reported, never corrected: upstream data is stored
// as received.
package validator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyType names a kind of finding.
type AnomalyType string

const (
	AnomalyNonPositivePrice AnomalyType = "non_positive_price"
	AnomalyNegativeVolume   AnomalyType = "negative_volume"
	AnomalyHighBelowBody    AnomalyType = "high_below_body"
	AnomalyLowAboveBody     AnomalyType = "low_above_body"
	AnomalyPriceSpike       AnomalyType = "price_spike"
	AnomalyVolumeSurge      AnomalyType = "volume_surge"
)

// SeverityLevel grades an anomaly.
type SeverityLevel string

const (
	SeverityWarning  SeverityLevel = "warning"
	SeverityError    SeverityLevel = "error"
	SeverityCritical SeverityLevel = "critical"
)

// Anomaly is one finding attached to a candle.
type Anomaly struct {
	Timestamp   int64
	Type        AnomalyType
	Severity    SeverityLevel
	Description string
	Value       decimal.Decimal
	Threshold   decimal.Decimal
}

// String returns a human-readable representation of the anomaly.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s@%d(%s): %s", a.Type, a.Timestamp, a.Severity, a.Description)
}

// ValidationConfig holds the anomaly thresholds.
type ValidationConfig struct {
	// PriceSpikeThreshold is the high-to-previous-high ratio that counts as a spike
	PriceSpikeThreshold float64

	// VolumeSurgeThreshold is the volume-to-previous-volume ratio that counts as a surge
	VolumeSurgeThreshold float64

	// EnableAnomalyDetection turns the cross-candle checks on
	EnableAnomalyDetection bool
}

// DefaultValidationConfig returns 5x price spikes and 10x volume surges.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		PriceSpikeThreshold:    5.0,
		VolumeSurgeThreshold:   10.0,
		EnableAnomalyDetection: true,
	}
}

// Validate checks the thresholds.
func (c *ValidationConfig) Validate() error {
	if c.PriceSpikeThreshold <= 1 {
		return fmt.Errorf("price spike threshold must be greater than 1, got %g", c.PriceSpikeThreshold)
	}
	if c.VolumeSurgeThreshold <= 1 {
		return fmt.Errorf("volume surge threshold must be greater than 1, got %g", c.VolumeSurgeThreshold)
	}
	return nil
}

// Report summarizes a validation pass.
type Report struct {
	Checked        int
	InvalidCandles int
	Anomalies      []Anomaly
	ProcessingTime time.Duration
}

// CountByType tallies anomalies per type.
func (r *Report) CountByType() map[AnomalyType]int {
	counts := make(map[AnomalyType]int)
	if r == nil {
		return counts
	}
	for _, a := range r.Anomalies {
		counts[a.Type]++
	}
	return counts
}

// QualityScore is the share of candles without logical errors, in [0, 1].
func (r *Report) QualityScore() float64 {
	if r == nil || r.Checked == 0 {
		return 1
	}
	return float64(r.Checked-r.InvalidCandles) / float64(r.Checked)
}
