package models

import (
	"fmt"
	"time"
)

// DatasetMeta describes a persisted dataset. TotalCandles and LastUpdated are
// derived on every save; values read from disk are informational only.
type DatasetMeta struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	TokenAddress string `json:"token_address"`
	PairAddress  string `json:"pair_address"`
	Timeframe    string `json:"timeframe"`
	LastUpdated  string `json:"last_updated"`
	TotalCandles int    `json:"total_candles"`
}

// Dataset is the persisted unit for one (token, timeframe) pair.
type Dataset struct {
	Meta    DatasetMeta `json:"meta"`
	Candles []Candle    `json:"candles"`
}

// NewDataset builds a dataset for the selected pair with the given candles.
func NewDataset(pair TradingPair, tokenAddress, timeframe string, candles []Candle) *Dataset {
	return &Dataset{
		Meta: DatasetMeta{
			Name:         pair.BaseName,
			Symbol:       pair.BaseSymbol,
			TokenAddress: tokenAddress,
			PairAddress:  pair.PairAddress,
			Timeframe:    timeframe,
		},
		Candles: candles,
	}
}

// Refresh recomputes the derived metadata fields.
func (d *Dataset) Refresh(now time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	d.Meta.TotalCandles = len(d.Candles)
	d.Meta.LastUpdated = now.In(loc).Format(DateLayout)
}

// Bounds returns the timestamp range covered by the dataset.
func (d *Dataset) Bounds() (TimeRange, bool) {
	if d == nil {
		return TimeRange{}, false
	}
	return CandleBounds(d.Candles)
}

// CheckOrder verifies that candle timestamps are unique and strictly ascending.
func (d *Dataset) CheckOrder() error {
	for i := 1; i < len(d.Candles); i++ {
		if d.Candles[i-1].Timestamp >= d.Candles[i].Timestamp {
			return fmt.Errorf("candles out of order at index %d: %d >= %d",
				i, d.Candles[i-1].Timestamp, d.Candles[i].Timestamp)
		}
	}
	return nil
}
