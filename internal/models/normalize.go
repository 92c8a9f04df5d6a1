package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// tupleLen is the arity of a positional candle: [timestamp, open, high, low, close, volume].
const tupleLen = 6

// NormalizeError reports a raw candle that could not be converted to a Candle.
type NormalizeError struct {
	Raw    string
	Reason string
}

// Error implements the error interface for NormalizeError.
func (e *NormalizeError) Error() string {
	raw := e.Raw
	if len(raw) > 80 {
		raw = raw[:80] + "..."
	}
	return fmt.Sprintf("malformed candle %s: %s", raw, e.Reason)
}

// NormalizeCandle converts a single raw JSON candle, either the positional
// six-element form or a keyed record, into the canonical Candle.
func NormalizeCandle(raw []byte, loc *time.Location) (Candle, error) {
	if !gjson.ValidBytes(raw) {
		return Candle{}, &NormalizeError{Raw: string(raw), Reason: "invalid JSON"}
	}
	return NormalizeResult(gjson.ParseBytes(raw), loc)
}

// NormalizeCandles converts a JSON array of raw candles. Representations may
// be mixed within one array. The first malformed element aborts the call.
func NormalizeCandles(raw []byte, loc *time.Location) ([]Candle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &NormalizeError{Raw: string(raw), Reason: "invalid JSON"}
	}
	return NormalizeArray(gjson.ParseBytes(raw), loc)
}

// NormalizeArray converts an already parsed JSON array of raw candles.
func NormalizeArray(list gjson.Result, loc *time.Location) ([]Candle, error) {
	if !list.IsArray() {
		return nil, &NormalizeError{Raw: list.Raw, Reason: "expected an array of candles"}
	}

	items := list.Array()
	candles := make([]Candle, 0, len(items))
	for i, item := range items {
		candle, err := NormalizeResult(item, loc)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// NormalizeResult converts one parsed raw candle.
func NormalizeResult(r gjson.Result, loc *time.Location) (Candle, error) {
	switch {
	case r.IsArray():
		return fromTuple(r, loc)
	case r.IsObject():
		return fromRecord(r, loc)
	default:
		return Candle{}, &NormalizeError{Raw: r.Raw, Reason: "expected array or object"}
	}
}

func fromTuple(r gjson.Result, loc *time.Location) (Candle, error) {
	fields := r.Array()
	if len(fields) != tupleLen {
		return Candle{}, &NormalizeError{
			Raw:    r.Raw,
			Reason: fmt.Sprintf("expected %d elements, got %d", tupleLen, len(fields)),
		}
	}

	ts, err := timestampField(r, fields[0])
	if err != nil {
		return Candle{}, err
	}

	var values [tupleLen - 1]float64
	names := [tupleLen - 1]string{"open", "high", "low", "close", "volume"}
	for i := range values {
		v, err := numberField(r, fields[i+1], names[i])
		if err != nil {
			return Candle{}, err
		}
		values[i] = v
	}

	return NewCandle(ts, values[0], values[1], values[2], values[3], values[4], loc), nil
}

func fromRecord(r gjson.Result, loc *time.Location) (Candle, error) {
	tsField := r.Get("timestamp")
	if !tsField.Exists() {
		return Candle{}, &NormalizeError{Raw: r.Raw, Reason: "missing timestamp"}
	}
	ts, err := timestampField(r, tsField)
	if err != nil {
		return Candle{}, err
	}

	names := [tupleLen - 1]string{"open", "high", "low", "close", "volume"}
	var values [tupleLen - 1]float64
	for i, name := range names {
		field := r.Get(name)
		if !field.Exists() {
			return Candle{}, &NormalizeError{Raw: r.Raw, Reason: "missing " + name}
		}
		v, err := numberField(r, field, name)
		if err != nil {
			return Candle{}, err
		}
		values[i] = v
	}

	candle := NewCandle(ts, values[0], values[1], values[2], values[3], values[4], loc)
	if dr := r.Get("date_readable"); dr.Type == gjson.String && dr.Str != "" {
		candle.DateReadable = dr.Str
	}
	return candle, nil
}

func timestampField(parent, field gjson.Result) (int64, error) {
	switch field.Type {
	case gjson.Number:
		return field.Int(), nil
	case gjson.String:
		if ts, err := strconv.ParseInt(field.Str, 10, 64); err == nil {
			return ts, nil
		}
		if f, err := strconv.ParseFloat(field.Str, 64); err == nil {
			return int64(f), nil
		}
	}
	return 0, &NormalizeError{Raw: parent.Raw, Reason: "timestamp is not an integer"}
}

func numberField(parent, field gjson.Result, name string) (float64, error) {
	switch field.Type {
	case gjson.Number:
		return field.Float(), nil
	case gjson.String:
		if v, err := strconv.ParseFloat(field.Str, 64); err == nil {
			return v, nil
		}
	}
	return 0, &NormalizeError{Raw: parent.Raw, Reason: name + " is not a number"}
}
