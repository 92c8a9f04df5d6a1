package collector

import (
	"sort"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// CandleSet is an ordered, last-write-wins collection keyed by timestamp.
type CandleSet struct {
	byTime map[int64]models.Candle
	keys   []int64
	sorted bool
}

// NewCandleSet creates an empty set.
func NewCandleSet() *CandleSet {
	return &CandleSet{byTime: make(map[int64]models.Candle), sorted: true}
}

// Insert adds batch; a candle replaces any earlier one with the same timestamp.
// It returns how many timestamps were new to the set.
func (s *CandleSet) Insert(batch []models.Candle) int {
	added := 0
	for _, c := range batch {
		if _, exists := s.byTime[c.Timestamp]; !exists {
			s.keys = append(s.keys, c.Timestamp)
			s.sorted = false
			added++
		}
		s.byTime[c.Timestamp] = c
	}
	return added
}

// Len returns the number of distinct timestamps.
func (s *CandleSet) Len() int {
	return len(s.byTime)
}

// Get returns the candle stored for ts.
func (s *CandleSet) Get(ts int64) (models.Candle, bool) {
	c, ok := s.byTime[ts]
	return c, ok
}

// Sorted returns the candles in ascending timestamp order.
func (s *CandleSet) Sorted() []models.Candle {
	if !s.sorted {
		sort.Slice(s.keys, func(i, j int) bool { return s.keys[i] < s.keys[j] })
		s.sorted = true
	}

	out := make([]models.Candle, len(s.keys))
	for i, ts := range s.keys {
		out[i] = s.byTime[ts]
	}
	return out
}

// MergeResult is the merged series plus the size of each input.
type MergeResult struct {
	Candles  []models.Candle
	Existing int
	Future   int
	History  int

	// Added is the number of timestamps not present in existing
	Added int
}

// MergeCandles unions existing, future and history in that order, so on a
// timestamp collision history wins over future and future over existing.
// The result is ascending with unique timestamps.
func MergeCandles(existing, future, history []models.Candle) MergeResult {
	set := NewCandleSet()
	set.Insert(existing)
	before := set.Len()
	set.Insert(future)
	set.Insert(history)

	return MergeResult{
		Candles:  set.Sorted(),
		Existing: len(existing),
		Future:   len(future),
		History:  len(history),
		Added:    set.Len() - before,
	}
}

// PlanWindows decides which windows to fetch from the bounds of the stored
// dataset. Without stored data a single full window is returned. Otherwise
// a future window walks back from now to the stored maximum, and a history
// window walks back from the stored minimum. History always runs; nothing
// records that the upstream start has been reached.
func PlanWindows(bounds models.TimeRange, hasData bool) []models.FetchWindow {
	if !hasData {
		return []models.FetchWindow{{Kind: models.WindowFull}}
	}

	stopAt := bounds.Max
	cursor := bounds.Min
	return []models.FetchWindow{
		{Kind: models.WindowFuture, StopAt: &stopAt, LimitStop: true},
		{Kind: models.WindowHistory, Cursor: &cursor},
	}
}
