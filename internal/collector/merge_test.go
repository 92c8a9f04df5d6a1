package collector

import (
	"context"
	"testing"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeCandleWithClose(ts int64, close float64) models.Candle {
	return models.NewCandle(ts, 1, 2, 0.5, close, 10, nil)
}

func TestCandleSet(t *testing.T) {
	set := NewCandleSet()
	assert.Equal(t, 3, set.Insert(candlesDesc(300, 100, 200)))
	assert.Equal(t, 1, set.Insert([]models.Candle{mergeCandleWithClose(200, 9), mergeCandleWithClose(50, 1)}))

	assert.Equal(t, 4, set.Len())
	assert.Equal(t, []int64{50, 100, 200, 300}, timestampsOf(set.Sorted()))

	c, ok := set.Get(200)
	require.True(t, ok)
	assert.Equal(t, 9.0, c.Close, "last write wins")

	_, ok = set.Get(999)
	assert.False(t, ok)
}

func TestMergeCandles_Precedence(t *testing.T) {
	existing := []models.Candle{mergeCandleWithClose(100, 1), mergeCandleWithClose(200, 1), mergeCandleWithClose(300, 1)}
	future := []models.Candle{mergeCandleWithClose(300, 2), mergeCandleWithClose(400, 2)}
	history := []models.Candle{mergeCandleWithClose(100, 3), mergeCandleWithClose(50, 3), mergeCandleWithClose(300, 3)}

	res := MergeCandles(existing, future, history)

	closes := map[int64]float64{}
	for _, c := range res.Candles {
		closes[c.Timestamp] = c.Close
	}
	assert.Equal(t, map[int64]float64{50: 3, 100: 3, 200: 1, 300: 3, 400: 2}, closes)
	assert.Equal(t, []int64{50, 100, 200, 300, 400}, timestampsOf(res.Candles))
	assert.Equal(t, 3, res.Existing)
	assert.Equal(t, 2, res.Future)
	assert.Equal(t, 3, res.History)
	assert.Equal(t, 2, res.Added)
}

func TestMergeCandles_Idempotent(t *testing.T) {
	existing := candlesDesc(500, 100, 300)
	future := candlesDesc(700, 600, 500)
	history := candlesDesc(90, 80)

	once := MergeCandles(existing, future, history)
	twice := MergeCandles(once.Candles, future, history)

	assert.Equal(t, once.Candles, twice.Candles)
	assert.Zero(t, twice.Added)
}

func TestMergeCandles_AscendingUnique(t *testing.T) {
	res := MergeCandles(candlesDesc(3, 3, 1), candlesDesc(2, 2), nil)
	ds := &models.Dataset{Candles: res.Candles}
	require.NoError(t, ds.CheckOrder())
	assert.Equal(t, []int64{1, 2, 3}, timestampsOf(res.Candles))
}

func TestMergeCandles_Empty(t *testing.T) {
	res := MergeCandles(nil, nil, nil)
	assert.Empty(t, res.Candles)
	assert.NotNil(t, res.Candles)
}

func TestPlanWindows(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		windows := PlanWindows(models.TimeRange{}, false)
		require.Len(t, windows, 1)
		assert.Equal(t, models.WindowFull, windows[0].Kind)
		assert.Nil(t, windows[0].Cursor)
		assert.Nil(t, windows[0].StopAt)
		assert.False(t, windows[0].LimitStop)
	})

	t.Run("existing data", func(t *testing.T) {
		windows := PlanWindows(models.TimeRange{Min: 100, Max: 300}, true)
		require.Len(t, windows, 2)

		future, history := windows[0], windows[1]
		assert.Equal(t, models.WindowFuture, future.Kind)
		assert.Nil(t, future.Cursor)
		assert.Equal(t, int64(300), *future.StopAt)
		assert.True(t, future.LimitStop)

		assert.Equal(t, models.WindowHistory, history.Kind)
		assert.Equal(t, int64(100), *history.Cursor)
		assert.Nil(t, history.StopAt)
		assert.False(t, history.LimitStop)
	})
}

func TestFetchAndMerge_EndToEnd(t *testing.T) {
	existing := candlesDesc(100, 200, 300)
	source := &fakeSource{handler: pagesOf(candlesDesc(400, 300, 200))}
	p, _, _ := newTestPager(source, DefaultPagerConfig())

	bounds, ok := models.CandleBounds(existing)
	require.True(t, ok)
	windows := PlanWindows(bounds, ok)

	res, err := p.Fetch(context.Background(), "pool", tf1h, windows[0])
	require.NoError(t, err)
	assert.Equal(t, StateStoppedOverlap, res.State)

	merged := MergeCandles(existing, res.Candles, nil)
	assert.Equal(t, []int64{100, 200, 300, 400}, timestampsOf(merged.Candles))
}
