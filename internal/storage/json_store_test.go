package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestJSONStore(dir string) (*JSONFileStore, DatasetLocation) {
	store := NewJSONFileStore(time.UTC, createTestLogger())
	store.now = func() time.Time { return fixedNow }
	return store, DatasetLocation{Dir: dir, Symbol: "BONK", TokenAddress: "TokenMint111", Timeframe: "1h"}
}

func TestJSONFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, loc := newTestJSONStore(t.TempDir())

	ds := createTestDataset(3600, 7200, 10800)
	require.NoError(t, store.Save(ctx, loc, ds))

	loaded, err := store.Load(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, ds.Candles, loaded.Candles)
	assert.Equal(t, models.DatasetMeta{
		Name:         "Bonk",
		Symbol:       "BONK",
		TokenAddress: "TokenMint111",
		PairAddress:  "PoolA",
		Timeframe:    "1h",
		LastUpdated:  "2024-03-01 09:30:00",
		TotalCandles: 3,
	}, loaded.Meta)
}

func TestJSONFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, loc := newTestJSONStore(filepath.Join(dir, "nested"))

	require.NoError(t, store.Save(ctx, loc, createTestDataset(3600)))

	data, err := os.ReadFile(loc.Path())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "{\n    \"meta\": {\n        \"name\": \"Bonk\""), text)
	assert.Less(t, strings.Index(text, `"meta"`), strings.Index(text, `"candles"`))
	assert.Less(t, strings.Index(text, `"timestamp"`), strings.Index(text, `"date_readable"`))
	assert.Equal(t, int64(1), gjson.Get(text, "meta.total_candles").Int())
	assert.Equal(t, "1970-01-01 01:00:00", gjson.Get(text, "candles.0.date_readable").String())

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(loc.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store, loc := newTestJSONStore(t.TempDir())

	require.NoError(t, store.Save(ctx, loc, createTestDataset(3600, 7200, 10800)))
	require.NoError(t, store.Save(ctx, loc, createTestDataset(3600)))

	loaded, err := store.Load(ctx, loc)
	require.NoError(t, err)
	assert.Len(t, loaded.Candles, 1)
	assert.Equal(t, 1, loaded.Meta.TotalCandles)
}

func TestJSONFileStore_LoadMissing(t *testing.T) {
	store, loc := newTestJSONStore(t.TempDir())
	_, err := store.Load(context.Background(), loc)
	assert.True(t, errors.Is(err, ErrDatasetNotFound))
}

func TestJSONFileStore_LoadLegacyArrays(t *testing.T) {
	store, loc := newTestJSONStore(t.TempDir())
	body := `{"meta":{"name":"Bonk","symbol":"BONK","total_candles":7},
		"candles":[[3600,"1","2","0.5","1.5","100"],{"timestamp":7200,"open":1,"high":2,"low":0.5,"close":1.5,"volume":100}]}`
	require.NoError(t, os.WriteFile(loc.Path(), []byte(body), 0644))

	loaded, err := store.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, loaded.Candles, 2)
	assert.Equal(t, models.NewCandle(3600, 1, 2, 0.5, 1.5, 100, time.UTC), loaded.Candles[0])
	assert.Equal(t, "1970-01-01 02:00:00", loaded.Candles[1].DateReadable)
	assert.Equal(t, 7, loaded.Meta.TotalCandles, "stored meta is informational")
}

func TestJSONFileStore_LoadErrors(t *testing.T) {
	tests := map[string]string{
		"invalid json":     `{"meta":`,
		"malformed candle": `{"candles":[[1,2,3]]}`,
		"candles object":   `{"candles":{"a":1}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			store, loc := newTestJSONStore(t.TempDir())
			require.NoError(t, os.WriteFile(loc.Path(), []byte(body), 0644))

			_, err := store.Load(context.Background(), loc)
			var se *StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "load", se.Operation)
			assert.False(t, errors.Is(err, ErrDatasetNotFound))
		})
	}
}

func TestJSONFileStore_SaveRejectsUnordered(t *testing.T) {
	store, loc := newTestJSONStore(t.TempDir())
	err := store.Save(context.Background(), loc, createTestDataset(7200, 3600))
	require.Error(t, err)

	_, statErr := os.Stat(loc.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestJSONFileStore_EmptyDataset(t *testing.T) {
	ctx := context.Background()
	store, loc := newTestJSONStore(t.TempDir())
	require.NoError(t, store.Save(ctx, loc, createTestDataset()))

	data, err := os.ReadFile(loc.Path())
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(data, "candles").IsArray())

	loaded, err := store.Load(ctx, loc)
	require.NoError(t, err)
	assert.Empty(t, loaded.Candles)
}
