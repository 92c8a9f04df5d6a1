package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// MemoryStore keeps datasets in a map keyed by DatasetLocation.Key.
// It is safe for concurrent use and hands out copies.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
	now      func() time.Time
	loc      *time.Location
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(loc *time.Location, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{
		datasets: make(map[string]*models.Dataset),
		now:      time.Now,
		loc:      loc,
		logger:   logger,
	}
}

// Load implements DatasetStore.Load.
func (m *MemoryStore) Load(ctx context.Context, loc DatasetLocation) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ds, ok := m.datasets[loc.Key()]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return cloneDataset(ds), nil
}

// Save implements DatasetStore.Save.
func (m *MemoryStore) Save(ctx context.Context, loc DatasetLocation, ds *models.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareDataset(ds, m.now(), m.loc); err != nil {
		return NewSaveError(loc.Key(), err)
	}

	m.mu.Lock()
	m.datasets[loc.Key()] = cloneDataset(ds)
	m.mu.Unlock()

	m.logger.Debug("dataset stored in memory", "key", loc.Key(), "candles", len(ds.Candles))
	return nil
}

// Stats summarizes every dataset held by the store.
func (m *MemoryStore) Stats() StorageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := StorageStats{TotalDatasets: len(m.datasets)}
	var (
		overall models.TimeRange
		seen    bool
	)
	for _, ds := range m.datasets {
		stats.TotalCandles += int64(len(ds.Candles))
		r, ok := ds.Bounds()
		if !ok {
			continue
		}
		if !seen {
			overall, seen = r, true
			continue
		}
		overall.Min = min(overall.Min, r.Min)
		overall.Max = max(overall.Max, r.Max)
	}
	if seen {
		stats.EarliestData = time.Unix(overall.Min, 0).UTC()
		stats.LatestData = time.Unix(overall.Max, 0).UTC()
	}
	return stats
}
