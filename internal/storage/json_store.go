package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/tidwall/gjson"
)

// jsonIndent matches the layout of files written by earlier versions of the tool.
const jsonIndent = "    "

// JSONFileStore persists each dataset as one indented JSON document.
type JSONFileStore struct {
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewJSONFileStore creates a file store. loc renders readable dates for
// candles that lack them; nil means time.Local.
func NewJSONFileStore(loc *time.Location, logger *slog.Logger) *JSONFileStore {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &JSONFileStore{loc: loc, now: time.Now, logger: logger}
}

// Load implements DatasetStore.Load. Candles may be stored as keyed records
// or as positional arrays; both are normalized.
func (s *JSONFileStore) Load(ctx context.Context, loc DatasetLocation) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := loc.Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, NewLoadError(path, errors.New("invalid JSON"))
	}
	doc := gjson.ParseBytes(data)

	ds := &models.Dataset{}
	if meta := doc.Get("meta"); meta.IsObject() {
		if err := json.Unmarshal([]byte(meta.Raw), &ds.Meta); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("decode meta: %w", err))
		}
	}

	candles := doc.Get("candles")
	switch {
	case !candles.Exists() || candles.Type == gjson.Null:
		ds.Candles = []models.Candle{}
	default:
		ds.Candles, err = models.NormalizeArray(candles, s.loc)
		if err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	s.logger.Debug("dataset loaded", "path", path, "candles", len(ds.Candles))
	return ds, nil
}

// Save implements DatasetStore.Save. The document is written to a temporary
// file in the same directory and renamed over the target.
func (s *JSONFileStore) Save(ctx context.Context, loc DatasetLocation, ds *models.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := loc.Path()
	if err := prepareDataset(ds, s.now(), s.loc); err != nil {
		return NewSaveError(path, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", jsonIndent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ds); err != nil {
		return NewSaveError(path, fmt.Errorf("encode dataset: %w", err))
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return NewSaveError(path, err)
	}

	s.logger.Debug("dataset saved", "path", path, "candles", len(ds.Candles))
	return nil
}

// writeFileAtomic replaces path with data via a same-directory temp file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
