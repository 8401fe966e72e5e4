package store

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"histdata/internal/domain"
)

// SnapshotFile is the name of the dataset snapshot inside an output directory.
const SnapshotFile = "daily.parquet"

// Dataset field names used in snapshot records.
const (
	FieldClose    = "close"
	FieldAdjClose = "adj_close"
	FieldVolume   = "volume"
)

var nan = math.NaN()

// Cache is the disk-backed memo of one run. It is rooted at the run's output
// directory, which encodes the date window:
//
//	<Dir>/<SYMBOL>.csv     raw response per symbol
//	<Dir>/daily.parquet    validated dataset snapshot
type Cache struct {
	Dir string
}

// NewCache creates a Cache rooted at dir. The directory is not created until
// EnsureDir or a save is called.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

// EnsureDir creates the output directory if needed.
func (c *Cache) EnsureDir() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", c.Dir, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// RawSeriesPath returns the cache file holding symbol's raw response.
func (c *Cache) RawSeriesPath(symbol string) string {
	return filepath.Join(c.Dir, symbol+".csv")
}

// DatasetPath returns the snapshot file path.
func (c *Cache) DatasetPath() string {
	return filepath.Join(c.Dir, SnapshotFile)
}

// ---------------------------------------------------------------------------
// Raw series
// ---------------------------------------------------------------------------

// LoadRawSeries returns a previously fetched raw response. ok is false on a
// miss; err is only set for failures other than a missing file.
func (c *Cache) LoadRawSeries(symbol string) (series string, ok bool, err error) {
	data, err := os.ReadFile(c.RawSeriesPath(symbol))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading raw series for %s: %w", symbol, err)
	}
	return string(data), true, nil
}

// SaveRawSeries persists a fetched raw response verbatim.
func (c *Cache) SaveRawSeries(symbol, series string) error {
	if err := writeFileAtomic(c.RawSeriesPath(symbol), func(path string) error {
		return os.WriteFile(path, []byte(series), 0o644)
	}); err != nil {
		return fmt.Errorf("writing raw series for %s: %w", symbol, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dataset snapshot
// ---------------------------------------------------------------------------

// DatasetRecord is the Parquet schema of a snapshot: one row per
// (field, date, symbol) cell, missing values stored as NaN.
type DatasetRecord struct {
	Field  string  `parquet:"field"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Symbol string  `parquet:"symbol"`
	Value  float64 `parquet:"value"`
}

// LoadDataset decodes the snapshot if one exists. ok is false on a miss.
func (c *Cache) LoadDataset() (ds *domain.DailyDataset, ok bool, err error) {
	path := c.DatasetPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat snapshot: %w", err)
	}

	records, err := parquet.ReadFile[DatasetRecord](path)
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return decodeDataset(records), true, nil
}

// SaveDataset writes the dataset snapshot, replacing any previous one.
func (c *Cache) SaveDataset(ds *domain.DailyDataset) error {
	records := encodeDataset(ds)
	if err := writeFileAtomic(c.DatasetPath(), func(path string) error {
		return parquet.WriteFile(path, records)
	}); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func encodeDataset(ds *domain.DailyDataset) []DatasetRecord {
	var records []DatasetRecord
	for _, f := range []struct {
		name  string
		table *domain.Table
	}{
		{FieldClose, ds.Close},
		{FieldAdjClose, ds.AdjClose},
		{FieldVolume, ds.Volume},
	} {
		if f.table == nil {
			continue
		}
		symbols := f.table.Symbols()
		for i, d := range f.table.Dates {
			for _, sym := range symbols {
				records = append(records, DatasetRecord{
					Field:  f.name,
					Date:   d.UnixMilli(),
					Symbol: sym,
					Value:  f.table.Columns[sym][i],
				})
			}
		}
	}
	return records
}

// decodeDataset rebuilds the tables, keeping dates and symbols in the order
// they were written.
func decodeDataset(records []DatasetRecord) *domain.DailyDataset {
	type builder struct {
		dates   []time.Time
		dateIdx map[int64]int
		cells   map[string]map[int]float64
		symbols []string
	}
	builders := map[string]*builder{}
	get := func(field string) *builder {
		b, ok := builders[field]
		if !ok {
			b = &builder{dateIdx: map[int64]int{}, cells: map[string]map[int]float64{}}
			builders[field] = b
		}
		return b
	}
	for _, field := range []string{FieldClose, FieldAdjClose, FieldVolume} {
		get(field)
	}

	for _, r := range records {
		b := get(r.Field)
		i, ok := b.dateIdx[r.Date]
		if !ok {
			i = len(b.dates)
			b.dateIdx[r.Date] = i
			b.dates = append(b.dates, time.UnixMilli(r.Date).UTC())
		}
		col, ok := b.cells[r.Symbol]
		if !ok {
			col = map[int]float64{}
			b.cells[r.Symbol] = col
			b.symbols = append(b.symbols, r.Symbol)
		}
		col[i] = r.Value
	}

	build := func(field string) *domain.Table {
		b := builders[field]
		t := domain.NewTable(b.dates)
		if t.Dates == nil {
			t.Dates = []time.Time{}
		}
		for _, sym := range b.symbols {
			values := make([]float64, len(b.dates))
			for i := range values {
				values[i] = nan
			}
			for i, v := range b.cells[sym] {
				values[i] = v
			}
			t.Columns[sym] = values
		}
		return t
	}

	return &domain.DailyDataset{
		Close:    build(FieldClose),
		AdjClose: build(FieldAdjClose),
		Volume:   build(FieldVolume),
	}
}

// writeFileAtomic writes through a temporary sibling file and renames it into
// place, so readers never observe a partial file.
func writeFileAtomic(path string, write func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
