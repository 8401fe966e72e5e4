// Package dataset turns raw daily series into the close, adjusted close and
// volume tables and validates them.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"histdata/internal/domain"
)

// RowDateLayout is the date format of the Date column in raw series.
const RowDateLayout = "2006-01-02"

// ErrMissingColumn reports a raw series lacking a required column.
var ErrMissingColumn = errors.New("missing column")

// ErrDuplicateDate reports a raw series with more than one row for a date.
var ErrDuplicateDate = errors.New("duplicate date")

// Assembly describes the outcome of Assemble.
type Assembly struct {
	// HadFailures is true when at least one symbol contributed no column.
	HadFailures bool
	// Failures maps each such symbol to the reason.
	Failures map[string]error
}

// Bar is one parsed row of a raw series.
type Bar struct {
	Date     time.Time
	Close    float64
	AdjClose float64
	Volume   float64
}

// Assemble builds a dataset from per-symbol results. Every successful
// series contributes one column to each table, outer-joined on date with NaN
// gaps. Failed results, and series that cannot be parsed, contribute nothing
// and are reported in the Assembly.
func Assemble(results map[string]domain.FetchResult) (*domain.DailyDataset, Assembly) {
	asm := Assembly{Failures: make(map[string]error)}
	parsed := make(map[string]map[time.Time]Bar, len(results))
	dateSet := make(map[time.Time]struct{})

	for sym, r := range results {
		if !r.OK() {
			asm.Failures[sym] = r.Err
			continue
		}
		bars, err := ParseSeries(strings.NewReader(r.Series))
		if err != nil {
			asm.Failures[sym] = fmt.Errorf("parsing %s: %w", sym, err)
			continue
		}
		byDate := make(map[time.Time]Bar, len(bars))
		for _, b := range bars {
			byDate[b.Date] = b
			dateSet[b.Date] = struct{}{}
		}
		parsed[sym] = byDate
	}
	asm.HadFailures = len(asm.Failures) > 0

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := domain.NewTable(dates)
	ds := &domain.DailyDataset{
		Close:    index,
		AdjClose: index.Clone(),
		Volume:   index.Clone(),
	}
	for sym, byDate := range parsed {
		closes := make([]float64, len(dates))
		adj := make([]float64, len(dates))
		vol := make([]float64, len(dates))
		for i, d := range dates {
			b, ok := byDate[d]
			if !ok {
				closes[i], adj[i], vol[i] = math.NaN(), math.NaN(), math.NaN()
				continue
			}
			closes[i], adj[i], vol[i] = b.Close, b.AdjClose, b.Volume
		}
		ds.Close.Columns[sym] = closes
		ds.AdjClose.Columns[sym] = adj
		ds.Volume.Columns[sym] = vol
	}
	return ds, asm
}

// ParseSeries reads a raw daily series. Columns are located by header name;
// empty, "null" and "NaN" cells become NaN. A date may appear only once.
func ParseSeries(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	cols := [4]int{}
	for i, name := range []string{"Date", "Close", "Adj Close", "Volume"} {
		c, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
		cols[i] = c
	}

	var bars []Bar
	seen := make(map[time.Time]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		field := func(c int) string {
			if c < len(rec) {
				return strings.TrimSpace(rec[c])
			}
			return ""
		}

		d, err := time.Parse(RowDateLayout, field(cols[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("line %d: %w %s (first on line %d)", line, ErrDuplicateDate, d.Format(RowDateLayout), prev)
		}
		seen[d] = line

		b := Bar{Date: d}
		for i, dst := range []*float64{&b.Close, &b.AdjClose, &b.Volume} {
			v, err := parseValue(field(cols[i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			*dst = v
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseValue(s string) (float64, error) {
	switch s {
	case "", "null", "NaN", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
