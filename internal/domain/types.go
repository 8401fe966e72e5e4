// Package domain holds the value types shared by the acquisition pipeline:
// catalog symbols, fetch requests and results, and the daily dataset tables.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// RawHeader is the exact first line every raw daily series must start with.
const RawHeader = "Date,Open,High,Low,Close,Volume,Adj Close"

// DateLayout is the compact date format used in configuration and output
// directory names.
const DateLayout = "20060102"

// ErrBadHeader reports a response body that does not start with RawHeader.
var ErrBadHeader = errors.New("unexpected response header")

// ---------------------------------------------------------------------------
// Catalog and requests
// ---------------------------------------------------------------------------

// Symbol is one row of the symbol catalog.
type Symbol struct {
	Index   int
	Name    string
	Enabled bool
}

// DateRange is a fetch window. Either bound may be nil; a nil End means the
// request is open-ended.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// ParseDateRange builds a DateRange from two YYYYMMDD strings. Empty strings
// leave the corresponding bound unset.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return r, fmt.Errorf("parsing start date %q: %w", start, err)
		}
		r.Start = &t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return r, fmt.Errorf("parsing end date %q: %w", end, err)
		}
		r.End = &t
	}
	return r, nil
}

// FetchRequest is a single network fetch for one symbol.
type FetchRequest struct {
	Symbol     string
	URL        string
	OutputPath string // raw-series cache file for this symbol
}

// FetchResult is the outcome of acquiring one symbol's raw series: either a
// series (Err == nil) or a failure reason.
type FetchResult struct {
	Series string
	Err    error
	Cached bool // series was read from the raw-series cache
}

// Ok returns a successful result carrying series.
func Ok(series string) FetchResult { return FetchResult{Series: series} }

// Failed returns a failed result carrying reason.
func Failed(reason error) FetchResult {
	if reason == nil {
		reason = errors.New("unknown failure")
	}
	return FetchResult{Err: reason}
}

// OK reports whether the result carries a series.
func (r FetchResult) OK() bool { return r.Err == nil }

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// Table is a date-indexed set of numeric columns keyed by symbol. Every
// column has exactly len(Dates) values; missing values are NaN.
type Table struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// NewTable returns an empty table over the given dates.
func NewTable(dates []time.Time) *Table {
	return &Table{
		Dates:   dates,
		Columns: make(map[string][]float64),
	}
}

// Symbols returns the column names in ascending order.
func (t *Table) Symbols() []string {
	out := make([]string, 0, len(t.Columns))
	for s := range t.Columns {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LastDate returns the maximum date of the index.
func (t *Table) LastDate() (time.Time, bool) {
	if len(t.Dates) == 0 {
		return time.Time{}, false
	}
	last := t.Dates[0]
	for _, d := range t.Dates[1:] {
		if d.After(last) {
			last = d
		}
	}
	return last, true
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(symbols ...string) {
	for _, s := range symbols {
		delete(t.Columns, s)
	}
}

// SortByDate reorders the index ascending, permuting every column with it.
func (t *Table) SortByDate() {
	order := make([]int, len(t.Dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Dates[order[a]].Before(t.Dates[order[b]])
	})

	dates := make([]time.Time, len(order))
	for i, j := range order {
		dates[i] = t.Dates[j]
	}
	t.Dates = dates

	for sym, col := range t.Columns {
		sorted := make([]float64, len(order))
		for i, j := range order {
			sorted[i] = col[j]
		}
		t.Columns[sym] = sorted
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable(slices.Clone(t.Dates))
	for sym, col := range t.Columns {
		c.Columns[sym] = slices.Clone(col)
	}
	return c
}

// DailyDataset is the assembled output of a run.
type DailyDataset struct {
	Close    *Table
	AdjClose *Table
	Volume   *Table
}

// Empty reports whether the dataset carries no columns at all.
func (d *DailyDataset) Empty() bool {
	return d == nil || (len(d.Close.Columns) == 0 && len(d.AdjClose.Columns) == 0 && len(d.Volume.Columns) == 0)
}
