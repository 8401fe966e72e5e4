package dataset

import (
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"histdata/internal/domain"
)

// Report is the outcome of Validate.
type Report struct {
	Valid             bool
	EndDateMismatch   bool
	NullColumns       []string // AdjClose or Volume contain NaN
	ZeroVolumeColumns []string
	Dropped           []string // removed from AdjClose and Volume
}

// Validate checks ds in place and repairs what it can.
//
// The latest date of AdjClose and of Volume must equal end; a nil end skips
// that check. Columns with a missing adjusted close or volume, or with any
// zero volume, are dropped from AdjClose and Volume. Close is left intact.
// Finally AdjClose and Volume are sorted by date.
func Validate(ds *domain.DailyDataset, end *time.Time, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "validator")
	rep := Report{Valid: true}

	if end != nil {
		adjLast, _ := ds.AdjClose.LastDate()
		volLast, _ := ds.Volume.LastDate()
		if !adjLast.Equal(*end) || !volLast.Equal(*end) {
			rep.EndDateMismatch = true
			rep.Valid = false
			log.Error("end date mismatch",
				"want", end.Format(domain.DateLayout),
				"adj_close", formatDate(adjLast),
				"volume", formatDate(volLast),
			)
		}
	}

	rep.NullColumns = unique(append(columnsWhere(ds.AdjClose, math.IsNaN), columnsWhere(ds.Volume, math.IsNaN)...))
	if len(rep.NullColumns) > 0 {
		rep.Valid = false
		log.Error("data contains nulls", "symbols", strings.Join(rep.NullColumns, ", "))
	}

	rep.ZeroVolumeColumns = columnsWhere(ds.Volume, func(v float64) bool { return v == 0 })
	if len(rep.ZeroVolumeColumns) > 0 {
		rep.Valid = false
		log.Error("volume data contains zeros", "symbols", strings.Join(rep.ZeroVolumeColumns, ", "))
	}

	rep.Dropped = unique(append(slices.Clone(rep.NullColumns), rep.ZeroVolumeColumns...))
	if !rep.Valid {
		log.Error("dataset validation failed")
		if len(rep.Dropped) > 0 {
			log.Warn("dropping columns", "symbols", strings.Join(rep.Dropped, ", "))
			ds.AdjClose.Drop(rep.Dropped...)
			ds.Volume.Drop(rep.Dropped...)
		}
	}

	ds.AdjClose.SortByDate()
	ds.Volume.SortByDate()
	return rep
}

// columnsWhere returns the sorted symbols with at least one value matching.
func columnsWhere(t *domain.Table, match func(float64) bool) []string {
	var out []string
	for sym, col := range t.Columns {
		if slices.ContainsFunc(col, match) {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

func unique(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	sort.Strings(s)
	return slices.Compact(s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(domain.DateLayout)
}
