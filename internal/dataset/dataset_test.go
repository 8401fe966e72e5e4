package dataset

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"histdata/internal/domain"
	"histdata/internal/util"
)

var nan = math.NaN()

func day(d int) time.Time { return time.Date(2016, 1, d, 0, 0, 0, 0, time.UTC) }

func raw(rows ...string) string {
	return domain.RawHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func TestParseSeries(t *testing.T) {
	in := raw(
		"2016-01-15,1,2,0.5,1.5,100,1.4",
		"2016-01-14,1,2,0.5,null,,1.3",
	)
	bars, err := ParseSeries(strings.NewReader(in))
	require.NoError(t, err)

	want := []Bar{
		{Date: day(15), Close: 1.5, AdjClose: 1.4, Volume: 100},
		{Date: day(14), Close: nan, AdjClose: 1.3, Volume: nan},
	}
	if diff := cmp.Diff(want, bars, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("ParseSeries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSeriesErrors(t *testing.T) {
	tests := map[string]string{
		"missing column": "Date,Open,High,Low,Close\n2016-01-15,1,2,3,4\n",
		"bad date":       raw("15/01/2016,1,2,0.5,1.5,100,1.4"),
		"bad number":     raw("2016-01-15,1,2,0.5,abc,100,1.4"),
		"empty":          "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeries(strings.NewReader(in))
			require.Error(t, err)
		})
	}
}

func TestAssemble(t *testing.T) {
	results := map[string]domain.FetchResult{
		"AAA": domain.Ok(raw(
			"2016-01-13,0,0,0,10,100,9",
			"2016-01-12,0,0,0,11,110,10",
		)),
		"BBB":  domain.Ok(raw("2016-01-13,0,0,0,20,200,19")),
		"DOWN": domain.Failed(errors.New("timeout")),
		"JUNK": domain.Ok("Date,Close\nnot,a,series\n"),
	}

	ds, asm := Assemble(results)

	require.True(t, asm.HadFailures)
	require.ElementsMatch(t, []string{"DOWN", "JUNK"}, keys(asm.Failures))

	wantDates := []time.Time{day(12), day(13)}
	want := &domain.DailyDataset{
		Close: &domain.Table{Dates: wantDates, Columns: map[string][]float64{
			"AAA": {11, 10}, "BBB": {nan, 20},
		}},
		AdjClose: &domain.Table{Dates: wantDates, Columns: map[string][]float64{
			"AAA": {10, 9}, "BBB": {nan, 19},
		}},
		Volume: &domain.Table{Dates: wantDates, Columns: map[string][]float64{
			"AAA": {110, 100}, "BBB": {nan, 200},
		}},
	}
	if diff := cmp.Diff(want, ds, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Assemble mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleDuplicateDate(t *testing.T) {
	results := map[string]domain.FetchResult{
		"DUP": domain.Ok(raw(
			"2016-01-15,0,0,0,1,100,1",
			"2016-01-15,0,0,0,2,200,2",
		)),
		"OK": domain.Ok(raw("2016-01-15,0,0,0,3,300,3")),
	}

	ds, asm := Assemble(results)

	require.True(t, asm.HadFailures)
	require.ErrorIs(t, asm.Failures["DUP"], ErrDuplicateDate)
	require.Equal(t, []string{"OK"}, ds.Close.Symbols())
}

func TestAssembleNoResults(t *testing.T) {
	ds, asm := Assemble(map[string]domain.FetchResult{
		"A": domain.Failed(nil),
	})
	require.True(t, ds.Empty())
	require.True(t, asm.HadFailures)
}

func TestValidateDropsBadColumns(t *testing.T) {
	results := map[string]domain.FetchResult{
		"GOOD": domain.Ok(raw("2016-01-14,0,0,0,1,10,1", "2016-01-15,0,0,0,1,10,1")),
		"ZERO": domain.Ok(raw("2016-01-14,0,0,0,1,0,1", "2016-01-15,0,0,0,1,10,1")),
		"GAP":  domain.Ok(raw("2016-01-15,0,0,0,1,10,1")),
	}
	ds, _ := Assemble(results)
	end := day(15)

	rep := Validate(ds, &end, util.Discard())

	require.False(t, rep.Valid)
	require.False(t, rep.EndDateMismatch)
	require.Equal(t, []string{"GAP"}, rep.NullColumns)
	require.Equal(t, []string{"ZERO"}, rep.ZeroVolumeColumns)
	require.Equal(t, []string{"GAP", "ZERO"}, rep.Dropped)

	require.Equal(t, []string{"GOOD"}, ds.AdjClose.Symbols())
	require.Equal(t, []string{"GOOD"}, ds.Volume.Symbols())
	require.Equal(t, []string{"GAP", "GOOD", "ZERO"}, ds.Close.Symbols(), "close keeps every column")
}

func TestValidateEndDateMismatch(t *testing.T) {
	ds, _ := Assemble(map[string]domain.FetchResult{
		"A": domain.Ok(raw("2016-01-14,0,0,0,1,10,1")),
	})
	end := day(15)

	rep := Validate(ds, &end, util.Discard())

	require.False(t, rep.Valid)
	require.True(t, rep.EndDateMismatch)
	require.Empty(t, rep.Dropped)
	require.Equal(t, []string{"A"}, ds.AdjClose.Symbols())
}

func TestValidateSortsAscending(t *testing.T) {
	ds := &domain.DailyDataset{
		Close: domain.NewTable([]time.Time{day(15), day(13), day(14)}),
		AdjClose: &domain.Table{
			Dates:   []time.Time{day(15), day(13), day(14)},
			Columns: map[string][]float64{"A": {3, 1, 2}},
		},
		Volume: &domain.Table{
			Dates:   []time.Time{day(15), day(13), day(14)},
			Columns: map[string][]float64{"A": {30, 10, 20}},
		},
	}

	rep := Validate(ds, nil, util.Discard())

	require.True(t, rep.Valid)
	require.Equal(t, []time.Time{day(13), day(14), day(15)}, ds.AdjClose.Dates)
	require.Equal(t, []float64{1, 2, 3}, ds.AdjClose.Columns["A"])
	require.Equal(t, []float64{10, 20, 30}, ds.Volume.Columns["A"])
}

func keys(m map[string]error) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSummarize(t *testing.T) {
	ds := &domain.DailyDataset{
		Close: domain.NewTable(nil),
		AdjClose: &domain.Table{
			Dates:   []time.Time{day(13), day(14), day(15)},
			Columns: map[string][]float64{"A": {100, 110, 99}, "B": {5, nan, nan}},
		},
		Volume: &domain.Table{
			Dates:   []time.Time{day(13), day(14), day(15)},
			Columns: map[string][]float64{"A": {10, 20, 30}, "B": {1, 1, 1}},
		},
	}

	got, err := Summarize(ds)
	require.NoError(t, err)
	require.Len(t, got, 2)

	a := got[0]
	require.Equal(t, "A", a.Symbol)
	require.Equal(t, 3, a.Days)
	require.Equal(t, 99.0, a.LastAdjClose)
	require.Equal(t, 20.0, a.MeanVolume)
	// returns 0.1 and -0.1: sample stdev is sqrt(0.02)
	require.InDelta(t, math.Sqrt(0.02), a.ReturnStdev, 1e-9)

	b := got[1]
	require.Equal(t, 1, b.Days)
	require.Equal(t, 5.0, b.LastAdjClose)
	require.True(t, math.IsNaN(b.ReturnStdev))
}
