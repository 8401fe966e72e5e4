package dataset

import (
	"math"

	"github.com/montanaflynn/stats"

	"histdata/internal/domain"
)

// SymbolSummary condenses one validated column.
type SymbolSummary struct {
	Symbol       string
	Days         int
	LastAdjClose float64
	MeanVolume   float64
	ReturnStdev  float64 // sample stdev of daily simple returns; NaN if fewer than two
}

// Summarize reports every column of AdjClose in symbol order. Volume is read
// from the same symbol; ds should already be validated.
func Summarize(ds *domain.DailyDataset) ([]SymbolSummary, error) {
	var out []SymbolSummary
	for _, sym := range ds.AdjClose.Symbols() {
		prices := present(ds.AdjClose.Columns[sym])
		s := SymbolSummary{
			Symbol:       sym,
			Days:         len(prices),
			LastAdjClose: math.NaN(),
			MeanVolume:   math.NaN(),
			ReturnStdev:  math.NaN(),
		}
		if len(prices) > 0 {
			s.LastAdjClose = prices[len(prices)-1]
		}

		if vol := present(ds.Volume.Columns[sym]); len(vol) > 0 {
			mean, err := stats.Mean(vol)
			if err != nil {
				return nil, err
			}
			s.MeanVolume = mean
		}

		var returns stats.Float64Data
		for i := 1; i < len(prices); i++ {
			if prices[i-1] != 0 {
				returns = append(returns, prices[i]/prices[i-1]-1)
			}
		}
		if len(returns) > 1 {
			sd, err := stats.StandardDeviationSample(returns)
			if err != nil {
				return nil, err
			}
			s.ReturnStdev = sd
		}
		out = append(out, s)
	}
	return out, nil
}

func present(col []float64) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
