package backtest

import (
	"math"
	"time"
)

// Params is one strategy parameter combination, keyed by parameter name.
type Params map[string]float64

// Report is the standardized performance summary of one evaluation.
type Report struct {
	StrategyMultiple float64
	BuyHoldMultiple  float64
	Outperformance   float64
	CAGR             float64
	AnnualizedMean   float64
	AnnualizedStd    float64
	SharpeRatio      float64
}

// ReturnSeries pairs a return column with its time index.
type ReturnSeries struct {
	Times  []time.Time
	Values []float64
}

// Result carries everything one evaluation produced: the originating
// parameters, the report, the trade count and both return series for
// downstream plotting.
type Result struct {
	Strategy        string
	Params          Params
	Report          Report
	Trades          int
	StrategyReturns ReturnSeries
	BuyHoldReturns  ReturnSeries
}

// Column names of the plot-ready comparison table.
const (
	ColumnBuyHold  = "Cumulative Returns Buy&Hold"
	ColumnStrategy = "Cumulative Returns Strategy"
)

// CumulativeCurves exponentiates the running sums of both return series,
// producing the two comparison columns. NaN returns contribute nothing to
// the running sum.
func CumulativeCurves(res Result) (times []time.Time, buyHold, strategy []float64) {
	times = res.BuyHoldReturns.Times
	buyHold = cumulate(res.BuyHoldReturns.Values)
	strategy = cumulate(res.StrategyReturns.Values)
	return times, buyHold, strategy
}

func cumulate(r []float64) []float64 {
	out := make([]float64, len(r))
	var running float64
	for i, v := range r {
		if !math.IsNaN(v) {
			running += v
		}
		out[i] = math.Exp(running)
	}
	return out
}
