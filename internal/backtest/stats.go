// Package backtest turns per-period log-return series into standardized
// performance statistics and defines the template concrete strategies plug
// into.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInsufficientData marks a series too short or too degenerate for a
// statistic. Statistics fail loudly rather than returning NaN-propagated
// garbage.
var ErrInsufficientData = errors.New("insufficient data for statistic")

// Sum adds the entries of a log-return series, skipping NaN. Skipping NaN
// mirrors the dataframe convention: the first bar's return is always NaN and
// coercion failures may add more.
func Sum(r []float64) float64 {
	var total float64
	for _, v := range r {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Mean is the arithmetic mean over the non-NaN entries, NaN when there are
// none.
func Mean(r []float64) float64 {
	var total float64
	var n int
	for _, v := range r {
		if !math.IsNaN(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// Std is the sample standard deviation (Bessel's correction, n-1) over the
// non-NaN entries, NaN when fewer than two remain. The same convention feeds
// AnnualizedStd and Sharpe.
func Std(r []float64) float64 {
	mean := Mean(r)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	var sq float64
	var n int
	for _, v := range r {
		if !math.IsNaN(v) {
			d := v - mean
			sq += d * d
			n++
		}
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sq / float64(n-1))
}

// Multiple is the compounded growth factor implied by summed log-returns:
// exp(sum(r)).
func Multiple(r []float64) float64 {
	return math.Exp(Sum(r))
}

// CAGR annualizes the multiple over the calendar span of the series:
// multiple^(periodsPerYear/spanDays) - 1. It is undefined for zero elapsed
// time and returns ErrInsufficientData instead of infinity.
func CAGR(times []time.Time, r []float64, periodsPerYear float64) (float64, error) {
	if len(times) < 2 {
		return 0, fmt.Errorf("%w: CAGR needs at least two timestamps, got %d", ErrInsufficientData, len(times))
	}
	spanDays := times[len(times)-1].Sub(times[0]).Hours() / 24
	if spanDays == 0 {
		return 0, fmt.Errorf("%w: CAGR undefined over a zero-day span", ErrInsufficientData)
	}
	return math.Pow(Multiple(r), periodsPerYear/spanDays) - 1, nil
}

// AnnualizedMean scales the mean per-trade return to a yearly figure.
func AnnualizedMean(r []float64, tradesPerYear float64) float64 {
	return Mean(r) * tradesPerYear
}

// AnnualizedStd scales the per-trade volatility to a yearly figure.
func AnnualizedStd(r []float64, tradesPerYear float64) float64 {
	return Std(r) * math.Sqrt(tradesPerYear)
}

// Sharpe is the annualized mean over the annualized standard deviation. A
// series with zero variance has no defined Sharpe ratio and yields NaN.
func Sharpe(r []float64, tradesPerYear float64) float64 {
	sd := Std(r)
	if sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	return AnnualizedMean(r, tradesPerYear) / AnnualizedStd(r, tradesPerYear)
}

