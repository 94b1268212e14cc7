// Package series holds the canonical time-indexed OHLCV representation that
// the loader produces and the backtester consumes. Every transform returns a
// new Series; bars are never mutated in place.
package series

import (
	"math"
	"time"
)

// Bar is one OHLCV observation. Time is the bar open time in UTC; timestamps
// within a Series are unique and monotonically increasing.
type Bar struct {
	Time   time.Time
	Open   Value
	High   Value
	Low    Value
	Close  Value
	Volume Value
}

// Series is an ordered sequence of bars.
type Series struct {
	Bars []Bar
}

// New copies bars into a fresh Series so the caller's slice stays independent.
func New(bars []Bar) Series {
	out := make([]Bar, len(bars))
	copy(out, bars)
	return Series{Bars: out}
}

// Len returns the number of bars.
func (s Series) Len() int {
	return len(s.Bars)
}

// Empty reports whether the series has no bars.
func (s Series) Empty() bool {
	return len(s.Bars) == 0
}

// Slice returns the bars in [start, end] inclusive as a new Series. A zero
// end means open-ended ("latest available"). A start beyond the data range
// yields an empty series, not an error.
func (s Series) Slice(start, end time.Time) Series {
	var out []Bar
	for _, bar := range s.Bars {
		if bar.Time.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Time.After(end) {
			break
		}
		out = append(out, bar)
	}
	return Series{Bars: out}
}

// Times returns the bar timestamps in order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.Time
	}
	return out
}

// Closes returns the close column as floats, NaN for invalid values.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.Close.AsFloat()
	}
	return out
}

// Volumes returns the volume column as floats, NaN for invalid values.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		out[i] = bar.Volume.AsFloat()
	}
	return out
}

// LogReturns derives the per-bar log-return column: ln(close[t]/close[t-1]).
// The first bar has no predecessor and is NaN, as is any bar whose close (or
// predecessor close) is invalid or nonpositive.
func (s Series) LogReturns() []float64 {
	out := make([]float64, len(s.Bars))
	for i := range s.Bars {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		prev := s.Bars[i-1].Close
		cur := s.Bars[i].Close
		if !prev.Valid || !cur.Valid || prev.Float <= 0 || cur.Float <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(cur.Float / prev.Float)
	}
	return out
}

// SpanDays is the calendar time between the first and last bar, in days.
// Zero for series shorter than two bars.
func (s Series) SpanDays() float64 {
	if len(s.Bars) < 2 {
		return 0
	}
	span := s.Bars[len(s.Bars)-1].Time.Sub(s.Bars[0].Time)
	return span.Hours() / 24
}
