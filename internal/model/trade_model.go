// Package model holds the immutable per-backtest configuration entity and
// the earliest-timestamp resolver it composes.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"binance-backtest-go/internal/binance"
	"binance-backtest-go/internal/series"
)

// DateLayout is the accepted format for explicit start/end dates.
const DateLayout = "2006-01-02 15:04:05"

var (
	// ErrInvalidModel marks configuration errors caught before any I/O.
	ErrInvalidModel = errors.New("invalid trade model")
	// ErrInsufficientData marks series too short for a derived statistic.
	ErrInsufficientData = errors.New("insufficient data")
)

// TradeModelConfig is the caller-supplied configuration for one backtest run.
type TradeModelConfig struct {
	Symbol         string
	Interval       string
	MarketType     string
	Start          string // optional, DateLayout; empty means earliest available
	End            string // optional, DateLayout; empty means latest available
	Limit          int
	Commission     float64
	Slippage       float64
	PeriodsPerYear float64
}

// TradeModel describes one instrument/interval/date-range/cost profile. It is
// constructed once per run and read-only thereafter.
type TradeModel struct {
	Symbol         string
	Interval       binance.Interval
	Market         binance.MarketType
	Start          string
	End            string
	Limit          int
	Commission     float64
	Slippage       float64
	PeriodsPerYear float64

	startTime time.Time // zero when Start is empty
	endTime   time.Time // zero when End is empty
	resolver  *TimestampResolver
}

// NewTradeModel validates the configuration and binds the resolver used for
// the effective start. All validation happens here, before any I/O.
func NewTradeModel(cfg TradeModelConfig, resolver *TimestampResolver) (*TradeModel, error) {
	interval, err := binance.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	market, err := binance.ParseMarketType(cfg.MarketType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidModel)
	}

	limit := cfg.Limit
	if limit == 0 {
		limit = 1000
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidModel, cfg.Limit)
	}
	if cfg.Commission < 0 || cfg.Commission >= 1 {
		return nil, fmt.Errorf("%w: commission %v outside [0,1)", ErrInvalidModel, cfg.Commission)
	}
	if cfg.Slippage < 0 || cfg.Slippage >= 1 {
		return nil, fmt.Errorf("%w: slippage %v outside [0,1)", ErrInvalidModel, cfg.Slippage)
	}
	periodsPerYear := cfg.PeriodsPerYear
	if periodsPerYear == 0 {
		periodsPerYear = 365.25
	}
	if periodsPerYear < 0 {
		return nil, fmt.Errorf("%w: trading periods per year must be positive", ErrInvalidModel)
	}

	var startTime, endTime time.Time
	if cfg.Start != "" {
		startTime, err = time.ParseInLocation(DateLayout, cfg.Start, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed start date %q: %v", ErrInvalidModel, cfg.Start, err)
		}
	}
	if cfg.End != "" {
		endTime, err = time.ParseInLocation(DateLayout, cfg.End, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed end date %q: %v", ErrInvalidModel, cfg.End, err)
		}
	}
	if !startTime.IsZero() && !endTime.IsZero() && !startTime.Before(endTime) {
		return nil, fmt.Errorf("%w: start %q is not before end %q", ErrInvalidModel, cfg.Start, cfg.End)
	}
	if cfg.Start == "" && resolver == nil {
		return nil, fmt.Errorf("%w: no start date and no timestamp resolver", ErrInvalidModel)
	}

	return &TradeModel{
		Symbol:         cfg.Symbol,
		Interval:       interval,
		Market:         market,
		Start:          cfg.Start,
		End:            cfg.End,
		Limit:          limit,
		Commission:     cfg.Commission,
		Slippage:       cfg.Slippage,
		PeriodsPerYear: periodsPerYear,
		startTime:      startTime,
		endTime:        endTime,
		resolver:       resolver,
	}, nil
}

// EffectiveStart returns the RFC3339 UTC timestamp the backtest starts at:
// the explicit start when provided, otherwise the resolved earliest valid
// timestamp for the instrument.
func (m *TradeModel) EffectiveStart(ctx context.Context) (string, error) {
	if !m.startTime.IsZero() {
		return m.startTime.Format(time.RFC3339), nil
	}
	return m.resolver.Resolve(ctx, Key{Symbol: m.Symbol, Interval: m.Interval, Market: m.Market})
}

// StartTime returns EffectiveStart parsed back to a time.Time.
func (m *TradeModel) StartTime(ctx context.Context) (time.Time, error) {
	if !m.startTime.IsZero() {
		return m.startTime, nil
	}
	ts, err := m.EffectiveStart(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse resolved start %q: %w", ts, err)
	}
	return t.UTC(), nil
}

// EndTime returns the explicit end, and false when the range is open-ended.
func (m *TradeModel) EndTime() (time.Time, bool) {
	return m.endTime, !m.endTime.IsZero()
}

// TradeCost is the additive log-return penalty charged once per round-trip
// trade: log(1-commission) + log(1-slippage). Always <= 0.
func (m *TradeModel) TradeCost() float64 {
	return math.Log(1-m.Commission) + math.Log(1-m.Slippage)
}

// TradesPerYear scales the bar count of the prepared series to a yearly rate:
// bars / (span in days / trading periods per year). Needs a time span, so at
// least two bars.
func (m *TradeModel) TradesPerYear(s series.Series) (float64, error) {
	if s.Len() < 2 {
		return 0, fmt.Errorf("%w: trades per year needs at least 2 bars, got %d", ErrInsufficientData, s.Len())
	}
	span := s.SpanDays()
	if span == 0 {
		return 0, fmt.Errorf("%w: zero time span across %d bars", ErrInsufficientData, s.Len())
	}
	return float64(s.Len()) / (span / m.PeriodsPerYear), nil
}

// PreparedSeries slices the raw series to [effective start, end]. The slicing
// is pure; an effective start past the data range yields an empty series and
// downstream statistics are expected to reject it explicitly.
func (m *TradeModel) PreparedSeries(ctx context.Context, raw series.Series) (series.Series, error) {
	start, err := m.StartTime(ctx)
	if err != nil {
		return series.Series{}, err
	}
	return raw.Slice(start, m.endTime), nil
}
