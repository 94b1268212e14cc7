package backtest

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"

	"binance-backtest-go/internal/model"
	"binance-backtest-go/internal/series"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"go.uber.org/zap"
)

// Strategy is the contract every concrete strategy implements. The
// statistical primitives stay free functions; this interface only covers the
// strategy-specific capability set.
type Strategy interface {
	// Name returns the unique name of the strategy family.
	Name() string

	// PrepareData attaches the strategy's signal/position column to the
	// prepared series.
	PrepareData(ctx context.Context) error

	// RunBacktest evaluates the strategy with its configured parameters.
	RunBacktest(ctx context.Context) (Result, error)

	// RunOptimizedBacktest evaluates the strategy across a caller-supplied
	// parameter grid, one Result per combination, in grid order.
	RunOptimizedBacktest(ctx context.Context, grid []Params) ([]Result, error)

	// SelectBest applies the strategy family's selection rule to an
	// optimization table.
	SelectBest(results []Result) (Result, error)
}

// Tester is the shared evaluation machinery concrete strategies embed. It
// holds the prepared series, its log-return column and the trades-per-year
// scale, and turns a position column into a Result.
type Tester struct {
	logger        *zap.Logger
	model         *model.TradeModel
	data          series.Series
	returns       []float64
	tradesPerYear float64
}

// NewTester prepares the model's series (slice to range, derive log-returns)
// and precomputes the annualization scale. Series too short to span any time
// are rejected here, before any strategy runs.
func NewTester(ctx context.Context, logger *zap.Logger, m *model.TradeModel, raw series.Series) (*Tester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prepared, err := m.PreparedSeries(ctx, raw)
	if err != nil {
		return nil, err
	}
	tradesPerYear, err := m.TradesPerYear(prepared)
	if err != nil {
		return nil, err
	}
	return &Tester{
		logger:        logger,
		model:         m,
		data:          prepared,
		returns:       prepared.LogReturns(),
		tradesPerYear: tradesPerYear,
	}, nil
}

// Data returns the prepared series.
func (t *Tester) Data() series.Series {
	return t.data
}

// Returns returns the log-return column of the prepared series.
func (t *Tester) Returns() []float64 {
	return t.returns
}

// TradesPerYear returns the annualization scale of the prepared series.
func (t *Tester) TradesPerYear() float64 {
	return t.tradesPerYear
}

// Model returns the trade model under test.
func (t *Tester) Model() *model.TradeModel {
	return t.model
}

// Evaluate applies a position column to the return series and builds the
// performance report against unmodified buy-and-hold.
//
// The position decided at the close of bar t-1 earns the return realized
// over bar t, so there is no look-ahead. The trade cost (a negative
// log-return) is added once per position change, on the bar where the change
// is detected.
func (t *Tester) Evaluate(name string, positions []float64, params Params) (Result, error) {
	n := t.data.Len()
	if len(positions) != n {
		return Result{}, fmt.Errorf("position column has %d entries, series has %d bars", len(positions), n)
	}

	cost := t.model.TradeCost()
	strategy := make([]float64, n)
	trades := 0
	for i := 0; i < n; i++ {
		if i == 0 {
			strategy[i] = math.NaN()
			continue
		}
		strategy[i] = t.returns[i] * positions[i-1]
		if positions[i] != positions[i-1] {
			strategy[i] += cost
			trades++
		}
	}

	times := t.data.Times()
	report := Report{
		StrategyMultiple: Multiple(strategy),
		BuyHoldMultiple:  Multiple(t.returns),
	}
	report.Outperformance = report.StrategyMultiple - report.BuyHoldMultiple

	cagr, err := CAGR(times, strategy, t.model.PeriodsPerYear)
	if err != nil {
		return Result{}, err
	}
	report.CAGR = cagr
	report.AnnualizedMean = AnnualizedMean(strategy, t.tradesPerYear)
	report.AnnualizedStd = AnnualizedStd(strategy, t.tradesPerYear)
	report.SharpeRatio = Sharpe(strategy, t.tradesPerYear)

	return Result{
		Strategy:        name,
		Params:          params,
		Report:          report,
		Trades:          trades,
		StrategyReturns: ReturnSeries{Times: times, Values: strategy},
		BuyHoldReturns:  ReturnSeries{Times: times, Values: t.returns},
	}, nil
}

// ShowPerformance logs the report and renders a metric table to w.
func (t *Tester) ShowPerformance(w io.Writer, res Result) {
	t.logger.Info("Backtest performance",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", t.model.Symbol),
		zap.Any("params", res.Params),
		zap.Float64("strategy_multiple", res.Report.StrategyMultiple),
		zap.Float64("buy_hold_multiple", res.Report.BuyHoldMultiple),
		zap.Float64("outperformance", res.Report.Outperformance),
		zap.Float64("cagr", res.Report.CAGR),
		zap.Float64("annualized_mean", res.Report.AnnualizedMean),
		zap.Float64("annualized_std", res.Report.AnnualizedStd),
		zap.Float64("sharpe_ratio", res.Report.SharpeRatio),
		zap.Int("trades", res.Trades),
	)

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append("Multiple (Strategy)", fmt.Sprintf("%.6f", res.Report.StrategyMultiple))
	table.Append("Multiple (Buy-and-Hold)", fmt.Sprintf("%.6f", res.Report.BuyHoldMultiple))
	table.Append("Out-/Underperformance", fmt.Sprintf("%.6f", res.Report.Outperformance))
	table.Append("CAGR", fmt.Sprintf("%.6f", res.Report.CAGR))
	table.Append("Annualized Mean", fmt.Sprintf("%.6f", res.Report.AnnualizedMean))
	table.Append("Annualized Std", fmt.Sprintf("%.6f", res.Report.AnnualizedStd))
	table.Append("Sharpe Ratio", fmt.Sprintf("%.6f", res.Report.SharpeRatio))
	table.Append("Trades", fmt.Sprintf("%d", res.Trades))
	table.Render()
}

// RenderResults renders an optimization table to w, one row per evaluated
// parameter combination with its originating parameter values.
func RenderResults(w io.Writer, results []Result) {
	if len(results) == 0 {
		return
	}

	paramKeys := make([]string, 0, len(results[0].Params))
	for k := range results[0].Params {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)

	header := append(append([]string{}, paramKeys...),
		"Multiple", "Buy&Hold", "CAGR", "Ann. Mean", "Ann. Std", "Sharpe", "Trades")
	table := tablewriter.NewWriter(w)
	table.Options(tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(toAny(header)...)

	for _, res := range results {
		row := make([]string, 0, len(header))
		for _, k := range paramKeys {
			row = append(row, fmt.Sprintf("%g", res.Params[k]))
		}
		row = append(row,
			fmt.Sprintf("%.6f", res.Report.StrategyMultiple),
			fmt.Sprintf("%.6f", res.Report.BuyHoldMultiple),
			fmt.Sprintf("%.6f", res.Report.CAGR),
			fmt.Sprintf("%.6f", res.Report.AnnualizedMean),
			fmt.Sprintf("%.6f", res.Report.AnnualizedStd),
			fmt.Sprintf("%.6f", res.Report.SharpeRatio),
			fmt.Sprintf("%d", res.Trades),
		)
		table.Append(toAny(row)...)
	}
	table.Render()
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
