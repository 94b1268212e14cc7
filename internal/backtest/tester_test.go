package backtest

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"binance-backtest-go/internal/model"
	"binance-backtest-go/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dailySeries(t *testing.T, closes ...float64) series.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]series.Bar, len(closes))
	for i, c := range closes {
		v := series.Num(c)
		bars[i] = series.Bar{Time: base.AddDate(0, 0, i), Open: v, High: v, Low: v, Close: v, Volume: v}
	}
	return series.Series{Bars: bars}
}

func testerModel(t *testing.T, commission, slippage float64) *model.TradeModel {
	t.Helper()
	m, err := model.NewTradeModel(model.TradeModelConfig{
		Symbol:     "BTCUSDT",
		Interval:   "1d",
		MarketType: "spot",
		Start:      "2024-01-01 00:00:00",
		Commission: commission,
		Slippage:   slippage,
	}, nil)
	require.NoError(t, err)
	return m
}

func newTestTester(t *testing.T, commission, slippage float64, closes ...float64) *Tester {
	t.Helper()
	tester, err := NewTester(context.Background(), zap.NewNop(), testerModel(t, commission, slippage), dailySeries(t, closes...))
	require.NoError(t, err)
	return tester
}

func TestNewTesterRejectsShortSeries(t *testing.T) {
	m := testerModel(t, 0, 0)

	_, err := NewTester(context.Background(), zap.NewNop(), m, dailySeries(t, 100))

	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestEvaluateNoLookAhead(t *testing.T) {
	// Long only over the last bar: the position set at the close of bar 2
	// earns the return realized over bar 3, never its own bar's return.
	tester := newTestTester(t, 0, 0, 100, 110, 105, 120)
	positions := []float64{0, 0, 1, 1}

	res, err := tester.Evaluate("test", positions, nil)

	require.NoError(t, err)
	wantLast := math.Log(120.0 / 105.0)
	assert.InDelta(t, math.Exp(wantLast), res.Report.StrategyMultiple, 1e-9)
	assert.True(t, math.IsNaN(res.StrategyReturns.Values[0]))
	assert.Equal(t, 0.0, res.StrategyReturns.Values[1], "flat before entry earns nothing")
	assert.Equal(t, 0.0, res.StrategyReturns.Values[2], "entry bar still runs on the previous flat position")
}

func TestEvaluateConstantPositionMatchesBuyHold(t *testing.T) {
	// Always long with zero costs reproduces buy-and-hold exactly, even
	// though charging per flip would still count zero trades here.
	tester := newTestTester(t, 0.001, 0.0001, 100, 110, 105, 120)
	positions := []float64{1, 1, 1, 1}

	res, err := tester.Evaluate("test", positions, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Trades)
	assert.InDelta(t, res.Report.BuyHoldMultiple, res.Report.StrategyMultiple, 1e-9)
	assert.InDelta(t, 0.0, res.Report.Outperformance, 1e-9)
}

func TestEvaluateChargesOncePerFlip(t *testing.T) {
	tester := newTestTester(t, 0.001, 0.0001, 100, 100, 100, 100, 100)
	positions := []float64{0, 1, 1, 0, 1}

	res, err := tester.Evaluate("test", positions, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Trades)
	// Flat prices mean costs are the only returns.
	want := math.Exp(3 * tester.Model().TradeCost())
	assert.InDelta(t, want, res.Report.StrategyMultiple, 1e-9)
	assert.Less(t, res.Report.StrategyMultiple, 1.0)
}

func TestEvaluateLengthMismatch(t *testing.T) {
	tester := newTestTester(t, 0, 0, 100, 110, 105)

	_, err := tester.Evaluate("test", []float64{0, 1}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 entries")
}

func TestEvaluateReport(t *testing.T) {
	tester := newTestTester(t, 0, 0, 100, 110, 105, 120)
	positions := []float64{1, 1, 0, 1}

	res, err := tester.Evaluate("test", positions, Params{"p": 1})

	require.NoError(t, err)
	assert.Equal(t, "test", res.Strategy)
	assert.Equal(t, Params{"p": 1}, res.Params)
	assert.InDelta(t, res.Report.StrategyMultiple-res.Report.BuyHoldMultiple, res.Report.Outperformance, 1e-12)
	assert.False(t, math.IsNaN(res.Report.CAGR))
	assert.False(t, math.IsNaN(res.Report.SharpeRatio))
	assert.Len(t, res.StrategyReturns.Values, 4)
	assert.Len(t, res.BuyHoldReturns.Values, 4)
}

func TestCumulativeCurves(t *testing.T) {
	tester := newTestTester(t, 0, 0, 100, 110, 105, 120)

	res, err := tester.Evaluate("test", []float64{1, 1, 1, 1}, nil)
	require.NoError(t, err)

	times, buyHold, strategy := CumulativeCurves(res)

	require.Len(t, times, 4)
	require.Len(t, buyHold, 4)
	require.Len(t, strategy, 4)
	assert.InDelta(t, 1.0, buyHold[0], 1e-12, "NaN first return leaves the curve at one")
	assert.InDelta(t, 1.2, buyHold[3], 1e-9, "curve ends at the overall multiple")
	for i := range buyHold {
		assert.InDelta(t, buyHold[i], strategy[i], 1e-9)
	}
}

func TestShowPerformanceRendersTable(t *testing.T) {
	tester := newTestTester(t, 0, 0, 100, 110, 105, 120)
	res, err := tester.Evaluate("test", []float64{1, 1, 1, 1}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	tester.ShowPerformance(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "Multiple (Strategy)")
	assert.Contains(t, out, "Sharpe Ratio")
}

func TestRenderResults(t *testing.T) {
	tester := newTestTester(t, 0, 0, 100, 110, 105, 120)
	a, err := tester.Evaluate("test", []float64{1, 1, 1, 1}, Params{"window": 2})
	require.NoError(t, err)
	b, err := tester.Evaluate("test", []float64{0, 1, 0, 1}, Params{"window": 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	RenderResults(&buf, []Result{a, b})

	out := buf.String()
	assert.Contains(t, out, "window")
	assert.Contains(t, out, "Sharpe")

	t.Run("Empty table renders nothing", func(t *testing.T) {
		var empty bytes.Buffer
		RenderResults(&empty, nil)
		assert.Zero(t, empty.Len())
	})
}
