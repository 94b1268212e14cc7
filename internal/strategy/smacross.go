package strategy

import (
	"context"
	"fmt"
	"math"

	"binance-backtest-go/internal/backtest"
	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"
)

// Parameter names of the SMACross grid.
const (
	ParamFastWindow = "fast_window"
	ParamSlowWindow = "slow_window"
)

// SMACross goes long while the fast simple moving average of the close is
// above the slow one and stays flat otherwise. Best parameters are picked by
// Sharpe ratio.
type SMACross struct {
	logger    *zap.Logger
	tester    *backtest.Tester
	fast      int
	slow      int
	positions []float64
}

var _ backtest.Strategy = (*SMACross)(nil)

// NewSMACross builds the strategy with its default windows.
func NewSMACross(logger *zap.Logger, tester *backtest.Tester, fast, slow int) (*SMACross, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("sma windows must satisfy 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMACross{logger: logger, tester: tester, fast: fast, slow: slow}, nil
}

func (s *SMACross) Name() string {
	return "SMACross"
}

// PrepareData derives the position column for the configured windows.
func (s *SMACross) PrepareData(ctx context.Context) error {
	positions, err := s.positionsFor(s.fast, s.slow)
	if err != nil {
		return err
	}
	s.positions = positions
	return nil
}

// positionsFor computes positions for one window pair. Warmup bars, where
// either average is still NaN, stay flat.
func (s *SMACross) positionsFor(fast, slow int) ([]float64, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("sma windows must satisfy 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	closes := s.tester.Data().Closes()
	if len(closes) < slow {
		return nil, fmt.Errorf("%w: %d bars but slow window is %d", backtest.ErrInsufficientData, len(closes), slow)
	}

	fastSMA := talib.Sma(closes, fast)
	slowSMA := talib.Sma(closes, slow)

	positions := make([]float64, len(closes))
	for i := range closes {
		if math.IsNaN(fastSMA[i]) || math.IsNaN(slowSMA[i]) {
			continue
		}
		if fastSMA[i] > slowSMA[i] {
			positions[i] = 1
		}
	}
	return positions, nil
}

// RunBacktest evaluates the configured windows.
func (s *SMACross) RunBacktest(ctx context.Context) (backtest.Result, error) {
	if s.positions == nil {
		if err := s.PrepareData(ctx); err != nil {
			return backtest.Result{}, err
		}
	}
	params := backtest.Params{
		ParamFastWindow: float64(s.fast),
		ParamSlowWindow: float64(s.slow),
	}
	return s.tester.Evaluate(s.Name(), s.positions, params)
}

// RunOptimizedBacktest evaluates every window pair in the grid, in order.
func (s *SMACross) RunOptimizedBacktest(ctx context.Context, grid []backtest.Params) ([]backtest.Result, error) {
	results := make([]backtest.Result, 0, len(grid))
	for _, params := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		positions, err := s.positionsFor(int(params[ParamFastWindow]), int(params[ParamSlowWindow]))
		if err != nil {
			return nil, err
		}
		res, err := s.tester.Evaluate(s.Name(), positions, params)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	s.logger.Info("Optimization finished",
		zap.String("strategy", s.Name()),
		zap.Int("combinations", len(results)),
	)
	return results, nil
}

// SelectBest picks the row with the highest Sharpe ratio; rows with an
// undefined Sharpe never win.
func (s *SMACross) SelectBest(results []backtest.Result) (backtest.Result, error) {
	if len(results) == 0 {
		return backtest.Result{}, fmt.Errorf("no results to select from")
	}
	best := -1
	for i, res := range results {
		if math.IsNaN(res.Report.SharpeRatio) {
			continue
		}
		if best == -1 || res.Report.SharpeRatio > results[best].Report.SharpeRatio {
			best = i
		}
	}
	if best == -1 {
		return backtest.Result{}, fmt.Errorf("%w: every candidate has an undefined Sharpe ratio", backtest.ErrInsufficientData)
	}
	return results[best], nil
}

// WindowGrid builds the cross product of fast and slow windows, keeping only
// pairs with fast < slow.
func WindowGrid(fasts, slows []int) []backtest.Params {
	var grid []backtest.Params
	for _, f := range fasts {
		for _, sl := range slows {
			if f >= sl {
				continue
			}
			grid = append(grid, backtest.Params{
				ParamFastWindow: float64(f),
				ParamSlowWindow: float64(sl),
			})
		}
	}
	return grid
}
