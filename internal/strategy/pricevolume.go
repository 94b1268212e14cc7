// Package strategy holds the concrete strategy families that plug into the
// backtest template.
package strategy

import (
	"context"
	"fmt"
	"math"

	"binance-backtest-go/internal/backtest"
	"go.uber.org/zap"
)

// Parameter names of the PriceVolume grid.
const (
	ParamReturnThresh = "return_thresh"
	ParamVolumeThresh = "volume_thresh"
)

// PriceVolume is the simple price & volume strategy: go long when a bar's
// log-return and its log volume-change both clear their thresholds, stay
// flat otherwise. Best parameters are picked by strategy multiple.
type PriceVolume struct {
	logger       *zap.Logger
	tester       *backtest.Tester
	returnThresh float64
	volumeThresh float64
	positions    []float64
}

var _ backtest.Strategy = (*PriceVolume)(nil)

// NewPriceVolume builds the strategy with its default thresholds.
func NewPriceVolume(logger *zap.Logger, tester *backtest.Tester, returnThresh, volumeThresh float64) *PriceVolume {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceVolume{
		logger:       logger,
		tester:       tester,
		returnThresh: returnThresh,
		volumeThresh: volumeThresh,
	}
}

func (s *PriceVolume) Name() string {
	return "PriceVolume"
}

// PrepareData derives the position column for the configured thresholds.
func (s *PriceVolume) PrepareData(ctx context.Context) error {
	s.positions = s.positionsFor(s.returnThresh, s.volumeThresh)
	return nil
}

// positionsFor computes positions for one threshold pair. Bars whose return
// or volume change is NaN stay flat.
func (s *PriceVolume) positionsFor(returnThresh, volumeThresh float64) []float64 {
	returns := s.tester.Returns()
	volumes := s.tester.Data().Volumes()

	positions := make([]float64, len(returns))
	for i := 1; i < len(returns); i++ {
		volChange := math.NaN()
		if volumes[i] > 0 && volumes[i-1] > 0 {
			volChange = math.Log(volumes[i] / volumes[i-1])
		}
		if math.IsNaN(returns[i]) || math.IsNaN(volChange) {
			continue
		}
		if returns[i] >= returnThresh && volChange >= volumeThresh {
			positions[i] = 1
		}
	}
	return positions
}

// RunBacktest evaluates the configured thresholds.
func (s *PriceVolume) RunBacktest(ctx context.Context) (backtest.Result, error) {
	if s.positions == nil {
		if err := s.PrepareData(ctx); err != nil {
			return backtest.Result{}, err
		}
	}
	params := backtest.Params{
		ParamReturnThresh: s.returnThresh,
		ParamVolumeThresh: s.volumeThresh,
	}
	return s.tester.Evaluate(s.Name(), s.positions, params)
}

// RunOptimizedBacktest evaluates every threshold pair in the grid, in order.
func (s *PriceVolume) RunOptimizedBacktest(ctx context.Context, grid []backtest.Params) ([]backtest.Result, error) {
	results := make([]backtest.Result, 0, len(grid))
	for _, params := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		positions := s.positionsFor(params[ParamReturnThresh], params[ParamVolumeThresh])
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

// SelectBest picks the row with the highest strategy multiple.
func (s *PriceVolume) SelectBest(results []backtest.Result) (backtest.Result, error) {
	if len(results) == 0 {
		return backtest.Result{}, fmt.Errorf("no results to select from")
	}
	best := results[0]
	for _, res := range results[1:] {
		if res.Report.StrategyMultiple > best.Report.StrategyMultiple {
			best = res
		}
	}
	return best, nil
}

// ThresholdGrid builds the cross product of return and volume thresholds.
func ThresholdGrid(returnThreshs, volumeThreshs []float64) []backtest.Params {
	grid := make([]backtest.Params, 0, len(returnThreshs)*len(volumeThreshs))
	for _, rt := range returnThreshs {
		for _, vt := range volumeThreshs {
			grid = append(grid, backtest.Params{
				ParamReturnThresh: rt,
				ParamVolumeThresh: vt,
			})
		}
	}
	return grid
}
