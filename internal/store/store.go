// Package store persists completed backtest runs so past results can be
// compared without re-running them.
package store

import (
	"encoding/json"
	"fmt"

	"binance-backtest-go/internal/backtest"
	"binance-backtest-go/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Run is one persisted backtest evaluation.
type Run struct {
	gorm.Model
	Symbol           string `gorm:"index"`
	Interval         string
	Market           string
	Strategy         string
	Params           string // JSON-encoded parameter combination
	Start            string
	End              string
	Bars             int
	Trades           int
	StrategyMultiple float64
	BuyHoldMultiple  float64
	Outperformance   float64
	CAGR             float64
	AnnualizedMean   float64
	AnnualizedStd    float64
	SharpeRatio      float64
}

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}

// Store wraps run persistence.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRun records one evaluation result for the given model.
func (s *Store) SaveRun(m *model.TradeModel, res backtest.Result, bars int) (*Run, error) {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	end := m.End
	if end == "" {
		end = "latest"
	}
	run := Run{
		Symbol:           m.Symbol,
		Interval:         string(m.Interval),
		Market:           m.Market.String(),
		Strategy:         res.Strategy,
		Params:           string(params),
		Start:            m.Start,
		End:              end,
		Bars:             bars,
		Trades:           res.Trades,
		StrategyMultiple: res.Report.StrategyMultiple,
		BuyHoldMultiple:  res.Report.BuyHoldMultiple,
		Outperformance:   res.Report.Outperformance,
		CAGR:             res.Report.CAGR,
		AnnualizedMean:   res.Report.AnnualizedMean,
		AnnualizedStd:    res.Report.AnnualizedStd,
		SharpeRatio:      res.Report.SharpeRatio,
	}
	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("save run for %s: %w", m.Symbol, err)
	}
	return &run, nil
}

// ListRuns returns all persisted runs for a symbol, newest first.
func (s *Store) ListRuns(symbol string) ([]Run, error) {
	var runs []Run
	if err := s.db.Where("symbol = ?", symbol).Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", symbol, err)
	}
	return runs, nil
}

// Metric columns BestRun accepts; the metric name reaches the ORDER BY
// clause, so only known columns pass through.
var bestRunMetrics = map[string]string{
	"multiple": "strategy_multiple",
	"sharpe":   "sharpe_ratio",
	"cagr":     "cagr",
}

// BestRun returns the persisted run with the highest value of the metric.
func (s *Store) BestRun(symbol, metric string) (*Run, error) {
	column, ok := bestRunMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	var run Run
	err := s.db.Where("symbol = ?", symbol).Order(column + " DESC").First(&run).Error
	if err != nil {
		return nil, fmt.Errorf("best run for %s by %s: %w", symbol, metric, err)
	}
	return &run, nil
}
