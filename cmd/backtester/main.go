package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"binance-backtest-go/internal/backtest"
	"binance-backtest-go/internal/binance"
	"binance-backtest-go/internal/config"
	"binance-backtest-go/internal/histdata"
	"binance-backtest-go/internal/logger"
	"binance-backtest-go/internal/model"
	"binance-backtest-go/internal/plot"
	"binance-backtest-go/internal/series"
	"binance-backtest-go/internal/store"
	"binance-backtest-go/internal/strategy"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, aborting backtest...")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	// Initialize Binance REST client
	restClient := binance.NewRestClient(&cfg.Binance, log)
	if _, err := restClient.GetServerTime(ctx); err != nil {
		return fmt.Errorf("connect to Binance API: %w", err)
	}
	log.Info("Successfully connected to Binance API.")

	// Initialize run store
	db, err := store.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return err
	}
	runs := store.NewStore(db)
	log.Info("Database connection successful and schema migrated.")

	// Build the trade model; the resolver supplies the effective start when
	// no explicit start date is configured.
	resolver := model.NewTimestampResolver(restClient, nil, logger.Named(log, "resolver"))
	tradeModel, err := model.NewTradeModel(model.TradeModelConfig{
		Symbol:         cfg.Backtest.Symbol,
		Interval:       cfg.Backtest.Interval,
		MarketType:     cfg.Backtest.MarketType,
		Start:          cfg.Backtest.Start,
		End:            cfg.Backtest.End,
		Limit:          cfg.Backtest.Limit,
		Commission:     cfg.Backtest.Commission,
		Slippage:       cfg.Backtest.Slippage,
		PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
	}, resolver)
	if err != nil {
		return err
	}

	// Load historical data, preferring the disk cache when enabled.
	loader := histdata.NewLoader(restClient, cfg.Backtest.DataDir, logger.Named(log, "histdata"))
	raw, err := loadSeries(ctx, cfg, log, loader, tradeModel)
	if err != nil {
		return err
	}

	tester, err := backtest.NewTester(ctx, logger.Named(log, "backtest"), tradeModel, raw)
	if err != nil {
		return err
	}

	strat, grid, err := buildStrategy(cfg, log, tester)
	if err != nil {
		return err
	}

	results, err := strat.RunOptimizedBacktest(ctx, grid)
	if err != nil {
		return err
	}
	backtest.RenderResults(os.Stdout, results)

	best, err := strat.SelectBest(results)
	if err != nil {
		return err
	}
	tester.ShowPerformance(os.Stdout, best)

	if _, err := runs.SaveRun(tradeModel, best, tester.Data().Len()); err != nil {
		return err
	}

	times, buyHold, strategyCurve := backtest.CumulativeCurves(best)
	title := fmt.Sprintf("%s | trade_costs = %.6f", tradeModel.Symbol, tradeModel.TradeCost())
	if err := plot.WriteHTML(cfg.Output.PlotPath, title, times, buyHold, strategyCurve); err != nil {
		return err
	}
	log.Info("Backtest complete",
		zap.String("strategy", best.Strategy),
		zap.Any("params", best.Params),
		zap.String("plot", cfg.Output.PlotPath),
	)
	return nil
}

// loadSeries serves the model's series from the cache, exporting it first on
// a miss (or always fetching live when the cache is disabled).
func loadSeries(ctx context.Context, cfg config.Config, log *zap.Logger, loader *histdata.Loader, m *model.TradeModel) (series.Series, error) {
	if !cfg.Backtest.UseCache {
		return loader.LoadFromAPI(ctx, m)
	}

	raw, err := loader.LoadFromCache(ctx, m)
	if err == nil {
		log.Info("Loaded historical data from cache")
		return raw, nil
	}
	if !errors.Is(err, histdata.ErrCacheMiss) {
		return raw, err
	}

	if err := loader.ExportToCache(ctx, m); err != nil {
		return raw, err
	}
	return loader.LoadFromCache(ctx, m)
}

// buildStrategy constructs the configured strategy family with its default
// parameter grid.
func buildStrategy(cfg config.Config, log *zap.Logger, tester *backtest.Tester) (backtest.Strategy, []backtest.Params, error) {
	switch cfg.Backtest.Strategy {
	case "pricevolume":
		strat := strategy.NewPriceVolume(logger.Named(log, "pricevolume"), tester, 0, 0)
		grid := strategy.ThresholdGrid(
			[]float64{-0.01, -0.005, 0, 0.005, 0.01},
			[]float64{-0.5, 0, 0.5, 1.0},
		)
		return strat, grid, nil
	case "smacross":
		strat, err := strategy.NewSMACross(logger.Named(log, "smacross"), tester, 20, 50)
		if err != nil {
			return nil, nil, err
		}
		grid := strategy.WindowGrid(
			[]int{10, 20, 30, 50},
			[]int{50, 100, 150, 200},
		)
		return strat, grid, nil
	default:
		return nil, nil, fmt.Errorf("unknown strategy %q", cfg.Backtest.Strategy)
	}
}
