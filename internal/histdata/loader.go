// Package histdata fetches historical klines, normalizes them into the
// canonical OHLCV series and mirrors results in an on-disk CSV cache keyed
// deterministically by the trade model parameters.
package histdata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"binance-backtest-go/internal/binance"
	"binance-backtest-go/internal/model"
	"binance-backtest-go/internal/series"
	"go.uber.org/zap"
)

// ErrCacheMiss marks a requested cache key that is absent on disk. Callers
// decide whether to fall back to an API fetch.
var ErrCacheMiss = errors.New("historical data not cached")

// KlineClient is the slice of the exchange client the loader consumes.
type KlineClient interface {
	GetHistoricalKlines(ctx context.Context, symbol string, interval binance.Interval, startMs, endMs int64, limit int, market binance.MarketType) ([]binance.Kline, error)
}

// Loader loads OHLCV series from the exchange or the disk cache.
//
// The cache directory is shared process-wide without locking; concurrent
// exporters targeting the same key race and the last writer wins.
type Loader struct {
	client  KlineClient
	dataDir string
	logger  *zap.Logger
}

// NewLoader builds a loader writing under dataDir ("data" when empty).
func NewLoader(client KlineClient, dataDir string, logger *zap.Logger) *Loader {
	if dataDir == "" {
		dataDir = "data"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{client: client, dataDir: dataDir, logger: logger}
}

// LoadFromAPI fetches klines for the model's range and maps the 12-field wire
// rows to OHLCV bars indexed by open time. Quote volume, trade count, taker
// volumes and the trailing ignore field are discarded; numeric fields that
// fail coercion become invalid values rather than errors.
func (l *Loader) LoadFromAPI(ctx context.Context, m *model.TradeModel) (series.Series, error) {
	start, err := m.StartTime(ctx)
	if err != nil {
		return series.Series{}, err
	}
	var endMs int64
	if end, ok := m.EndTime(); ok {
		endMs = end.UnixMilli()
	}

	klines, err := l.client.GetHistoricalKlines(ctx, m.Symbol, m.Interval, start.UnixMilli(), endMs, m.Limit, m.Market)
	if err != nil {
		return series.Series{}, fmt.Errorf("fetch klines for %s: %w", m.Symbol, err)
	}

	bars := make([]series.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, series.Bar{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   series.ParseValue(k.Open),
			High:   series.ParseValue(k.High),
			Low:    series.ParseValue(k.Low),
			Close:  series.ParseValue(k.Close),
			Volume: series.ParseValue(k.Volume),
		})
	}

	l.logger.Info("Loaded historical data from API",
		zap.String("symbol", m.Symbol),
		zap.String("interval", string(m.Interval)),
		zap.Int("bars", len(bars)),
	)
	return series.Series{Bars: bars}, nil
}

// CachePath derives the deterministic cache location for the model:
// {dataDir}/{market}/{symbol}/{interval}/{effectiveStart}_{end|latest}.csv.
// Any change to those five fields is a different path; cache hits are
// exact-match only.
func (l *Loader) CachePath(ctx context.Context, m *model.TradeModel) (string, error) {
	start, err := m.EffectiveStart(ctx)
	if err != nil {
		return "", err
	}
	end := "latest"
	if t, ok := m.EndTime(); ok {
		end = t.Format(time.RFC3339)
	}
	filename := fmt.Sprintf("%s_%s.csv", start, end)
	return filepath.Join(l.dataDir, m.Market.String(), m.Symbol, string(m.Interval), filename), nil
}

// LoadFromCache reads a previously exported series, or ErrCacheMiss when the
// key has never been exported.
func (l *Loader) LoadFromCache(ctx context.Context, m *model.TradeModel) (series.Series, error) {
	path, err := l.CachePath(ctx, m)
	if err != nil {
		return series.Series{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return series.Series{}, fmt.Errorf("%w: %s", ErrCacheMiss, path)
		}
		return series.Series{}, fmt.Errorf("open cache file %s: %w", path, err)
	}
	defer f.Close()

	data, err := series.ReadCSV(f)
	if err != nil {
		return series.Series{}, fmt.Errorf("read cache file %s: %w", path, err)
	}
	return data, nil
}

// ExportToCache fetches the model's series from the API and writes it to the
// cache location, creating parent directories as needed. Re-exporting the
// same key overwrites.
func (l *Loader) ExportToCache(ctx context.Context, m *model.TradeModel) error {
	data, err := l.LoadFromAPI(ctx, m)
	if err != nil {
		return err
	}

	path, err := l.CachePath(ctx, m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file %s: %w", path, err)
	}
	defer f.Close()

	if err := data.WriteCSV(f); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}

	l.logger.Info("Exported historical data",
		zap.String("path", path),
		zap.Int("bars", data.Len()),
	)
	return nil
}
