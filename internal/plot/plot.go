// Package plot renders the cumulative-performance comparison chart.
package plot

import (
	"fmt"
	"math"
	"os"
	"time"

	"binance-backtest-go/internal/backtest"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the two cumulative-return curves to an HTML chart at
// path. NaN points render as gaps.
func WriteHTML(path, title string, times []time.Time, buyHold, strategy []float64) error {
	if len(times) != len(buyHold) || len(times) != len(strategy) {
		return fmt.Errorf("curve lengths differ: %d times, %d buy&hold, %d strategy",
			len(times), len(buyHold), len(strategy))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
	)

	xAxis := make([]string, len(times))
	for i, t := range times {
		xAxis[i] = t.UTC().Format("2006-01-02 15:04")
	}
	line.SetXAxis(xAxis)
	line.AddSeries(backtest.ColumnBuyHold, toLineData(buyHold))
	line.AddSeries(backtest.ColumnStrategy, toLineData(strategy))
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file %s: %w", path, err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}

func toLineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: v}
	}
	return data
}
