package binance

import (
	"fmt"
	"time"
)

// MarketType selects which kline universe a request targets.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// ParseMarketType maps a config string to a MarketType.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(s) {
	case MarketSpot, MarketFutures:
		return MarketType(s), nil
	default:
		return "", fmt.Errorf("unsupported market type %q", s)
	}
}

func (m MarketType) String() string {
	return string(m)
}

// Interval is a supported bar granularity, in Binance notation.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// ParseInterval maps a config string to a supported Interval.
func ParseInterval(s string) (Interval, error) {
	if _, ok := intervalDurations[Interval(s)]; !ok {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return Interval(s), nil
}

// Duration returns the wall-clock length of one bar.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Kline is one raw 12-field kline row as Binance returns it. Numeric fields
// stay strings here; coercion happens downstream where a failure can degrade
// to an invalid value instead of aborting the fetch.
type Kline struct {
	OpenTime      int64
	Open          string
	High          string
	Low           string
	Close         string
	Volume        string
	CloseTime     int64
	QuoteVolume   string
	Trades        int64
	TakerBuyBase  string
	TakerBuyQuote string
	// The trailing "ignore" wire field is dropped on decode.
}

// parseKlineRow converts one decoded JSON array into a Kline.
func parseKlineRow(row []interface{}) (Kline, error) {
	if len(row) < 11 {
		return Kline{}, fmt.Errorf("kline row has %d fields, want 12", len(row))
	}
	return Kline{
		OpenTime:      asInt64(row[0]),
		Open:          asString(row[1]),
		High:          asString(row[2]),
		Low:           asString(row[3]),
		Close:         asString(row[4]),
		Volume:        asString(row[5]),
		CloseTime:     asInt64(row[6]),
		QuoteVolume:   asString(row[7]),
		Trades:        asInt64(row[8]),
		TakerBuyBase:  asString(row[9]),
		TakerBuyQuote: asString(row[10]),
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
