package model

import (
	"context"
	"errors"
	"testing"

	"binance-backtest-go/internal/binance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTimestampClient counts calls so memoization is observable.
type fakeTimestampClient struct {
	calls int
	ms    int64
	err   error
}

func (f *fakeTimestampClient) GetEarliestValidTimestamp(_ context.Context, _ string, _ binance.Interval, _ binance.MarketType) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.ms, nil
}

func TestResolveFormatsTimestamp(t *testing.T) {
	// 2017-08-17 04:00:00 UTC, with sub-second noise the resolver truncates.
	client := &fakeTimestampClient{ms: 1502942400789}
	resolver := NewTimestampResolver(client, nil, zap.NewNop())

	ts, err := resolver.Resolve(context.Background(), Key{Symbol: "BTCUSDT", Interval: binance.Interval1d, Market: binance.MarketSpot})

	require.NoError(t, err)
	assert.Equal(t, "2017-08-17T04:00:00Z", ts)
}

func TestResolveMemoizes(t *testing.T) {
	client := &fakeTimestampClient{ms: 1502942400000}
	resolver := NewTimestampResolver(client, nil, zap.NewNop())
	key := Key{Symbol: "BTCUSDT", Interval: binance.Interval1h, Market: binance.MarketSpot}

	first, err := resolver.Resolve(context.Background(), key)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls, "identical keys issue at most one exchange call")
}

func TestResolveDistinctKeys(t *testing.T) {
	client := &fakeTimestampClient{ms: 1502942400000}
	resolver := NewTimestampResolver(client, nil, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), Key{Symbol: "BTCUSDT", Interval: binance.Interval1h, Market: binance.MarketSpot})
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), Key{Symbol: "BTCUSDT", Interval: binance.Interval1h, Market: binance.MarketFutures})
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls, "different market types are different keys")
}

func TestResolveErrorNotMemoized(t *testing.T) {
	client := &fakeTimestampClient{err: errors.New("rate limited")}
	resolver := NewTimestampResolver(client, nil, zap.NewNop())
	key := Key{Symbol: "BTCUSDT", Interval: binance.Interval1h, Market: binance.MarketSpot}

	_, err := resolver.Resolve(context.Background(), key)
	assert.EqualError(t, err, "rate limited", "client errors propagate unmodified")

	client.err = nil
	client.ms = 1502942400000
	ts, err := resolver.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.NotEmpty(t, ts)
	assert.Equal(t, 2, client.calls, "a failed lookup is retried on the next call")
}

func TestInjectedStore(t *testing.T) {
	client := &fakeTimestampClient{}
	store := NewMapStore()
	store.Put(Key{Symbol: "ETHUSDT", Interval: binance.Interval1h, Market: binance.MarketSpot}, "2017-08-17T04:00:00Z")
	resolver := NewTimestampResolver(client, store, zap.NewNop())

	ts, err := resolver.Resolve(context.Background(), Key{Symbol: "ETHUSDT", Interval: binance.Interval1h, Market: binance.MarketSpot})

	require.NoError(t, err)
	assert.Equal(t, "2017-08-17T04:00:00Z", ts)
	assert.Zero(t, client.calls, "pre-seeded store answers without touching the exchange")
}
