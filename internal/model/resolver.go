package model

import (
	"context"
	"sync"
	"time"

	"binance-backtest-go/internal/binance"
	"go.uber.org/zap"
)

// Key identifies one earliest-timestamp lookup. The earliest tradable
// timestamp of a listed instrument does not change, so a resolved Key is
// reused for the rest of the process.
type Key struct {
	Symbol   string
	Interval binance.Interval
	Market   binance.MarketType
}

// Store is the backing cache behind a TimestampResolver. Substituting a fake
// store lets tests assert deterministic, eviction-free reuse.
type Store interface {
	Get(k Key) (string, bool)
	Put(k Key, ts string)
}

// MapStore is the default in-memory Store.
type MapStore struct {
	mu      sync.Mutex
	entries map[Key]string
}

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[Key]string)}
}

func (s *MapStore) Get(k Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.entries[k]
	return ts, ok
}

func (s *MapStore) Put(k Key, ts string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k] = ts
}

// EarliestTimestampClient is the slice of the exchange client the resolver
// consumes.
type EarliestTimestampClient interface {
	GetEarliestValidTimestamp(ctx context.Context, symbol string, interval binance.Interval, market binance.MarketType) (int64, error)
}

// TimestampResolver resolves the start of usable history for a
// (symbol, interval, market) triple and memoizes the result. Exchange-client
// errors propagate unmemoized; there is no retry at this layer.
type TimestampResolver struct {
	client EarliestTimestampClient
	store  Store
	logger *zap.Logger
}

// NewTimestampResolver builds a resolver. A nil store gets a fresh MapStore.
func NewTimestampResolver(client EarliestTimestampClient, store Store, logger *zap.Logger) *TimestampResolver {
	if store == nil {
		store = NewMapStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimestampResolver{client: client, store: store, logger: logger}
}

// Resolve returns the earliest valid timestamp for the key as an RFC3339 UTC
// string truncated to seconds, computing it at most once per key.
func (r *TimestampResolver) Resolve(ctx context.Context, k Key) (string, error) {
	if ts, ok := r.store.Get(k); ok {
		return ts, nil
	}

	ms, err := r.client.GetEarliestValidTimestamp(ctx, k.Symbol, k.Interval, k.Market)
	if err != nil {
		return "", err
	}

	ts := time.UnixMilli(ms).UTC().Truncate(time.Second).Format(time.RFC3339)
	r.store.Put(k, ts)
	r.logger.Debug("Resolved earliest valid timestamp",
		zap.String("symbol", k.Symbol),
		zap.String("interval", string(k.Interval)),
		zap.String("market", k.Market.String()),
		zap.String("timestamp", ts),
	)
	return ts, nil
}
