package s0_data

import (
	"context"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/logger"
	"github.com/wonny/phwatch/pkg/redis"
)

// CachedStore is a read-through Redis cache in front of a MarketStore.
// Cache failures are logged and fall through to the store.
type CachedStore struct {
	store   contracts.MarketStore
	cache   *redis.Cache
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewCachedStore wraps store with a cache of the given TTL
func NewCachedStore(store contracts.MarketStore, cache *redis.Cache, ttl time.Duration, reg *metrics.Registry, log *logger.Logger) *CachedStore {
	return &CachedStore{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		metrics: reg,
		logger:  log.WithComponent("store_cache"),
	}
}

// readThrough serves key from cache or loads and stores it
func readThrough[T any](ctx context.Context, s *CachedStore, name, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if found {
		s.metrics.CacheHit(name)
		return cached, nil
	}
	s.metrics.CacheMiss(name)

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return value, nil
}

// Ping checks the underlying store
func (s *CachedStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// FetchLatestSignal implements contracts.SignalRepository
func (s *CachedStore) FetchLatestSignal(ctx context.Context, contract string) (*contracts.SignalRecord, error) {
	return readThrough(ctx, s, "latest_signal", redis.LatestSignalKey(contract), s.ttl, func() (*contracts.SignalRecord, error) {
		return s.store.FetchLatestSignal(ctx, contract)
	})
}

// FetchSignalHistory implements contracts.SignalRepository
func (s *CachedStore) FetchSignalHistory(ctx context.Context, contract string, limit int) ([]contracts.SignalRecord, error) {
	return readThrough(ctx, s, "signal_history", redis.SignalHistoryKey(contract, limit), s.ttl, func() ([]contracts.SignalRecord, error) {
		return s.store.FetchSignalHistory(ctx, contract, limit)
	})
}

// FetchRecentTradeSignals implements contracts.SignalRepository
func (s *CachedStore) FetchRecentTradeSignals(ctx context.Context, limit int) ([]contracts.SignalRecord, error) {
	return readThrough(ctx, s, "trade_signals", redis.TradeSignalsKey(limit), s.ttl, func() ([]contracts.SignalRecord, error) {
		return s.store.FetchRecentTradeSignals(ctx, limit)
	})
}

// FetchSnapshot implements contracts.SnapshotRepository
func (s *CachedStore) FetchSnapshot(ctx context.Context, contract string, minute time.Time) (*contracts.Snapshot, error) {
	return readThrough(ctx, s, "snapshot", redis.SnapshotKey(contract, minute), s.ttl, func() (*contracts.Snapshot, error) {
		return s.store.FetchSnapshot(ctx, contract, minute)
	})
}

// FetchLatestSnapshot implements contracts.SnapshotRepository
func (s *CachedStore) FetchLatestSnapshot(ctx context.Context, contract string) (*contracts.Snapshot, error) {
	return readThrough(ctx, s, "latest_snapshot", redis.LatestSnapshotKey(contract), s.ttl, func() (*contracts.Snapshot, error) {
		return s.store.FetchLatestSnapshot(ctx, contract)
	})
}

// FetchSnapshotMinutes implements contracts.SnapshotRepository
func (s *CachedStore) FetchSnapshotMinutes(ctx context.Context, contract string) ([]time.Time, error) {
	return readThrough(ctx, s, "snapshot_minutes", redis.SnapshotMinutesKey(contract), s.ttl, func() ([]time.Time, error) {
		return s.store.FetchSnapshotMinutes(ctx, contract)
	})
}

// FetchRecentContractMinutePairs is not cached; the structure scan is already bounded and periodic
func (s *CachedStore) FetchRecentContractMinutePairs(ctx context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	return s.store.FetchRecentContractMinutePairs(ctx, offset, limit)
}

// CachedBoard caches the active contract set for a short TTL
type CachedBoard struct {
	source contracts.ActiveContractSource
	store  *CachedStore
}

// NewCachedBoard wraps an active contract source with the store cache
func NewCachedBoard(source contracts.ActiveContractSource, cache *CachedStore) *CachedBoard {
	return &CachedBoard{source: source, store: cache}
}

// FetchActiveContracts implements contracts.ActiveContractSource
func (b *CachedBoard) FetchActiveContracts(ctx context.Context) ([]string, error) {
	return readThrough(ctx, b.store, "active_contracts", redis.ActiveContractsKey(), b.store.ttl, func() ([]string, error) {
		return b.source.FetchActiveContracts(ctx)
	})
}
