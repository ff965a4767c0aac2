package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/logger"
)

// GuardedStore puts a circuit breaker and store metrics around a MarketStore.
// After repeated failures calls fail fast with gobreaker.ErrOpenState until
// the breaker half-opens again.
type GuardedStore struct {
	store   contracts.MarketStore
	backend string
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// BreakerSettings returns the trip policy shared by store breakers:
// 3 consecutive failures, or more than 5% failures over at least 20 calls
func BreakerSettings(name string, reg *metrics.Registry, log *logger.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			reg.SetBreakerState(name, int(to))
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
}

// NewGuardedStore wraps store. backend labels metrics ("postgres" or "rest").
func NewGuardedStore(store contracts.MarketStore, backend string, reg *metrics.Registry, log *logger.Logger) *GuardedStore {
	return &GuardedStore{
		store:   store,
		backend: backend,
		breaker: gobreaker.NewCircuitBreaker(BreakerSettings("store_"+backend, reg, log)),
		metrics: reg,
	}
}

// State reports the breaker state for status pages
func (g *GuardedStore) State() gobreaker.State {
	return g.breaker.State()
}

func guard[T any](g *GuardedStore, op string, call func() (T, error)) (T, error) {
	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	g.metrics.ObserveStore(g.backend, op, start, err)

	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return out.(T), nil
}

// Ping implements contracts.MarketStore
func (g *GuardedStore) Ping(ctx context.Context) error {
	_, err := guard(g, "ping", func() (struct{}, error) {
		return struct{}{}, g.store.Ping(ctx)
	})
	return err
}

// FetchLatestSignal implements contracts.SignalRepository
func (g *GuardedStore) FetchLatestSignal(ctx context.Context, contract string) (*contracts.SignalRecord, error) {
	return guard(g, "latest_signal", func() (*contracts.SignalRecord, error) {
		return g.store.FetchLatestSignal(ctx, contract)
	})
}

// FetchSignalHistory implements contracts.SignalRepository
func (g *GuardedStore) FetchSignalHistory(ctx context.Context, contract string, limit int) ([]contracts.SignalRecord, error) {
	return guard(g, "signal_history", func() ([]contracts.SignalRecord, error) {
		return g.store.FetchSignalHistory(ctx, contract, limit)
	})
}

// FetchRecentTradeSignals implements contracts.SignalRepository
func (g *GuardedStore) FetchRecentTradeSignals(ctx context.Context, limit int) ([]contracts.SignalRecord, error) {
	return guard(g, "trade_signals", func() ([]contracts.SignalRecord, error) {
		return g.store.FetchRecentTradeSignals(ctx, limit)
	})
}

// FetchSnapshot implements contracts.SnapshotRepository
func (g *GuardedStore) FetchSnapshot(ctx context.Context, contract string, minute time.Time) (*contracts.Snapshot, error) {
	return guard(g, "snapshot", func() (*contracts.Snapshot, error) {
		return g.store.FetchSnapshot(ctx, contract, minute)
	})
}

// FetchLatestSnapshot implements contracts.SnapshotRepository
func (g *GuardedStore) FetchLatestSnapshot(ctx context.Context, contract string) (*contracts.Snapshot, error) {
	return guard(g, "latest_snapshot", func() (*contracts.Snapshot, error) {
		return g.store.FetchLatestSnapshot(ctx, contract)
	})
}

// FetchSnapshotMinutes implements contracts.SnapshotRepository
func (g *GuardedStore) FetchSnapshotMinutes(ctx context.Context, contract string) ([]time.Time, error) {
	return guard(g, "snapshot_minutes", func() ([]time.Time, error) {
		return g.store.FetchSnapshotMinutes(ctx, contract)
	})
}

// FetchRecentContractMinutePairs implements contracts.ContractMinutePager
func (g *GuardedStore) FetchRecentContractMinutePairs(ctx context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	return guard(g, "contract_minutes", func() ([]contracts.ContractMinute, error) {
		return g.store.FetchRecentContractMinutePairs(ctx, offset, limit)
	})
}
