package s0_data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
)

// MemoryStore is an in-memory MarketStore and ActiveContractSource.
// It backs tests and the offline CLI; Fail injects errors per operation.
type MemoryStore struct {
	mu        sync.RWMutex
	active    []string
	signals   map[string][]contracts.SignalRecord // contract -> ascending by minute
	snapshots map[string][]contracts.Snapshot     // contract -> ascending by minute
	failures  map[string]error
	calls     map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:   make(map[string][]contracts.SignalRecord),
		snapshots: make(map[string][]contracts.Snapshot),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Operation names accepted by Fail and Calls
const (
	OpActiveContracts = "active_contracts"
	OpLatestSignal    = "latest_signal"
	OpSignalHistory   = "signal_history"
	OpTradeSignals    = "trade_signals"
	OpSnapshot        = "snapshot"
	OpLatestSnapshot  = "latest_snapshot"
	OpSnapshotMinutes = "snapshot_minutes"
	OpContractMinutes = "contract_minutes"
	OpPing            = "ping"
)

// SetActive replaces the live board
func (m *MemoryStore) SetActive(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = append([]string(nil), ids...)
}

// AddSignals stores signal rows
func (m *MemoryStore) AddSignals(recs ...contracts.SignalRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		list := append(m.signals[rec.Contract], rec)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SnapshotMinute.Before(list[j].SnapshotMinute)
		})
		m.signals[rec.Contract] = list
	}
}

// AddSnapshots stores snapshot rows
func (m *MemoryStore) AddSnapshots(snaps ...contracts.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		list := append(m.snapshots[snap.Contract], snap)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SnapshotMinute.Before(list[j].SnapshotMinute)
		})
		m.snapshots[snap.Contract] = list
	}
}

// Fail makes op return err until cleared with a nil err
func (m *MemoryStore) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked
func (m *MemoryStore) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *MemoryStore) enter(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.failures[op]
}

// Ping implements contracts.MarketStore
func (m *MemoryStore) Ping(_ context.Context) error {
	return m.enter(OpPing)
}

// FetchActiveContracts implements contracts.ActiveContractSource
func (m *MemoryStore) FetchActiveContracts(_ context.Context) ([]string, error) {
	if err := m.enter(OpActiveContracts); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.active...), nil
}

// FetchLatestSignal implements contracts.SignalRepository
func (m *MemoryStore) FetchLatestSignal(_ context.Context, contract string) (*contracts.SignalRecord, error) {
	if err := m.enter(OpLatestSignal); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.signals[contract]
	if len(list) == 0 {
		return nil, nil
	}
	rec := list[len(list)-1]
	return &rec, nil
}

// FetchSignalHistory implements contracts.SignalRepository
func (m *MemoryStore) FetchSignalHistory(_ context.Context, contract string, limit int) ([]contracts.SignalRecord, error) {
	if err := m.enter(OpSignalHistory); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.signals[contract], limit), nil
}

// FetchRecentTradeSignals implements contracts.SignalRepository
func (m *MemoryStore) FetchRecentTradeSignals(_ context.Context, limit int) ([]contracts.SignalRecord, error) {
	if err := m.enter(OpTradeSignals); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []contracts.SignalRecord
	for _, list := range m.signals {
		for _, rec := range list {
			if rec.TradeSignal.IsTrade() {
				trades = append(trades, rec)
			}
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].SnapshotMinute.Equal(trades[j].SnapshotMinute) {
			return trades[i].Contract < trades[j].Contract
		}
		return trades[i].SnapshotMinute.Before(trades[j].SnapshotMinute)
	})
	return newestFirst(trades, limit), nil
}

// FetchSnapshot implements contracts.SnapshotRepository
func (m *MemoryStore) FetchSnapshot(_ context.Context, contract string, minute time.Time) (*contracts.Snapshot, error) {
	if err := m.enter(OpSnapshot); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, snap := range m.snapshots[contract] {
		if snap.SnapshotMinute.Equal(minute) {
			s := snap
			return &s, nil
		}
	}
	return nil, nil
}

// FetchLatestSnapshot implements contracts.SnapshotRepository
func (m *MemoryStore) FetchLatestSnapshot(_ context.Context, contract string) (*contracts.Snapshot, error) {
	if err := m.enter(OpLatestSnapshot); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.snapshots[contract]
	if len(list) == 0 {
		return nil, nil
	}
	snap := list[len(list)-1]
	return &snap, nil
}

// FetchSnapshotMinutes implements contracts.SnapshotRepository
func (m *MemoryStore) FetchSnapshotMinutes(_ context.Context, contract string) ([]time.Time, error) {
	if err := m.enter(OpSnapshotMinutes); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.snapshots[contract]
	minutes := make([]time.Time, 0, len(list))
	for _, snap := range list {
		minutes = append(minutes, snap.SnapshotMinute)
	}
	return minutes, nil
}

// FetchRecentContractMinutePairs implements contracts.ContractMinutePager
func (m *MemoryStore) FetchRecentContractMinutePairs(_ context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	if err := m.enter(OpContractMinutes); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []contracts.ContractMinute
	for contract, list := range m.snapshots {
		for _, snap := range list {
			pairs = append(pairs, contracts.ContractMinute{Contract: contract, SnapshotMinute: snap.SnapshotMinute})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].SnapshotMinute.Equal(pairs[j].SnapshotMinute) {
			return pairs[i].Contract > pairs[j].Contract
		}
		return pairs[i].SnapshotMinute.After(pairs[j].SnapshotMinute)
	})

	if offset >= len(pairs) {
		return nil, nil
	}
	end := len(pairs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return pairs[offset:end], nil
}

// newestFirst reverses an ascending list and applies limit (<= 0 means all)
func newestFirst(list []contracts.SignalRecord, limit int) []contracts.SignalRecord {
	n := len(list)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]contracts.SignalRecord, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, list[i])
	}
	return out
}
