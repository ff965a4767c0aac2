package contracts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by view builders when a requested contract or minute has no row
var ErrNotFound = errors.New("not found")

// ⭐ SSOT: external collaborator interfaces are defined here only.
// Every method returns already-fetched data; an absent row is (nil, nil).

// ActiveContractSource reads the set of currently tradable contracts (live board)
type ActiveContractSource interface {
	FetchActiveContracts(ctx context.Context) ([]string, error)
}

// SignalRepository reads classified minutes from the signals table
type SignalRepository interface {
	FetchLatestSignal(ctx context.Context, contract string) (*SignalRecord, error)
	// FetchSignalHistory returns up to limit rows, newest first. limit <= 0 means all rows.
	FetchSignalHistory(ctx context.Context, contract string, limit int) ([]SignalRecord, error)
	// FetchRecentTradeSignals returns OPEN_LONG/OPEN_SHORT rows across contracts, newest first
	FetchRecentTradeSignals(ctx context.Context, limit int) ([]SignalRecord, error)
}

// ContractMinutePager pages (contract, minute) pairs newest first
type ContractMinutePager interface {
	FetchRecentContractMinutePairs(ctx context.Context, offset, limit int) ([]ContractMinute, error)
}

// SnapshotRepository reads per-minute market snapshots
type SnapshotRepository interface {
	ContractMinutePager

	FetchSnapshot(ctx context.Context, contract string, minute time.Time) (*Snapshot, error)
	FetchLatestSnapshot(ctx context.Context, contract string) (*Snapshot, error)
	// FetchSnapshotMinutes returns the available minutes for a contract, ascending
	FetchSnapshotMinutes(ctx context.Context, contract string) ([]time.Time, error)
}

// MarketStore is the full persistent store consumed by the dashboard
type MarketStore interface {
	SignalRepository
	SnapshotRepository
	Ping(ctx context.Context) error
}
