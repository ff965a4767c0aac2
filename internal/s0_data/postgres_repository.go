package s0_data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/phwatch/internal/contracts"
)

// PostgresRepository implements contracts.MarketStore over the signals/snapshots tables
// ⭐ SSOT: SQL for the market tables lives here only
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres-backed store
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const signalColumns = `contract, snapshot_minute, "tradeSignal", "timeSignal"::text`

const snapshotColumns = `contract, snapshot_minute, mcp::text, "averagePrice"::text, "remainingTime"::text, depth, trades`

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// FetchLatestSignal returns the newest signal row for a contract, nil when none
func (r *PostgresRepository) FetchLatestSignal(ctx context.Context, contract string) (*contracts.SignalRecord, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE contract = $1
		ORDER BY snapshot_minute DESC
		LIMIT 1
	`

	rec, err := scanSignal(r.pool.QueryRow(ctx, query, contract))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest signal for %s: %w", contract, err)
	}
	return rec, nil
}

// FetchSignalHistory returns signal rows newest first
func (r *PostgresRepository) FetchSignalHistory(ctx context.Context, contract string, limit int) ([]contracts.SignalRecord, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE contract = $1
		ORDER BY snapshot_minute DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, contract, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query signal history for %s: %w", contract, err)
	}
	return collectSignals(rows)
}

// FetchRecentTradeSignals returns OPEN_LONG/OPEN_SHORT rows across contracts, newest first
func (r *PostgresRepository) FetchRecentTradeSignals(ctx context.Context, limit int) ([]contracts.SignalRecord, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE "tradeSignal" IN ($1, $2)
		ORDER BY snapshot_minute DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(contracts.OpenLong), string(contracts.OpenShort), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trade signals: %w", err)
	}
	return collectSignals(rows)
}

// FetchSnapshot returns the snapshot at an exact minute, nil when none
func (r *PostgresRepository) FetchSnapshot(ctx context.Context, contract string, minute time.Time) (*contracts.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE contract = $1 AND snapshot_minute = $2
		LIMIT 1
	`

	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, contract, minute.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot %s@%s: %w", contract, minute.Format(time.RFC3339), err)
	}
	return snap, nil
}

// FetchLatestSnapshot returns the newest snapshot for a contract, nil when none
func (r *PostgresRepository) FetchLatestSnapshot(ctx context.Context, contract string) (*contracts.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE contract = $1
		ORDER BY snapshot_minute DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, contract))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot for %s: %w", contract, err)
	}
	return snap, nil
}

// FetchSnapshotMinutes returns the minutes with a snapshot, ascending
func (r *PostgresRepository) FetchSnapshotMinutes(ctx context.Context, contract string) ([]time.Time, error) {
	query := `
		SELECT snapshot_minute
		FROM snapshots
		WHERE contract = $1
		ORDER BY snapshot_minute ASC
	`

	rows, err := r.pool.Query(ctx, query, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot minutes for %s: %w", contract, err)
	}
	defer rows.Close()

	var minutes []time.Time
	for rows.Next() {
		var m time.Time
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot minute: %w", err)
		}
		minutes = append(minutes, m)
	}
	return minutes, rows.Err()
}

// FetchRecentContractMinutePairs pages (contract, minute) pairs newest first
func (r *PostgresRepository) FetchRecentContractMinutePairs(ctx context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	query := `
		SELECT contract, snapshot_minute
		FROM snapshots
		ORDER BY snapshot_minute DESC
		OFFSET $1
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract minutes at offset %d: %w", offset, err)
	}
	defer rows.Close()

	var pairs []contracts.ContractMinute
	for rows.Next() {
		var p contracts.ContractMinute
		if err := rows.Scan(&p.Contract, &p.SnapshotMinute); err != nil {
			return nil, fmt.Errorf("failed to scan contract minute: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

func scanSignal(row pgx.Row) (*contracts.SignalRecord, error) {
	var (
		rec         contracts.SignalRecord
		tradeSignal *string
		timeSignal  *string
	)
	if err := row.Scan(&rec.Contract, &rec.SnapshotMinute, &tradeSignal, &timeSignal); err != nil {
		return nil, err
	}

	rec.TradeSignal = contracts.TradeSignalNone
	if tradeSignal != nil {
		rec.TradeSignal = contracts.ParseTradeSignal(*tradeSignal)
	}
	rec.TimeSignal = optionalNumber(timeSignal)
	return &rec, nil
}

func collectSignals(rows pgx.Rows) ([]contracts.SignalRecord, error) {
	defer rows.Close()

	var out []contracts.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*contracts.Snapshot, error) {
	var (
		snap                     contracts.Snapshot
		mcp, avgPrice, remaining *string
		depthJSON, tradesJSON    []byte
	)
	if err := row.Scan(&snap.Contract, &snap.SnapshotMinute, &mcp, &avgPrice, &remaining, &depthJSON, &tradesJSON); err != nil {
		return nil, err
	}

	snap.MCP = optionalNumber(mcp)
	snap.AveragePrice = optionalNumber(avgPrice)
	snap.RemainingSeconds = optionalNumber(remaining)

	if err := decodeJSONColumn(depthJSON, &snap.Depth); err != nil {
		return nil, fmt.Errorf("depth column: %w", err)
	}
	if err := decodeJSONColumn(tradesJSON, &snap.Trades); err != nil {
		return nil, fmt.Errorf("trades column: %w", err)
	}
	return &snap, nil
}

func optionalNumber(s *string) *float64 {
	if s == nil {
		return nil
	}
	return contracts.Float(contracts.ParseNumberString(*s))
}

// decodeJSONColumn accepts a JSON value or a JSON document stored as a string
func decodeJSONColumn(raw []byte, dest interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		if inner == "" {
			return nil
		}
		raw = []byte(inner)
	}
	return json.Unmarshal(raw, dest)
}
