package s0_data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/pkg/httputil"
)

// RESTRepository implements contracts.MarketStore over a PostgREST (Supabase) endpoint
type RESTRepository struct {
	client  *httputil.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewRESTRepository creates a PostgREST-backed store.
// projectURL is the Supabase project root; rps caps outbound requests per second.
func NewRESTRepository(client *httputil.Client, projectURL, apiKey string, rps int) *RESTRepository {
	if rps <= 0 {
		rps = 10
	}
	return &RESTRepository{
		client:  client,
		baseURL: strings.TrimRight(projectURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type snapshotRow struct {
	Contract       string          `json:"contract"`
	SnapshotMinute string          `json:"snapshot_minute"`
	MCP            json.RawMessage `json:"mcp"`
	AveragePrice   json.RawMessage `json:"averagePrice"`
	RemainingTime  json.RawMessage `json:"remainingTime"`
	Depth          json.RawMessage `json:"depth"`
	Trades         json.RawMessage `json:"trades"`
}

type minuteRow struct {
	Contract       string `json:"contract"`
	SnapshotMinute string `json:"snapshot_minute"`
}

// restPageSize matches the PostgREST max-rows cap of the Supabase project
const restPageSize = 1000

const (
	signalSelect   = `contract,snapshot_minute,tradeSignal,timeSignal`
	snapshotSelect = `contract,snapshot_minute,mcp,averagePrice,remainingTime,depth,trades`
)

// Ping issues the cheapest possible query
func (r *RESTRepository) Ping(ctx context.Context) error {
	var rows []minuteRow
	return r.get(ctx, "snapshots", url.Values{
		"select": {"contract,snapshot_minute"},
		"limit":  {"1"},
	}, &rows)
}

// FetchLatestSignal returns the newest signal row for a contract, nil when none
func (r *RESTRepository) FetchLatestSignal(ctx context.Context, contract string) (*contracts.SignalRecord, error) {
	recs, err := r.FetchSignalHistory(ctx, contract, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// FetchSignalHistory returns signal rows newest first
func (r *RESTRepository) FetchSignalHistory(ctx context.Context, contract string, limit int) ([]contracts.SignalRecord, error) {
	recs, err := getPaged[contracts.SignalRecord](ctx, r, "signals", url.Values{
		"select":   {signalSelect},
		"contract": {"eq." + contract},
		"order":    {"snapshot_minute.desc"},
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signal history for %s: %w", contract, err)
	}
	return recs, nil
}

// FetchRecentTradeSignals returns OPEN_LONG/OPEN_SHORT rows across contracts, newest first
func (r *RESTRepository) FetchRecentTradeSignals(ctx context.Context, limit int) ([]contracts.SignalRecord, error) {
	recs, err := getPaged[contracts.SignalRecord](ctx, r, "signals", url.Values{
		"select":      {signalSelect},
		"tradeSignal": {fmt.Sprintf("in.(%s,%s)", contracts.OpenLong, contracts.OpenShort)},
		"order":       {"snapshot_minute.desc"},
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent trade signals: %w", err)
	}
	return recs, nil
}

// FetchSnapshot returns the snapshot at an exact minute, nil when none
func (r *RESTRepository) FetchSnapshot(ctx context.Context, contract string, minute time.Time) (*contracts.Snapshot, error) {
	return r.fetchOneSnapshot(ctx, url.Values{
		"select":          {snapshotSelect},
		"contract":        {"eq." + contract},
		"snapshot_minute": {"eq." + minute.UTC().Format(time.RFC3339)},
		"limit":           {"1"},
	})
}

// FetchLatestSnapshot returns the newest snapshot for a contract, nil when none
func (r *RESTRepository) FetchLatestSnapshot(ctx context.Context, contract string) (*contracts.Snapshot, error) {
	return r.fetchOneSnapshot(ctx, url.Values{
		"select":   {snapshotSelect},
		"contract": {"eq." + contract},
		"order":    {"snapshot_minute.desc"},
		"limit":    {"1"},
	})
}

// FetchSnapshotMinutes returns the minutes with a snapshot, ascending
func (r *RESTRepository) FetchSnapshotMinutes(ctx context.Context, contract string) ([]time.Time, error) {
	rows, err := getPaged[minuteRow](ctx, r, "snapshots", url.Values{
		"select":   {"contract,snapshot_minute"},
		"contract": {"eq." + contract},
		"order":    {"snapshot_minute.asc"},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot minutes for %s: %w", contract, err)
	}

	minutes := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		m, err := contracts.ParseTimestamp(row.SnapshotMinute)
		if err != nil {
			return nil, err
		}
		minutes = append(minutes, m)
	}
	return minutes, nil
}

// FetchRecentContractMinutePairs pages (contract, minute) pairs newest first
func (r *RESTRepository) FetchRecentContractMinutePairs(ctx context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	var rows []minuteRow
	err := r.get(ctx, "snapshots", url.Values{
		"select": {"contract,snapshot_minute"},
		"order":  {"snapshot_minute.desc"},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contract minutes at offset %d: %w", offset, err)
	}

	pairs := make([]contracts.ContractMinute, 0, len(rows))
	for _, row := range rows {
		m, err := contracts.ParseTimestamp(row.SnapshotMinute)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, contracts.ContractMinute{Contract: row.Contract, SnapshotMinute: m})
	}
	return pairs, nil
}

func (r *RESTRepository) fetchOneSnapshot(ctx context.Context, params url.Values) (*contracts.Snapshot, error) {
	var rows []snapshotRow
	if err := r.get(ctx, "snapshots", params, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %s: %w", params.Get("contract"), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toSnapshot()
}

func (r *RESTRepository) get(ctx context.Context, table string, params url.Values, dest interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("apikey", r.apiKey)
	headers.Set("Authorization", "Bearer "+r.apiKey)
	headers.Set("Accept", "application/json")

	endpoint := r.baseURL + "/" + table + "?" + params.Encode()
	_, err := r.client.GetJSON(ctx, endpoint, headers, dest)
	return err
}

func (row snapshotRow) toSnapshot() (*contracts.Snapshot, error) {
	minute, err := contracts.ParseTimestamp(row.SnapshotMinute)
	if err != nil {
		return nil, err
	}

	snap := &contracts.Snapshot{
		Contract:         row.Contract,
		SnapshotMinute:   minute,
		MCP:              contracts.Float(contracts.ParseNumber(row.MCP)),
		AveragePrice:     contracts.Float(contracts.ParseNumber(row.AveragePrice)),
		RemainingSeconds: contracts.Float(contracts.ParseNumber(row.RemainingTime)),
	}
	if err := decodeJSONColumn(row.Depth, &snap.Depth); err != nil {
		return nil, fmt.Errorf("depth column: %w", err)
	}
	if err := decodeJSONColumn(row.Trades, &snap.Trades); err != nil {
		return nil, fmt.Errorf("trades column: %w", err)
	}
	return snap, nil
}

// getPaged reads up to limit rows (every row when limit <= 0) in
// offset pages of at most restPageSize, stopping at the first short page
func getPaged[T any](ctx context.Context, r *RESTRepository, table string, params url.Values, limit int) ([]T, error) {
	out := make([]T, 0)
	for {
		size := restPageSize
		if limit > 0 && limit-len(out) < size {
			size = limit - len(out)
		}

		page := make(url.Values, len(params)+2)
		for k, v := range params {
			page[k] = v
		}
		page.Set("offset", strconv.Itoa(len(out)))
		page.Set("limit", strconv.Itoa(size))

		var rows []T
		if err := r.get(ctx, table, page, &rows); err != nil {
			return nil, err
		}
		out = append(out, rows...)

		if len(rows) < size || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
	}
}
