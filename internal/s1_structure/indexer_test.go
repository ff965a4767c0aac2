package s1_structure

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/pkg/logger"
)

// slicePager serves rows from memory and can fail at a given call
type slicePager struct {
	rows   []contracts.ContractMinute
	failAt int // 1-based call number that fails, 0 = never
	calls  int
	onCall func(call int)
}

func (p *slicePager) FetchRecentContractMinutePairs(_ context.Context, offset, limit int) ([]contracts.ContractMinute, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if p.failAt > 0 && p.calls == p.failAt {
		return nil, errors.New("store unavailable")
	}
	if offset >= len(p.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(p.rows) {
		end = len(p.rows)
	}
	return p.rows[offset:end], nil
}

// rowsForDays produces rows newest day first, perDay contracts per day
func rowsForDays(days []string, perDay int) []contracts.ContractMinute {
	base := time.Date(2025, 11, 21, 23, 0, 0, 0, time.UTC)
	var rows []contracts.ContractMinute
	for d, day := range days {
		for slot := perDay - 1; slot >= 0; slot-- {
			rows = append(rows, contracts.ContractMinute{
				Contract:       fmt.Sprintf("PH%s%02d", day, slot),
				SnapshotMinute: base.Add(-time.Duration(d*24+perDay-slot) * time.Hour),
			})
		}
	}
	return rows
}

func TestIndexer_BuildKeepsMostRecentDates(t *testing.T) {
	pager := &slicePager{rows: rowsForDays([]string{"251121", "251120", "251119", "251118", "251117"}, 4)}
	ix := NewIndexer(pager, Config{MaxDates: 3, BatchSize: 5, MaxBatches: 30}, logger.Nop())

	ms := ix.Build(context.Background())

	assert.Equal(t, []string{"2025-11-21", "2025-11-20", "2025-11-19"}, ms.Dates)
	assert.Len(t, ms.Contracts, 3)
	assert.Equal(t, []string{"PH25112100", "PH25112101", "PH25112102", "PH25112103"}, ms.Contracts["2025-11-21"])
	// the fourth date first shows up at row 12, inside the third page
	assert.Equal(t, 3, pager.calls)
	assert.Equal(t, 3, ms.BatchesFetched)
	assert.Equal(t, 15, ms.RowsScanned)
	assert.False(t, ms.BuiltAt.IsZero())
}

func TestIndexer_BuildSparseData(t *testing.T) {
	pager := &slicePager{rows: rowsForDays([]string{"251121", "251120"}, 2)}
	ix := NewIndexer(pager, Config{MaxDates: 3, BatchSize: 3, MaxBatches: 30}, logger.Nop())

	ms := ix.Build(context.Background())

	assert.Equal(t, []string{"2025-11-21", "2025-11-20"}, ms.Dates)
	// two full pages plus the empty page that ends the scan
	assert.Equal(t, 3, pager.calls)
	assert.Equal(t, 2, ms.BatchesFetched)
}

func TestIndexer_BuildStopsAtMaxBatches(t *testing.T) {
	pager := &slicePager{rows: rowsForDays([]string{"251121", "251120", "251119", "251118"}, 10)}
	ix := NewIndexer(pager, Config{MaxDates: 3, BatchSize: 4, MaxBatches: 2}, logger.Nop())

	ms := ix.Build(context.Background())

	assert.Equal(t, 2, pager.calls)
	assert.Equal(t, []string{"2025-11-21"}, ms.Dates)
	assert.Len(t, ms.Contracts["2025-11-21"], 8)
}

func TestIndexer_BuildSwallowsFetchError(t *testing.T) {
	pager := &slicePager{
		rows:   rowsForDays([]string{"251121", "251120", "251119", "251118"}, 3),
		failAt: 2,
	}
	ix := NewIndexer(pager, Config{MaxDates: 3, BatchSize: 3, MaxBatches: 30}, logger.Nop())

	ms := ix.Build(context.Background())

	require.NotNil(t, ms)
	assert.Equal(t, []string{"2025-11-21"}, ms.Dates)
	assert.Equal(t, 1, ms.BatchesFetched)
}

func TestIndexer_BuildErrorOnFirstBatch(t *testing.T) {
	pager := &slicePager{rows: rowsForDays([]string{"251121"}, 3), failAt: 1}
	ix := NewIndexer(pager, DefaultConfig(), logger.Nop())

	ms := ix.Build(context.Background())

	require.NotNil(t, ms)
	assert.Empty(t, ms.Dates)
	assert.Empty(t, ms.Contracts)
}

func TestIndexer_BuildHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pager := &slicePager{
		rows: rowsForDays([]string{"251121", "251120", "251119", "251118"}, 5),
		onCall: func(call int) {
			if call == 2 {
				cancel()
			}
		},
	}
	ix := NewIndexer(pager, Config{MaxDates: 3, BatchSize: 5, MaxBatches: 30}, logger.Nop())

	ms := ix.Build(ctx)

	assert.Equal(t, 2, pager.calls)
	assert.Equal(t, []string{"2025-11-21", "2025-11-20"}, ms.Dates)
}

func TestIndexer_BuildIgnoresMalformedIDs(t *testing.T) {
	now := time.Date(2025, 11, 21, 12, 0, 0, 0, time.UTC)
	pager := &slicePager{rows: []contracts.ContractMinute{
		{Contract: "board", SnapshotMinute: now},
		{Contract: "PH25112112", SnapshotMinute: now},
		{Contract: "TEST", SnapshotMinute: now},
	}}
	ix := NewIndexer(pager, DefaultConfig(), logger.Nop())

	ms := ix.Build(context.Background())

	assert.Equal(t, []string{"2025-11-21"}, ms.Dates)
	assert.NotContains(t, ms.Contracts, OthersKey)
}

func TestIndexer_BuildInvariants(t *testing.T) {
	days := []string{"251121", "251120", "251119", "251118", "251117", "251116"}
	for _, maxDates := range []int{1, 2, 3, 5} {
		for _, batch := range []int{1, 3, 7, 50} {
			pager := &slicePager{rows: rowsForDays(days, 4)}
			ix := NewIndexer(pager, Config{MaxDates: maxDates, BatchSize: batch, MaxBatches: 100}, logger.Nop())

			ms := ix.Build(context.Background())

			assert.LessOrEqual(t, len(ms.Dates), maxDates)
			consumed := make(map[string]struct{})
			for _, row := range pager.rows[:min(len(pager.rows), pager.calls*batch)] {
				consumed[row.Contract] = struct{}{}
			}
			for _, date := range ms.Dates {
				for _, id := range ms.Contracts[date] {
					assert.Contains(t, consumed, id)
					assert.Equal(t, date, DateOf(id))
				}
			}
		}
	}
}

func TestConfig_Normalized(t *testing.T) {
	cfg := Config{MaxDates: 0, BatchSize: -1, MaxBatches: 2}.normalized()
	assert.Equal(t, Config{MaxDates: 3, BatchSize: 1000, MaxBatches: 2}, cfg)
}
