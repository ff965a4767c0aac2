package s0_data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/phwatch/internal/contracts"
)

func TestMemoryStore_Signals(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	mem.AddSignals(
		contracts.SignalRecord{Contract: "PH25112112", SnapshotMinute: minute.Add(2 * time.Minute), TradeSignal: contracts.OpenLong},
		contracts.SignalRecord{Contract: "PH25112112", SnapshotMinute: minute, TradeSignal: contracts.TradeSignalNone},
		contracts.SignalRecord{Contract: "PH25112113", SnapshotMinute: minute.Add(time.Minute), TradeSignal: contracts.OpenShort},
	)

	latest, err := mem.FetchLatestSignal(ctx, "PH25112112")
	require.NoError(t, err)
	assert.True(t, latest.SnapshotMinute.Equal(minute.Add(2*time.Minute)))

	history, err := mem.FetchSignalHistory(ctx, "PH25112112", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].SnapshotMinute.After(history[1].SnapshotMinute))

	trades, err := mem.FetchRecentTradeSignals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "PH25112112", trades[0].Contract)
}

func TestMemoryStore_ContractMinutePaging(t *testing.T) {
	mem := NewMemoryStore()
	for i := 0; i < 5; i++ {
		mem.AddSnapshots(contracts.Snapshot{Contract: "PH25112112", SnapshotMinute: minute.Add(time.Duration(i) * time.Minute)})
	}

	page, err := mem.FetchRecentContractMinutePairs(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].SnapshotMinute.Equal(minute.Add(time.Minute)))

	page, err = mem.FetchRecentContractMinutePairs(context.Background(), 5, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStore_Fail(t *testing.T) {
	mem := NewMemoryStore()
	mem.Fail(OpActiveContracts, errors.New("board unavailable"))

	_, err := mem.FetchActiveContracts(context.Background())
	assert.Error(t, err)

	mem.Fail(OpActiveContracts, nil)
	ids, err := mem.FetchActiveContracts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 2, mem.Calls(OpActiveContracts))
}
