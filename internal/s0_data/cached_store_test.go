package s0_data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/logger"
	"github.com/wonny/phwatch/pkg/redis"
)

var minute = time.Date(2025, 11, 21, 9, 15, 0, 0, time.UTC)

func newCachedFixture(t *testing.T) (*CachedStore, *MemoryStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	mem := NewMemoryStore()
	cache := redis.NewCache(redis.Wrap(db), "phwatch")
	return NewCachedStore(mem, cache, time.Minute, metrics.New(), logger.Nop()), mem, mock
}

func TestCachedStore_MissLoadsAndStores(t *testing.T) {
	store, mem, mock := newCachedFixture(t)
	rec := contracts.SignalRecord{
		Contract:       "PH25112112",
		SnapshotMinute: minute,
		TradeSignal:    contracts.OpenLong,
		TimeSignal:     contracts.Float(0.4, true),
	}
	mem.AddSignals(rec)

	payload, err := json.Marshal(&rec)
	require.NoError(t, err)

	mock.ExpectGet("phwatch:cache:signal:latest:PH25112112").RedisNil()
	mock.ExpectSet("phwatch:cache:signal:latest:PH25112112", payload, time.Minute).SetVal("OK")

	got, err := store.FetchLatestSignal(context.Background(), "PH25112112")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, contracts.OpenLong, got.TradeSignal)
	assert.Equal(t, 1, mem.Calls(OpLatestSignal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_HitSkipsStore(t *testing.T) {
	store, mem, mock := newCachedFixture(t)

	mock.ExpectGet("phwatch:cache:signal:history:PH25112112:100").
		SetVal(`[{"contract":"PH25112112","snapshot_minute":"2025-11-21T09:15:00Z","tradeSignal":"OPEN_SHORT","timeSignal":-0.6}]`)

	recs, err := store.FetchSignalHistory(context.Background(), "PH25112112", 100)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, contracts.OpenShort, recs[0].TradeSignal)
	assert.Equal(t, 0, mem.Calls(OpSignalHistory))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_CachesAbsentSnapshot(t *testing.T) {
	store, mem, mock := newCachedFixture(t)

	key := "phwatch:cache:" + redis.SnapshotKey("PH25112112", minute)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, []byte("null"), time.Minute).SetVal("OK")

	snap, err := store.FetchSnapshot(context.Background(), "PH25112112", minute)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 1, mem.Calls(OpSnapshot))

	mock.ExpectGet(key).SetVal("null")
	snap, err = store.FetchSnapshot(context.Background(), "PH25112112", minute)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 1, mem.Calls(OpSnapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_PagerBypassesCache(t *testing.T) {
	store, mem, mock := newCachedFixture(t)
	mem.AddSnapshots(contracts.Snapshot{Contract: "PH25112112", SnapshotMinute: minute})

	pairs, err := store.FetchRecentContractMinutePairs(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedBoard(t *testing.T) {
	store, mem, mock := newCachedFixture(t)
	mem.SetActive("PH25112112", "PH25112113")

	mock.ExpectGet("phwatch:cache:contracts:active").RedisNil()
	mock.ExpectSet("phwatch:cache:contracts:active", []byte(`["PH25112112","PH25112113"]`), time.Minute).SetVal("OK")

	ids, err := NewCachedBoard(mem, store).FetchActiveContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PH25112112", "PH25112113"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
