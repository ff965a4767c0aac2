package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/dashboard"
	"github.com/wonny/phwatch/internal/realtime"
	"github.com/wonny/phwatch/internal/realtime/cache"
	"github.com/wonny/phwatch/internal/s0_data"
	"github.com/wonny/phwatch/pkg/logger"
)

type recorder struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (r *recorder) Broadcast(msg realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) types() []realtime.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.MessageType, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func f(v float64) *float64 { return &v }

func newService(t *testing.T, store *s0_data.MemoryStore) *dashboard.Service {
	t.Helper()
	svc, err := dashboard.NewService(store, store, dashboard.DefaultConfig(), nil, logger.Nop())
	require.NoError(t, err)
	return svc
}

func TestOverviewRefreshJob(t *testing.T) {
	minute := time.Now().Truncate(time.Minute)
	store := s0_data.NewMemoryStore()
	store.SetActive("PH25112122", "PH25112123")
	store.AddSignals(
		contracts.SignalRecord{Contract: "PH25112122", SnapshotMinute: minute, TradeSignal: contracts.OpenLong, TimeSignal: f(0.4)},
		contracts.SignalRecord{Contract: "PH25112123", SnapshotMinute: minute, TradeSignal: contracts.TradeSignalNone, TimeSignal: f(0.1)},
	)

	signalCache := cache.NewSignalCache(10*time.Minute, logger.Nop())
	signalCache.Update(&realtime.LatestSignal{Contract: "PH25111923", SnapshotMinute: minute})
	hub := &recorder{}
	job := NewOverviewRefreshJob(newService(t, store), signalCache, hub, "0 * * * * *", logger.Nop())

	assert.Equal(t, "refresh_overview", job.Name())
	assert.Equal(t, "0 * * * * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []realtime.MessageType{realtime.MessageOverview, realtime.MessageAlert}, hub.types())
	assert.Equal(t, 2, signalCache.Len(), "contracts off the board are dropped")

	// unchanged data: overview again, no new alert
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []realtime.MessageType{realtime.MessageOverview, realtime.MessageAlert, realtime.MessageOverview}, hub.types())
}

func TestOverviewRefreshJob_BoardFailure(t *testing.T) {
	store := s0_data.NewMemoryStore()
	store.Fail(s0_data.OpActiveContracts, errors.New("redis down"))
	hub := &recorder{}

	job := NewOverviewRefreshJob(newService(t, store), cache.NewSignalCache(time.Minute, logger.Nop()), hub, "@every 1m", logger.Nop())

	assert.EqualError(t, job.Run(context.Background()), "redis down")
	assert.Empty(t, hub.types())
}

func TestStructureRefreshJob(t *testing.T) {
	store := s0_data.NewMemoryStore()
	store.AddSnapshots(contracts.Snapshot{Contract: "PH25112123", SnapshotMinute: time.Now()})
	svc := newService(t, store)

	job := NewStructureRefreshJob(svc, "30 */5 * * * *", logger.Nop())
	assert.Equal(t, "market_structure", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"2025-11-21"}, svc.Structure(context.Background()).Dates)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}

func TestCacheCleanupJob(t *testing.T) {
	signalCache := cache.NewSignalCache(time.Minute, logger.Nop())
	signalCache.Update(&realtime.LatestSignal{Contract: "PH25112123", SnapshotMinute: time.Now().Add(-time.Hour)})
	signalCache.Update(&realtime.LatestSignal{Contract: "PH25112124", SnapshotMinute: time.Now()})

	job := NewCacheCleanupJob(signalCache, logger.Nop())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, signalCache.Len())
}
