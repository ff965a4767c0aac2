package s0_data

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/logger"
)

func TestGuardedStore_PassesThrough(t *testing.T) {
	mem := NewMemoryStore()
	mem.AddSignals(contracts.SignalRecord{Contract: "PH25112112", SnapshotMinute: minute, TradeSignal: contracts.OpenLong})
	guarded := NewGuardedStore(mem, "memory", metrics.New(), logger.Nop())

	rec, err := guarded.FetchLatestSignal(context.Background(), "PH25112112")
	require.NoError(t, err)
	require.NotNil(t, rec)

	rec, err = guarded.FetchLatestSignal(context.Background(), "PH25119999")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, gobreaker.StateClosed, guarded.State())
}

func TestGuardedStore_TripsAfterConsecutiveFailures(t *testing.T) {
	mem := NewMemoryStore()
	mem.Fail(OpSnapshotMinutes, errors.New("connection reset"))
	guarded := NewGuardedStore(mem, "memory", metrics.New(), logger.Nop())

	for i := 0; i < 3; i++ {
		_, err := guarded.FetchSnapshotMinutes(context.Background(), "PH25112112")
		assert.ErrorContains(t, err, "connection reset")
	}
	assert.Equal(t, gobreaker.StateOpen, guarded.State())

	_, err := guarded.FetchSnapshotMinutes(context.Background(), "PH25112112")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, mem.Calls(OpSnapshotMinutes))
}

func TestGuardedStore_CancellationDoesNotTrip(t *testing.T) {
	mem := NewMemoryStore()
	mem.Fail(OpLatestSnapshot, context.Canceled)
	guarded := NewGuardedStore(mem, "memory", nil, logger.Nop())

	for i := 0; i < 5; i++ {
		_, err := guarded.FetchLatestSnapshot(context.Background(), "PH25112112")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, guarded.State())
}
