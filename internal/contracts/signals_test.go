package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeSignal(t *testing.T) {
	tests := []struct {
		in   string
		want TradeSignal
	}{
		{"OPEN_LONG", OpenLong},
		{"OPEN_SHORT", OpenShort},
		{"NONE", TradeSignalNone},
		{"", TradeSignalNone},
		{"CLOSE", TradeSignalNone},
		{"open_long", TradeSignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTradeSignal(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != TradeSignalNone, got.IsTrade())
		})
	}
}

func TestSignalRecord_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSignal TradeSignal
		wantTime   *float64
	}{
		{
			name:       "numeric time signal",
			input:      `{"contract":"PH25112123","snapshot_minute":"2025-11-21T09:15:00Z","tradeSignal":"OPEN_LONG","timeSignal":0.42}`,
			wantSignal: OpenLong,
			wantTime:   Float(0.42, true),
		},
		{
			name:       "string time signal",
			input:      `{"contract":"PH25112123","snapshot_minute":"2025-11-21T09:15:00Z","tradeSignal":"OPEN_SHORT","timeSignal":"-0.5"}`,
			wantSignal: OpenShort,
			wantTime:   Float(-0.5, true),
		},
		{
			name:       "null fields",
			input:      `{"contract":"PH25112123","snapshot_minute":"2025-11-21T09:15:00Z","tradeSignal":null,"timeSignal":null}`,
			wantSignal: TradeSignalNone,
		},
		{
			name:       "garbage time signal",
			input:      `{"contract":"PH25112123","snapshot_minute":"2025-11-21T09:15:00Z","timeSignal":"n/a"}`,
			wantSignal: TradeSignalNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec SignalRecord
			require.NoError(t, json.Unmarshal([]byte(tt.input), &rec))

			assert.Equal(t, "PH25112123", rec.Contract)
			assert.True(t, rec.SnapshotMinute.Equal(time.Date(2025, 11, 21, 9, 15, 0, 0, time.UTC)))
			assert.Equal(t, tt.wantSignal, rec.TradeSignal)
			if tt.wantTime == nil {
				assert.Nil(t, rec.TimeSignal)
			} else {
				require.NotNil(t, rec.TimeSignal)
				assert.InDelta(t, *tt.wantTime, *rec.TimeSignal, 1e-9)
			}
		})
	}
}

func TestSignalRecord_RoundTrip(t *testing.T) {
	rec := SignalRecord{
		Contract:       "PH25112123",
		SnapshotMinute: time.Date(2025, 11, 21, 9, 15, 0, 0, time.UTC),
		TradeSignal:    OpenLong,
		TimeSignal:     Float(0.8, true),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back SignalRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Contract, back.Contract)
	assert.Equal(t, rec.TradeSignal, back.TradeSignal)
	assert.Equal(t, *rec.TimeSignal, *back.TimeSignal)
}

func TestSignalRecord_In(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)

	rec := SignalRecord{SnapshotMinute: time.Date(2025, 11, 21, 9, 15, 0, 0, time.UTC)}
	local := rec.In(loc)

	assert.Equal(t, 12, local.SnapshotMinute.Hour())
	assert.True(t, local.SnapshotMinute.Equal(rec.SnapshotMinute))
}
