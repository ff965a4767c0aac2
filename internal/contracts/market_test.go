package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthLevel_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantPrice  float64
		wantVolume float64
	}{
		{"long names", `{"price":2500.5,"volume":10}`, 2500.5, 10},
		{"compact names", `{"p":2500,"q":3}`, 2500, 3},
		{"quantity alias", `{"price":"2400","quantity":"7.5"}`, 2400, 7.5},
		{"pair form", `[2300, 4]`, 2300, 4},
		{"non-numeric price", `{"price":"abc","volume":5}`, math.NaN(), 5},
		{"null volume", `{"price":2000,"volume":null}`, 2000, math.NaN()},
		{"missing fields", `{}`, math.NaN(), math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lvl DepthLevel
			require.NoError(t, json.Unmarshal([]byte(tt.input), &lvl))
			assertFloatOrNaN(t, tt.wantPrice, lvl.Price)
			assertFloatOrNaN(t, tt.wantVolume, lvl.Volume)
		})
	}
}

func TestDepthLevel_MarshalNaNAsNull(t *testing.T) {
	data, err := json.Marshal(DepthLevel{Price: math.NaN(), Volume: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":null,"volume":4}`, string(data))

	var back DepthLevel
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.Price))
	assert.Equal(t, 4.0, back.Volume)
}

func TestTrade_JSON(t *testing.T) {
	var trades []Trade
	require.NoError(t, json.Unmarshal([]byte(`[{"p":100,"q":30,"t":1000},{"price":"110","volume":20,"timestamp":900.5},{"p":"x","q":1,"t":null}]`), &trades))
	require.Len(t, trades, 3)

	assert.Equal(t, Trade{Price: 100, Volume: 30, Timestamp: 1000}, trades[0])
	assert.Equal(t, Trade{Price: 110, Volume: 20, Timestamp: 900.5}, trades[1])
	assert.True(t, math.IsNaN(trades[2].Price))
	assert.True(t, math.IsNaN(trades[2].Timestamp))

	data, err := json.Marshal(trades[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":null,"q":1,"t":null}`, string(data))
}

func TestTrade_Time(t *testing.T) {
	ts, ok := Trade{Timestamp: 1763716500.5}.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 11, 21, 9, 15, 0, 500_000_000, time.UTC), ts.UTC())

	_, ok = Trade{Timestamp: math.NaN()}.Time()
	assert.False(t, ok)
}

func TestCurvePoint_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(DepthCurve{{Price: 10, Cumulative: 5}, {Price: math.NaN(), Cumulative: 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"price":10,"cumulative_volume":5},{"price":null,"cumulative_volume":5}]`, string(data))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{`12.5`, 12.5, true},
		{`"12.5"`, 12.5, true},
		{`" 3 "`, 3, true},
		{`null`, 0, false},
		{``, 0, false},
		{`"abc"`, 0, false},
		{`"NaN"`, 0, false},
		{`true`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(json.RawMessage(tt.in))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarketStructure_ContractCount(t *testing.T) {
	ms := &MarketStructure{Contracts: map[string][]string{
		"2025-11-21": {"PH25112101", "PH25112102"},
		"2025-11-20": {"PH25112024"},
	}}
	assert.Equal(t, 3, ms.ContractCount())
}

func TestFloat(t *testing.T) {
	assert.Nil(t, Float(1, false))
	require.NotNil(t, Float(2, true))
	assert.Equal(t, 2.0, *Float(2, true))
}

func assertFloatOrNaN(t *testing.T, want, got float64) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "expected NaN, got %v", got)
		return
	}
	assert.Equal(t, want, got)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 11, 21, 9, 15, 0, 0, time.UTC)

	tests := []string{
		"2025-11-21T09:15:00Z",
		"2025-11-21T09:15:00+00:00",
		"2025-11-21T12:15:00+03:00",
		"2025-11-21T12:15:00+03",
		"2025-11-21 09:15:00+00",
		"2025-11-21 12:15:00+03:00",
		"2025-11-21T09:15:00",
		"2025-11-21 09:15:00.000000",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseTimestamp(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}
