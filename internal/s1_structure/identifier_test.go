package s1_structure

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantDate string
		wantSlot string
		wantErr  bool
	}{
		{name: "hourly contract", id: "PH25112123", wantDate: "2025-11-21", wantSlot: "23"},
		{name: "length eight boundary", id: "PH251121", wantDate: "2025-11-21", wantSlot: ""},
		{name: "month thirteen kept verbatim", id: "PH25132101", wantDate: "2025-13-21", wantSlot: "01"},
		{name: "non digit body accepted", id: "PHABCDEF", wantDate: "20AB-CD-EF", wantSlot: ""},
		{name: "invalid name", id: "INVALID_NAME", wantErr: true},
		{name: "too short", id: "PH25112", wantErr: true},
		{name: "lowercase prefix", id: "ph25112123", wantErr: true},
		{name: "empty", id: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotParseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, got.Code)
			assert.Equal(t, tt.wantDate, got.Date)
			assert.Equal(t, tt.wantSlot, got.Slot)
		})
	}
}

func TestGroupByDate(t *testing.T) {
	groups := GroupByDate([]string{"PH25112123", "PH25112122", "PH25112023", "INVALID"})

	assert.Equal(t, map[string][]string{
		"2025-11-21": {"PH25112122", "PH25112123"},
		"2025-11-20": {"PH25112023"},
		OthersKey:    {"INVALID"},
	}, groups)
	assert.Equal(t, []string{"2025-11-21", "2025-11-20", OthersKey}, SortDates(groups))
}

func TestGroupByDate_Empty(t *testing.T) {
	groups := GroupByDate(nil)
	assert.Empty(t, groups)
	assert.Empty(t, SortDates(groups))
}

func TestGroupByDate_Partition(t *testing.T) {
	inputs := [][]string{
		{"PH25112123", "PH25112123", "PH25112101", "X", "X", "PH251120"},
		{"PH24010100", "PH24123123", "garbage", "PH2401", "PH24010101"},
		{},
	}

	for _, ids := range inputs {
		groups := GroupByDate(ids)

		var flat []string
		for _, members := range groups {
			flat = append(flat, members...)
		}

		want := uniqueSorted(ids)
		sort.Strings(flat)
		assert.Equal(t, want, flat)
	}
}

func TestSortDates_OthersLast(t *testing.T) {
	groups := map[string][]string{
		OthersKey:    {"Z"},
		"2024-01-01": {"PH24010101"},
		"2025-06-30": {"PH25063001"},
		"2025-01-15": {"PH25011501"},
	}
	assert.Equal(t, []string{"2025-06-30", "2025-01-15", "2024-01-01", OthersKey}, SortDates(groups))
}

func TestDateOf(t *testing.T) {
	assert.Equal(t, "2025-11-21", DateOf("PH25112123"))
	assert.Equal(t, OthersKey, DateOf("board"))
}

func uniqueSorted(ids []string) []string {
	set := make(map[string]struct{})
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
