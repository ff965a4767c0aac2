package s1_structure

import (
	"errors"
	"sort"
	"strings"
)

// OthersKey collects identifiers that do not follow the contract grammar
const OthersKey = "Others"

const (
	contractPrefix = "PH"
	minContractLen = 8 // "PH" + YYMMDD
)

// ErrNotParseable is returned by Parse for ids outside the contract grammar
var ErrNotParseable = errors.New("contract id not parseable")

// ContractID is the decoded form of a contract code like "PH25112123"
type ContractID struct {
	Code string `json:"code"`
	Date string `json:"date"` // YYYY-MM-DD
	Slot string `json:"slot"` // intraday delivery slot, may be empty
}

// Parse extracts the trading date and slot from a contract code.
// Only the prefix and length are checked; "PH251321" yields "2025-13-21".
func Parse(id string) (ContractID, error) {
	if len(id) < minContractLen || !strings.HasPrefix(id, contractPrefix) {
		return ContractID{}, ErrNotParseable
	}

	ymd := id[2:8]
	return ContractID{
		Code: id,
		Date: "20" + ymd[0:2] + "-" + ymd[2:4] + "-" + ymd[4:6],
		Slot: id[8:],
	}, nil
}

// DateOf returns the trading date of id, or OthersKey when it is not parseable
func DateOf(id string) string {
	parsed, err := Parse(id)
	if err != nil {
		return OthersKey
	}
	return parsed.Date
}

// GroupByDate partitions ids by trading date.
// Duplicates collapse, ids within a group sort ascending, unparseable ids land under OthersKey.
func GroupByDate(ids []string) map[string][]string {
	seen := make(map[string]struct{}, len(ids))
	groups := make(map[string][]string)

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		date := DateOf(id)
		groups[date] = append(groups[date], id)
	}

	for _, members := range groups {
		sort.Strings(members)
	}
	return groups
}

// SortDates returns the group keys most recent first with OthersKey last
func SortDates(groups map[string][]string) []string {
	dates := make([]string, 0, len(groups))
	hasOthers := false
	for date := range groups {
		if date == OthersKey {
			hasOthers = true
			continue
		}
		dates = append(dates, date)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if hasOthers {
		dates = append(dates, OthersKey)
	}
	return dates
}
