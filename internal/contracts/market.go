package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ContractMinute is one (contract, snapshot minute) pair from the snapshot store.
// The market structure index pages through these, most recent minute first.
type ContractMinute struct {
	Contract       string    `json:"contract"`
	SnapshotMinute time.Time `json:"snapshot_minute"`
}

// Snapshot is one minute-resolution market state for one contract
// ⭐ SSOT: snapshot row shape shared by every store backend
type Snapshot struct {
	Contract         string    `json:"contract"`
	SnapshotMinute   time.Time `json:"snapshot_minute"`
	MCP              *float64  `json:"mcp"`              // settlement price
	AveragePrice     *float64  `json:"averagePrice"`     // upstream average price
	RemainingSeconds *float64  `json:"remainingSeconds"` // time to delivery
	Depth            Depth     `json:"depth"`
	Trades           []Trade   `json:"trades"`
}

// Depth holds both sides of the order book as delivered by the source.
// Levels are not guaranteed to be sorted.
type Depth struct {
	Bids []DepthLevel `json:"bids"`
	Asks []DepthLevel `json:"asks"`
}

// DepthLevel is one resting price level. NaN marks a non-numeric source value.
type DepthLevel struct {
	Price  float64
	Volume float64
}

type depthLevelJSON struct {
	Price    json.RawMessage `json:"price"`
	P        json.RawMessage `json:"p"`
	Volume   json.RawMessage `json:"volume"`
	Q        json.RawMessage `json:"q"`
	Quantity json.RawMessage `json:"quantity"`
}

// UnmarshalJSON accepts {"price","volume"}, the compact {"p","q"} form and [price, volume] pairs.
func (l *DepthLevel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		l.Price, l.Volume = math.NaN(), math.NaN()
		if len(pair) > 0 {
			l.Price = numberOrNaN(pair[0])
		}
		if len(pair) > 1 {
			l.Volume = numberOrNaN(pair[1])
		}
		return nil
	}

	var raw depthLevelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Price = numberOrNaN(firstPresent(raw.Price, raw.P))
	l.Volume = numberOrNaN(firstPresent(raw.Volume, raw.Q, raw.Quantity))
	return nil
}

// MarshalJSON writes missing values as null
func (l DepthLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]*float64{
		"price":  finiteOrNil(l.Price),
		"volume": finiteOrNil(l.Volume),
	})
}

// Trade is one print on the trade tape
type Trade struct {
	Price     float64
	Volume    float64
	Timestamp float64 // unix seconds, fractional
}

type tradeJSON struct {
	P         json.RawMessage `json:"p"`
	Price     json.RawMessage `json:"price"`
	Q         json.RawMessage `json:"q"`
	Volume    json.RawMessage `json:"volume"`
	T         json.RawMessage `json:"t"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// UnmarshalJSON accepts the compact {"p","q","t"} tape form and long names
func (t *Trade) UnmarshalJSON(data []byte) error {
	var raw tradeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Price = numberOrNaN(firstPresent(raw.P, raw.Price))
	t.Volume = numberOrNaN(firstPresent(raw.Q, raw.Volume))
	t.Timestamp = numberOrNaN(firstPresent(raw.T, raw.Timestamp))
	return nil
}

// MarshalJSON writes the compact tape form
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]*float64{
		"p": finiteOrNil(t.Price),
		"q": finiteOrNil(t.Volume),
		"t": finiteOrNil(t.Timestamp),
	})
}

// Time converts the unix-seconds timestamp; ok is false when it is missing
func (t Trade) Time() (time.Time, bool) {
	if math.IsNaN(t.Timestamp) || math.IsInf(t.Timestamp, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(t.Timestamp)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))), true
}

// PriceTick is one point of a price series
type PriceTick struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// CurvePoint is one level of a cumulative depth curve
type CurvePoint struct {
	Price      float64
	Cumulative float64
}

// MarshalJSON writes a missing price as null
func (p CurvePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price      *float64 `json:"price"`
		Cumulative float64  `json:"cumulative_volume"`
	}{finiteOrNil(p.Price), p.Cumulative})
}

// DepthCurve is ordered from the best price outward; Cumulative never decreases
type DepthCurve []CurvePoint

// MarketStructure maps trading dates to their contracts, most recent dates first
// ⭐ SSOT: history navigation index, rebuilt on every refresh window
type MarketStructure struct {
	Dates          []string            `json:"dates"`     // YYYY-MM-DD, descending
	Contracts      map[string][]string `json:"contracts"` // date -> ids ascending
	BatchesFetched int                 `json:"batches_fetched"`
	RowsScanned    int                 `json:"rows_scanned"`
	BuiltAt        time.Time           `json:"built_at"`
}

// ContractCount returns the number of contracts across all dates
func (m *MarketStructure) ContractCount() int {
	n := 0
	for _, ids := range m.Contracts {
		n += len(ids)
	}
	return n
}

// Float converts a (value, ok) pair into a JSON-friendly pointer
func Float(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// ParseNumber reads a JSON number or numeric string. null, empty and
// non-numeric values report false.
func ParseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	return ParseNumberString(s)
}

// ParseNumberString parses a decimal string; empty and non-finite values report false
func ParseNumberString(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp reads the timestamp forms emitted by Postgres and PostgREST.
// Values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func numberOrNaN(raw json.RawMessage) float64 {
	if v, ok := ParseNumber(raw); ok {
		return v
	}
	return math.NaN()
}

func firstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
