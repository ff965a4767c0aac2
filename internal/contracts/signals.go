package contracts

import (
	"encoding/json"
	"time"
)

// TradeSignal is the upstream discrete classification of one minute
type TradeSignal string

const (
	TradeSignalNone TradeSignal = "NONE"
	OpenLong        TradeSignal = "OPEN_LONG"
	OpenShort       TradeSignal = "OPEN_SHORT"
)

// ParseTradeSignal maps anything other than the two open signals to NONE
func ParseTradeSignal(s string) TradeSignal {
	switch TradeSignal(s) {
	case OpenLong:
		return OpenLong
	case OpenShort:
		return OpenShort
	default:
		return TradeSignalNone
	}
}

// IsTrade reports whether the signal opens a position
func (s TradeSignal) IsTrade() bool {
	return s == OpenLong || s == OpenShort
}

// UnmarshalJSON tolerates null and unknown values
func (s *TradeSignal) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = TradeSignalNone
		return nil
	}
	*s = ParseTradeSignal(*raw)
	return nil
}

// SignalRecord is one minute-resolution classification for one contract
// ⭐ SSOT: signals row shape shared by every store backend
type SignalRecord struct {
	Contract       string      `json:"contract"`
	SnapshotMinute time.Time   `json:"snapshot_minute"`
	TradeSignal    TradeSignal `json:"tradeSignal"`
	TimeSignal     *float64    `json:"timeSignal"` // nil when upstream left it empty
}

// In returns a copy with the snapshot minute expressed in loc
func (r SignalRecord) In(loc *time.Location) SignalRecord {
	r.SnapshotMinute = r.SnapshotMinute.In(loc)
	return r
}

type signalRecordJSON struct {
	Contract       string          `json:"contract"`
	SnapshotMinute string          `json:"snapshot_minute"`
	TradeSignal    TradeSignal     `json:"tradeSignal"`
	TimeSignal     json.RawMessage `json:"timeSignal"`
}

// UnmarshalJSON accepts timeSignal as a number or a numeric string
// and snapshot_minute with or without an offset
func (r *SignalRecord) UnmarshalJSON(data []byte) error {
	raw := signalRecordJSON{TradeSignal: TradeSignalNone}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	minute, err := ParseTimestamp(raw.SnapshotMinute)
	if err != nil {
		return err
	}

	r.Contract = raw.Contract
	r.SnapshotMinute = minute
	r.TradeSignal = raw.TradeSignal
	if r.TradeSignal == "" {
		r.TradeSignal = TradeSignalNone
	}
	r.TimeSignal = Float(ParseNumber(raw.TimeSignal))
	return nil
}
