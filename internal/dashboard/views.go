package dashboard

import (
	"time"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/s0_data/quality"
	"github.com/wonny/phwatch/internal/s2_signals"
)

// OverviewRow is the latest classification of one active contract
type OverviewRow struct {
	Contract       string                `json:"contract"`
	Date           string                `json:"date"`
	SnapshotMinute time.Time             `json:"snapshot_minute"`
	TradeSignal    contracts.TradeSignal `json:"tradeSignal"`
	TimeSignal     *float64              `json:"timeSignal"`
	ExcessStrength float64               `json:"excess_strength"`
	Stale          bool                  `json:"stale"`
}

// Overview is the live board: one row per active contract with a signal
type Overview struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	ActiveContracts []string          `json:"active_contracts"`
	Rows            []OverviewRow     `json:"rows"`
	Alerts          []OverviewRow     `json:"alerts"`
	LatestMinute    *time.Time        `json:"latest_minute"`
	Threshold       float64           `json:"threshold"`
	Missing         []string          `json:"missing"`          // active contracts without any signal row
	Errors          map[string]string `json:"errors,omitempty"` // contract -> fetch error
	Error           string            `json:"error,omitempty"`  // board failure
}

// ContractDetail is the signal history of one contract with the latest-row KPIs
type ContractDetail struct {
	Contract       string                   `json:"contract"`
	Date           string                   `json:"date"`
	Latest         *contracts.SignalRecord  `json:"latest"`
	LastUpdate     *time.Time               `json:"last_update"`
	ExcessStrength float64                  `json:"excess_strength"`
	History        []contracts.SignalRecord `json:"history"` // newest first
	Trend          []s2_signals.TrendPoint  `json:"trend"`   // oldest first
	Threshold      float64                  `json:"threshold"`
	Error          string                   `json:"error,omitempty"`
}

// TimelineEntry is one OPEN_LONG/OPEN_SHORT event
type TimelineEntry struct {
	Contract       string                `json:"contract"`
	Date           string                `json:"date"`
	SnapshotMinute time.Time             `json:"snapshot_minute"`
	TradeSignal    contracts.TradeSignal `json:"tradeSignal"`
	TimeSignal     *float64              `json:"timeSignal"`
	ExcessStrength float64               `json:"excess_strength"`
}

// Timeline is the recent trade-signal feed across contracts, newest first
type Timeline struct {
	Entries   []TimelineEntry `json:"entries"`
	Limit     int             `json:"limit"`
	Threshold float64         `json:"threshold"`
	Error     string          `json:"error,omitempty"`
}

// HistoryTick is a price tick with the snapshot minute it settles into
type HistoryTick struct {
	Timestamp          time.Time  `json:"timestamp"`
	Price              float64    `json:"price"`
	Volume             float64    `json:"volume"`
	NextSnapshotMinute *time.Time `json:"next_snapshot_minute"`
}

// History overlays a contract's trade signals on its price series
type History struct {
	Contract       string                     `json:"contract"`
	SnapshotMinute *time.Time                 `json:"snapshot_minute"` // snapshot the ticks came from
	Ticks          []HistoryTick              `json:"ticks"`
	Signals        []contracts.SignalRecord   `json:"signals"` // oldest first
	Overlay        []s2_signals.AlignedSignal `json:"overlay"`
	Tolerance      string                     `json:"tolerance"`
	Errors         map[string]string          `json:"errors,omitempty"` // part -> fetch error
}

// SnapshotMetrics are the point-in-time metrics of one snapshot
type SnapshotMetrics struct {
	Contract           string               `json:"contract"`
	SnapshotMinute     time.Time            `json:"snapshot_minute"`
	RequestedMinute    *time.Time           `json:"requested_minute,omitempty"`
	MCP                *float64             `json:"mcp"`
	AveragePrice       *float64             `json:"averagePrice"`
	RemainingSeconds   *float64             `json:"remainingSeconds"`
	BidCurve           contracts.DepthCurve `json:"bid_curve"`
	AskCurve           contracts.DepthCurve `json:"ask_curve"`
	Imbalance          *float64             `json:"imbalance"`
	BestBid            *float64             `json:"best_bid"`
	BestAsk            *float64             `json:"best_ask"`
	Spread             *float64             `json:"spread"`
	RecentPrice        *float64             `json:"recent_vwap"`
	ChangeVsSettlement *float64             `json:"change_vs_settlement"`
	TargetVolume       float64              `json:"target_volume"`
	Trades             int                  `json:"trades"`
	Quality            *quality.Report      `json:"quality,omitempty"`
	Error              string               `json:"error,omitempty"`
}

// ComponentStatus is the connectivity of one backend
type ComponentStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Status reports backend connectivity and the age of the cached structure
type Status struct {
	CheckedAt          time.Time                  `json:"checked_at"`
	Components         map[string]ComponentStatus `json:"components"`
	StructureBuiltAt   *time.Time                 `json:"structure_built_at"`
	StructureDates     int                        `json:"structure_dates"`
	StructureContracts int                        `json:"structure_contracts"`
}

// Healthy reports whether every component is connected
func (s *Status) Healthy() bool {
	for _, c := range s.Components {
		if !c.Connected {
			return false
		}
	}
	return true
}
