package s2_signals

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
)

const (
	// DefaultSignalThreshold is the |timeSignal| level at which upstream opens a position
	DefaultSignalThreshold = 0.30
	// DefaultMatchTolerance bounds the signal → price tick alignment
	DefaultMatchTolerance = 5 * time.Minute
)

// AlignedSignal is a trade signal placed on the price series
type AlignedSignal struct {
	Signal       contracts.SignalRecord `json:"signal"`
	MatchedPrice *float64               `json:"matched_price"`
	MatchedAt    *time.Time             `json:"matched_at"`
}

// TrendPoint is one minute of the time-signal trend
type TrendPoint struct {
	Minute         time.Time             `json:"minute"`
	TradeSignal    contracts.TradeSignal `json:"tradeSignal"`
	TimeSignal     *float64              `json:"timeSignal"`
	ExcessStrength float64               `json:"excess_strength"`
}

// Processor merges signal and price series
type Processor struct {
	threshold float64
	tolerance time.Duration
}

// NewProcessor creates a Processor. Non-positive values fall back to the defaults.
func NewProcessor(threshold float64, tolerance time.Duration) *Processor {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultSignalThreshold
	}
	if tolerance <= 0 {
		tolerance = DefaultMatchTolerance
	}
	return &Processor{threshold: threshold, tolerance: tolerance}
}

// Threshold returns the decision threshold
func (p *Processor) Threshold() float64 {
	return p.threshold
}

// Tolerance returns the alignment tolerance
func (p *Processor) Tolerance() time.Duration {
	return p.tolerance
}

// ExcessStrength is the distance of timeSignal beyond the decision threshold
func (p *Processor) ExcessStrength(timeSignal *float64) float64 {
	return ExcessStrength(timeSignal, p.threshold)
}

// ExcessStrength shifts timeSignal toward zero by threshold on its own side.
// Missing or zero signals yield 0. The result is not clamped, so a value
// inside the deadband changes sign.
// ⭐ SSOT: excess strength derivation
func ExcessStrength(timeSignal *float64, threshold float64) float64 {
	if timeSignal == nil || math.IsNaN(*timeSignal) {
		return 0
	}
	v := *timeSignal
	switch {
	case v > 0:
		return v - threshold
	case v < 0:
		return v + threshold
	default:
		return 0
	}
}

// Trend orders signal history oldest first and attaches excess strength
func (p *Processor) Trend(records []contracts.SignalRecord) []TrendPoint {
	sorted := SortSignals(records)
	points := make([]TrendPoint, 0, len(sorted))
	for _, rec := range sorted {
		points = append(points, TrendPoint{
			Minute:         rec.SnapshotMinute,
			TradeSignal:    rec.TradeSignal,
			TimeSignal:     rec.TimeSignal,
			ExcessStrength: p.ExcessStrength(rec.TimeSignal),
		})
	}
	return points
}

// AlignSignalsToPriceSeries matches every OPEN_LONG/OPEN_SHORT signal to the
// price tick nearest in time. Ties go to the earlier tick; a nearest tick
// farther than the tolerance leaves the match empty.
// ⭐ SSOT: signal overlay alignment
func (p *Processor) AlignSignalsToPriceSeries(signals []contracts.SignalRecord, ticks []contracts.PriceTick) []AlignedSignal {
	sortedTicks := SortTicks(ticks)

	aligned := make([]AlignedSignal, 0, len(signals))
	for _, sig := range SortSignals(signals) {
		if !sig.TradeSignal.IsTrade() {
			continue
		}

		out := AlignedSignal{Signal: sig}
		if tick, ok := nearestTick(sortedTicks, sig.SnapshotMinute); ok && absDuration(tick.Timestamp.Sub(sig.SnapshotMinute)) <= p.tolerance {
			price := tick.Price
			at := tick.Timestamp
			out.MatchedPrice = &price
			out.MatchedAt = &at
		}
		aligned = append(aligned, out)
	}
	return aligned
}

// NextSnapshotMinute returns the first available minute at or after tick.
// minutes must be sorted ascending.
func NextSnapshotMinute(tick time.Time, minutes []time.Time) (time.Time, bool) {
	i := sort.Search(len(minutes), func(i int) bool {
		return !minutes[i].Before(tick)
	})
	if i == len(minutes) {
		return time.Time{}, false
	}
	return minutes[i], true
}

// TradesToTicks converts a trade tape into a price series, oldest first.
// Trades without a usable price or timestamp are dropped.
func TradesToTicks(trades []contracts.Trade) []contracts.PriceTick {
	ticks := make([]contracts.PriceTick, 0, len(trades))
	for _, tr := range trades {
		ts, ok := tr.Time()
		if !ok || math.IsNaN(tr.Price) {
			continue
		}
		vol := tr.Volume
		if math.IsNaN(vol) {
			vol = 0
		}
		ticks = append(ticks, contracts.PriceTick{Timestamp: ts, Price: tr.Price, Volume: vol})
	}
	return SortTicks(ticks)
}

// SortSignals returns a copy ordered by snapshot minute ascending
func SortSignals(records []contracts.SignalRecord) []contracts.SignalRecord {
	sorted := make([]contracts.SignalRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SnapshotMinute.Before(sorted[j].SnapshotMinute)
	})
	return sorted
}

// SortTicks returns a copy ordered by timestamp ascending
func SortTicks(ticks []contracts.PriceTick) []contracts.PriceTick {
	sorted := make([]contracts.PriceTick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// nearestTick picks between the last tick before t and the first tick at or after t
func nearestTick(ticks []contracts.PriceTick, t time.Time) (contracts.PriceTick, bool) {
	if len(ticks) == 0 {
		return contracts.PriceTick{}, false
	}

	i := sort.Search(len(ticks), func(i int) bool {
		return !ticks[i].Timestamp.Before(t)
	})
	switch {
	case i == 0:
		return ticks[0], true
	case i == len(ticks):
		return ticks[len(ticks)-1], true
	}

	before, after := ticks[i-1], ticks[i]
	if after.Timestamp.Sub(t) < t.Sub(before.Timestamp) {
		return after, true
	}
	return before, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
