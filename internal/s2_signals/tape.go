package s2_signals

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
)

// DefaultTargetVolume is the trailing volume budget of the recent VWAP
const DefaultTargetVolume = 50.0

// ErrNegativeTargetVolume rejects a negative VWAP volume budget
var ErrNegativeTargetVolume = errors.New("target volume must not be negative")

// TapeAggregator computes last-N-volume prices from a trade tape
type TapeAggregator struct {
	targetVolume float64
}

// NewTapeAggregator creates an aggregator for the given volume budget
func NewTapeAggregator(targetVolume float64) (*TapeAggregator, error) {
	if targetVolume < 0 || math.IsNaN(targetVolume) {
		return nil, ErrNegativeTargetVolume
	}
	return &TapeAggregator{targetVolume: targetVolume}, nil
}

// TargetVolume returns the configured volume budget
func (a *TapeAggregator) TargetVolume() float64 {
	return a.targetVolume
}

// WeightedRecentPrice is the VWAP of the most recent TargetVolume units traded
// at or before asOf. A zero asOf means no time bound. The trade crossing the
// budget contributes only the volume needed to reach it exactly.
// ⭐ SSOT: recent VWAP derivation
func (a *TapeAggregator) WeightedRecentPrice(trades []contracts.Trade, asOf time.Time) (float64, bool) {
	eligible := eligibleTrades(trades, asOf)

	// most recent first; equal timestamps keep tape order
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Timestamp > eligible[j].Timestamp
	})

	remaining := a.targetVolume
	notional, taken := 0.0, 0.0
	for _, tr := range eligible {
		if remaining <= 0 {
			break
		}
		take := math.Min(tr.Volume, remaining)
		notional += tr.Price * take
		taken += take
		remaining -= take
	}

	if taken == 0 {
		return 0, false
	}
	return notional / taken, true
}

// PriceChangeVsSettlement is the recent VWAP minus the settlement price
func (a *TapeAggregator) PriceChangeVsSettlement(trades []contracts.Trade, settlement *float64, asOf time.Time) (float64, bool) {
	if settlement == nil || math.IsNaN(*settlement) {
		return 0, false
	}
	vwap, ok := a.WeightedRecentPrice(trades, asOf)
	if !ok {
		return 0, false
	}
	return vwap - *settlement, true
}

// WeightedRecentPrice computes the recent VWAP for a one-off volume budget
func WeightedRecentPrice(trades []contracts.Trade, targetVolume float64, asOf time.Time) (float64, bool, error) {
	agg, err := NewTapeAggregator(targetVolume)
	if err != nil {
		return 0, false, err
	}
	v, ok := agg.WeightedRecentPrice(trades, asOf)
	return v, ok, nil
}

// PriceChangeVsSettlement computes VWAP − settlement for a one-off volume budget
func PriceChangeVsSettlement(trades []contracts.Trade, settlement *float64, targetVolume float64, asOf time.Time) (float64, bool, error) {
	agg, err := NewTapeAggregator(targetVolume)
	if err != nil {
		return 0, false, err
	}
	v, ok := agg.PriceChangeVsSettlement(trades, settlement, asOf)
	return v, ok, nil
}

// eligibleTrades drops trades that cannot be priced or placed in time,
// and those after asOf when a bound is given
func eligibleTrades(trades []contracts.Trade, asOf time.Time) []contracts.Trade {
	bound := math.Inf(1)
	if !asOf.IsZero() {
		bound = float64(asOf.UnixNano()) / 1e9
	}

	out := make([]contracts.Trade, 0, len(trades))
	for _, tr := range trades {
		if math.IsNaN(tr.Price) || math.IsNaN(tr.Timestamp) || math.IsNaN(tr.Volume) || tr.Volume <= 0 {
			continue
		}
		if tr.Timestamp > bound {
			continue
		}
		out = append(out, tr)
	}
	return out
}
