package s2_signals

import (
	"math"
	"sort"

	"github.com/wonny/phwatch/internal/contracts"
)

// ComputeDepthCurves sorts each side best price first (bids descending,
// asks ascending) and accumulates volume outward. Levels with a missing
// price sort last; missing values stay in the curve but add nothing.
// ⭐ SSOT: depth curve derivation
func ComputeDepthCurves(bids, asks []contracts.DepthLevel) (bidCurve, askCurve contracts.DepthCurve) {
	return cumulate(sortLevels(bids, true)), cumulate(sortLevels(asks, false))
}

// ComputeImbalance returns (bid − ask) / (bid + ask) over total resting volume.
// Levels missing a price or volume count for nothing, as on the depth curves.
// ok is false when both sides are empty, which is distinct from a balanced 0.
func ComputeImbalance(bids, asks []contracts.DepthLevel) (float64, bool) {
	bidTotal := totalVolume(bids)
	askTotal := totalVolume(asks)

	sum := bidTotal + askTotal
	if sum == 0 {
		return 0, false
	}
	return (bidTotal - askTotal) / sum, true
}

// BestPrices returns the highest bid and lowest ask with a usable price
func BestPrices(bids, asks []contracts.DepthLevel) (bestBid, bestAsk float64, hasBid, hasAsk bool) {
	for _, l := range bids {
		if math.IsNaN(l.Price) {
			continue
		}
		if !hasBid || l.Price > bestBid {
			bestBid, hasBid = l.Price, true
		}
	}
	for _, l := range asks {
		if math.IsNaN(l.Price) {
			continue
		}
		if !hasAsk || l.Price < bestAsk {
			bestAsk, hasAsk = l.Price, true
		}
	}
	return bestBid, bestAsk, hasBid, hasAsk
}

// Spread returns best ask minus best bid when both sides quote a price
func Spread(bids, asks []contracts.DepthLevel) (float64, bool) {
	bid, ask, hasBid, hasAsk := BestPrices(bids, asks)
	if !hasBid || !hasAsk {
		return 0, false
	}
	return ask - bid, true
}

func sortLevels(levels []contracts.DepthLevel, descending bool) []contracts.DepthLevel {
	sorted := make([]contracts.DepthLevel, len(levels))
	copy(sorted, levels)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Price, sorted[j].Price
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case descending:
			return a > b
		default:
			return a < b
		}
	})
	return sorted
}

func cumulate(levels []contracts.DepthLevel) contracts.DepthCurve {
	curve := make(contracts.DepthCurve, 0, len(levels))
	running := 0.0
	for _, l := range levels {
		if isFinite(l.Price) && isFinite(l.Volume) {
			running += l.Volume
		}
		curve = append(curve, contracts.CurvePoint{Price: l.Price, Cumulative: running})
	}
	return curve
}

func totalVolume(levels []contracts.DepthLevel) float64 {
	total := 0.0
	for _, l := range levels {
		if isFinite(l.Price) && isFinite(l.Volume) {
			total += l.Volume
		}
	}
	return total
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
