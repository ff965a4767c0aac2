package quality

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
)

// QualityGate scores how usable a raw snapshot is for the derived metrics
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinDepthCoverage float64 // share of depth levels with numeric price and volume
	MinTradeCoverage float64 // share of trades with numeric price, volume and time
	MinScore         float64
}

// DefaultConfig returns the thresholds used by the inspect command and the API
func DefaultConfig() Config {
	return Config{
		MinDepthCoverage: 0.95,
		MinTradeCoverage: 0.95,
		MinScore:         0.80,
	}
}

// Report is the outcome of one snapshot check
type Report struct {
	Contract          string             `json:"contract"`
	BidLevels         int                `json:"bid_levels"`
	AskLevels         int                `json:"ask_levels"`
	Trades            int                `json:"trades"`
	TradesAfterMinute int                `json:"trades_after_minute"`
	Coverage          map[string]float64 `json:"coverage"`
	Issues            []string           `json:"issues"`
	Score             float64            `json:"score"`
	Passed            bool               `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check validates one snapshot
// ⭐ SSOT: S0 snapshot quality check
func (g *QualityGate) Check(snap *contracts.Snapshot) *Report {
	report := &Report{
		Coverage: make(map[string]float64),
		Issues:   make([]string, 0),
	}
	if snap == nil {
		report.Issues = append(report.Issues, "snapshot missing")
		return report
	}

	report.Contract = snap.Contract
	report.BidLevels = len(snap.Depth.Bids)
	report.AskLevels = len(snap.Depth.Asks)
	report.Trades = len(snap.Trades)

	// 1. Coverage
	report.Coverage["depth"] = depthCoverage(snap.Depth)
	report.Coverage["trades"] = tradeCoverage(snap.Trades)
	report.Coverage["settlement"] = presence(snap.MCP)
	report.Coverage["average_price"] = presence(snap.AveragePrice)

	// 2. Structural issues
	if report.BidLevels == 0 && report.AskLevels == 0 {
		report.Issues = append(report.Issues, "order book empty")
	}
	if report.Trades == 0 {
		report.Issues = append(report.Issues, "trade tape empty")
	}
	if snap.MCP == nil {
		report.Issues = append(report.Issues, "settlement price missing")
	}
	if crossed(snap.Depth) {
		report.Issues = append(report.Issues, "order book crossed")
	}
	if report.Coverage["depth"] < g.config.MinDepthCoverage && report.BidLevels+report.AskLevels > 0 {
		report.Issues = append(report.Issues, "non-numeric depth levels")
	}
	if report.Coverage["trades"] < g.config.MinTradeCoverage && report.Trades > 0 {
		report.Issues = append(report.Issues, "non-numeric trades")
	}
	if negativeVolume(snap) {
		report.Issues = append(report.Issues, "negative volume")
	}
	if n := tradesAfter(snap.Trades, snap.SnapshotMinute); n > 0 {
		report.TradesAfterMinute = n
		report.Issues = append(report.Issues, "trades after snapshot minute")
	}
	sort.Strings(report.Issues)

	// 3. Score
	report.Score = g.calculateScore(report.Coverage)
	report.Passed = report.Score >= g.config.MinScore && !crossed(snap.Depth)

	return report
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	weights := map[string]float64{
		"depth":         0.40,
		"trades":        0.40,
		"settlement":    0.15,
		"average_price": 0.05,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}

func depthCoverage(depth contracts.Depth) float64 {
	total, valid := 0, 0
	for _, side := range [][]contracts.DepthLevel{depth.Bids, depth.Asks} {
		for _, l := range side {
			total++
			if !math.IsNaN(l.Price) && !math.IsNaN(l.Volume) {
				valid++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(valid) / float64(total)
}

func tradeCoverage(trades []contracts.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	valid := 0
	for _, tr := range trades {
		if !math.IsNaN(tr.Price) && !math.IsNaN(tr.Volume) && !math.IsNaN(tr.Timestamp) {
			valid++
		}
	}
	return float64(valid) / float64(len(trades))
}

func presence(v *float64) float64 {
	if v == nil {
		return 0
	}
	return 1
}

func negativeVolume(snap *contracts.Snapshot) bool {
	for _, side := range [][]contracts.DepthLevel{snap.Depth.Bids, snap.Depth.Asks} {
		for _, l := range side {
			if l.Volume < 0 {
				return true
			}
		}
	}
	for _, tr := range snap.Trades {
		if tr.Volume < 0 {
			return true
		}
	}
	return false
}

// tradesAfter counts trades stamped later than minute; they are ignored by the VWAP
func tradesAfter(trades []contracts.Trade, minute time.Time) int {
	if minute.IsZero() {
		return 0
	}
	n := 0
	for _, tr := range trades {
		if ts, ok := tr.Time(); ok && ts.After(minute) {
			n++
		}
	}
	return n
}

// crossed reports a best bid at or above the best ask
func crossed(depth contracts.Depth) bool {
	bestBid, bestAsk := math.Inf(-1), math.Inf(1)
	for _, l := range depth.Bids {
		if !math.IsNaN(l.Price) && l.Price > bestBid {
			bestBid = l.Price
		}
	}
	for _, l := range depth.Asks {
		if !math.IsNaN(l.Price) && l.Price < bestAsk {
			bestAsk = l.Price
		}
	}
	return !math.IsInf(bestBid, 0) && !math.IsInf(bestAsk, 0) && bestBid >= bestAsk
}
