package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/internal/s0_data/quality"
	"github.com/wonny/phwatch/internal/s1_structure"
	"github.com/wonny/phwatch/internal/s2_signals"
	"github.com/wonny/phwatch/pkg/logger"
)

// Pinger is a backend whose connectivity is shown on the status view
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service builds the dashboard view models from the store and the live board.
// Upstream failures are logged and surface as error fields; views never fail
// because one contract's data is missing.
// ⭐ SSOT: every view model is assembled here
type Service struct {
	store     contracts.MarketStore
	board     contracts.ActiveContractSource
	indexer   *s1_structure.Indexer
	tape      *s2_signals.TapeAggregator
	processor *s2_signals.Processor
	quality   *quality.QualityGate
	config    Config
	logger    *logger.Logger
	metrics   *metrics.Registry

	checkNames []string
	checks     map[string]Pinger

	mu        sync.RWMutex
	structure *contracts.MarketStructure

	now func() time.Time
}

// NewService wires the core components around store and board
func NewService(store contracts.MarketStore, board contracts.ActiveContractSource, cfg Config, reg *metrics.Registry, log *logger.Logger) (*Service, error) {
	tape, err := s2_signals.NewTapeAggregator(cfg.TargetVolume)
	if err != nil {
		return nil, fmt.Errorf("invalid dashboard config: %w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.TimelineLimit <= 0 {
		cfg.TimelineLimit = DefaultConfig().TimelineLimit
	}

	log = log.WithComponent("dashboard")
	s := &Service{
		store:     store,
		board:     board,
		indexer:   s1_structure.NewIndexer(store, cfg.Structure, log),
		tape:      tape,
		processor: s2_signals.NewProcessor(cfg.SignalThreshold, cfg.MatchTolerance),
		quality:   quality.NewQualityGate(cfg.Quality),
		config:    cfg,
		logger:    log,
		metrics:   reg,
		checks:    make(map[string]Pinger),
		now:       time.Now,
	}
	s.AddHealthCheck("store", store)
	return s, nil
}

// AddHealthCheck registers a backend for the status view
func (s *Service) AddHealthCheck(name string, p Pinger) {
	if _, ok := s.checks[name]; !ok {
		s.checkNames = append(s.checkNames, name)
	}
	s.checks[name] = p
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.config
}

// Overview fetches the latest signal of every active contract.
// A board failure yields an empty overview carrying the error.
func (s *Service) Overview(ctx context.Context) *Overview {
	now := s.now()
	view := &Overview{
		GeneratedAt:     now.In(s.config.Location),
		ActiveContracts: []string{},
		Rows:            []OverviewRow{},
		Alerts:          []OverviewRow{},
		Missing:         []string{},
		Threshold:       s.processor.Threshold(),
	}

	active, err := s.board.FetchActiveContracts(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch active contracts")
		view.Error = err.Error()
		return view
	}
	active = uniqueSorted(active)
	view.ActiveContracts = active
	s.metrics.SetActiveContracts(len(active))

	latest := make([]*contracts.SignalRecord, len(active))
	errs := make([]error, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, code := range active {
		g.Go(func() error {
			latest[i], errs[i] = s.store.FetchLatestSignal(gctx, code)
			return nil
		})
	}
	_ = g.Wait()

	for i, code := range active {
		if errs[i] != nil {
			s.logger.WithContract(code).WithError(errs[i]).Warn("latest signal fetch failed")
			if view.Errors == nil {
				view.Errors = make(map[string]string)
			}
			view.Errors[code] = errs[i].Error()
			continue
		}
		rec := latest[i]
		if rec == nil {
			view.Missing = append(view.Missing, code)
			continue
		}

		local := rec.In(s.config.Location)
		row := OverviewRow{
			Contract:       code,
			Date:           s1_structure.DateOf(code),
			SnapshotMinute: local.SnapshotMinute,
			TradeSignal:    local.TradeSignal,
			TimeSignal:     local.TimeSignal,
			ExcessStrength: s.processor.ExcessStrength(local.TimeSignal),
			Stale:          s.config.SignalStaleAfter > 0 && now.Sub(local.SnapshotMinute) > s.config.SignalStaleAfter,
		}
		view.Rows = append(view.Rows, row)
		if row.TradeSignal.IsTrade() {
			view.Alerts = append(view.Alerts, row)
		}
		if view.LatestMinute == nil || row.SnapshotMinute.After(*view.LatestMinute) {
			m := row.SnapshotMinute
			view.LatestMinute = &m
		}
	}

	return view
}

// ContractDetail returns the recent signal history of one contract with its trend
func (s *Service) ContractDetail(ctx context.Context, contract string) *ContractDetail {
	view := &ContractDetail{
		Contract:  contract,
		Date:      s1_structure.DateOf(contract),
		History:   []contracts.SignalRecord{},
		Trend:     []s2_signals.TrendPoint{},
		Threshold: s.processor.Threshold(),
	}

	history, err := s.store.FetchSignalHistory(ctx, contract, s.config.HistoryLimit)
	if err != nil {
		s.logger.WithContract(contract).WithError(err).Warn("signal history fetch failed")
		view.Error = err.Error()
		return view
	}

	view.History = s.localSignals(history)
	sort.SliceStable(view.History, func(i, j int) bool {
		return view.History[i].SnapshotMinute.After(view.History[j].SnapshotMinute)
	})
	view.Trend = s.processor.Trend(view.History)

	if len(view.History) > 0 {
		latest := view.History[0]
		view.Latest = &latest
		view.LastUpdate = &latest.SnapshotMinute
		view.ExcessStrength = s.processor.ExcessStrength(latest.TimeSignal)
	}
	return view
}

// Timeline returns recent OPEN_LONG/OPEN_SHORT signals across contracts.
// The configured TimelineLimit is both the default and the maximum.
func (s *Service) Timeline(ctx context.Context, limit int) *Timeline {
	if limit <= 0 || limit > s.config.TimelineLimit {
		limit = s.config.TimelineLimit
	}
	view := &Timeline{
		Entries:   []TimelineEntry{},
		Limit:     limit,
		Threshold: s.processor.Threshold(),
	}

	recs, err := s.store.FetchRecentTradeSignals(ctx, limit)
	if err != nil {
		s.logger.WithError(err).Warn("trade signal fetch failed")
		view.Error = err.Error()
		return view
	}

	for _, rec := range s.localSignals(recs) {
		if !rec.TradeSignal.IsTrade() {
			continue
		}
		view.Entries = append(view.Entries, TimelineEntry{
			Contract:       rec.Contract,
			Date:           s1_structure.DateOf(rec.Contract),
			SnapshotMinute: rec.SnapshotMinute,
			TradeSignal:    rec.TradeSignal,
			TimeSignal:     rec.TimeSignal,
			ExcessStrength: s.processor.ExcessStrength(rec.TimeSignal),
		})
	}
	sort.SliceStable(view.Entries, func(i, j int) bool {
		return view.Entries[i].SnapshotMinute.After(view.Entries[j].SnapshotMinute)
	})
	return view
}

// History overlays the full signal history of a contract on the price ticks
// of its latest snapshot. The three inputs are fetched concurrently; a failed
// part leaves its series empty.
func (s *Service) History(ctx context.Context, contract string) *History {
	view := &History{
		Contract:  contract,
		Ticks:     []HistoryTick{},
		Signals:   []contracts.SignalRecord{},
		Overlay:   []s2_signals.AlignedSignal{},
		Tolerance: s.processor.Tolerance().String(),
	}

	var (
		snap    *contracts.Snapshot
		signals []contracts.SignalRecord
		minutes []time.Time
		errMu   sync.Mutex
	)
	fail := func(part string, err error) {
		s.logger.WithContract(contract).WithError(err).WithField("part", part).Warn("history fetch failed")
		errMu.Lock()
		defer errMu.Unlock()
		if view.Errors == nil {
			view.Errors = make(map[string]string)
		}
		view.Errors[part] = err.Error()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if snap, err = s.store.FetchLatestSnapshot(gctx, contract); err != nil {
			fail("ticks", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if signals, err = s.store.FetchSignalHistory(gctx, contract, 0); err != nil {
			fail("signals", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if minutes, err = s.store.FetchSnapshotMinutes(gctx, contract); err != nil {
			fail("minutes", err)
		}
		return nil
	})
	_ = g.Wait()

	var ticks []contracts.PriceTick
	if snap != nil {
		minute := snap.SnapshotMinute.In(s.config.Location)
		view.SnapshotMinute = &minute
		ticks = s2_signals.TradesToTicks(snap.Trades)
		for i := range ticks {
			ticks[i].Timestamp = ticks[i].Timestamp.In(s.config.Location)
		}
	}

	local := make([]time.Time, len(minutes))
	for i, m := range minutes {
		local[i] = m.In(s.config.Location)
	}
	sort.Slice(local, func(i, j int) bool { return local[i].Before(local[j]) })

	for _, tick := range ticks {
		ht := HistoryTick{Timestamp: tick.Timestamp, Price: tick.Price, Volume: tick.Volume}
		if next, ok := s2_signals.NextSnapshotMinute(tick.Timestamp, local); ok {
			ht.NextSnapshotMinute = &next
		}
		view.Ticks = append(view.Ticks, ht)
	}

	view.Signals = s2_signals.SortSignals(s.localSignals(signals))
	view.Overlay = s.processor.AlignSignalsToPriceSeries(view.Signals, ticks)
	return view
}

// SnapshotMetrics computes depth, imbalance and recent-price metrics for one
// snapshot. A zero minute selects the latest snapshot; otherwise the minute
// snaps forward to the next available snapshot minute. ErrNotFound is
// returned when no snapshot qualifies.
func (s *Service) SnapshotMetrics(ctx context.Context, contract string, minute time.Time) (*SnapshotMetrics, error) {
	view := &SnapshotMetrics{
		Contract:     contract,
		BidCurve:     contracts.DepthCurve{},
		AskCurve:     contracts.DepthCurve{},
		TargetVolume: s.tape.TargetVolume(),
	}
	log := s.logger.WithContract(contract)

	var (
		snap *contracts.Snapshot
		err  error
	)
	if minute.IsZero() {
		snap, err = s.store.FetchLatestSnapshot(ctx, contract)
	} else {
		requested := minute.In(s.config.Location)
		view.RequestedMinute = &requested

		var minutes []time.Time
		minutes, err = s.store.FetchSnapshotMinutes(ctx, contract)
		if err == nil {
			next, ok := s2_signals.NextSnapshotMinute(minute, minutes)
			if !ok {
				return nil, fmt.Errorf("no snapshot of %s at or after %s: %w", contract, requested.Format(time.RFC3339), contracts.ErrNotFound)
			}
			snap, err = s.store.FetchSnapshot(ctx, contract, next)
		}
	}
	if err != nil {
		log.WithError(err).Warn("snapshot fetch failed")
		view.Error = err.Error()
		return view, nil
	}
	if snap == nil {
		return nil, fmt.Errorf("no snapshot of %s: %w", contract, contracts.ErrNotFound)
	}

	view.SnapshotMinute = snap.SnapshotMinute.In(s.config.Location)
	view.MCP = snap.MCP
	view.AveragePrice = snap.AveragePrice
	view.RemainingSeconds = snap.RemainingSeconds
	view.Trades = len(snap.Trades)

	bids, asks := snap.Depth.Bids, snap.Depth.Asks
	view.BidCurve, view.AskCurve = s2_signals.ComputeDepthCurves(bids, asks)
	view.Imbalance = contracts.Float(s2_signals.ComputeImbalance(bids, asks))
	bestBid, bestAsk, hasBid, hasAsk := s2_signals.BestPrices(bids, asks)
	view.BestBid = contracts.Float(bestBid, hasBid)
	view.BestAsk = contracts.Float(bestAsk, hasAsk)
	view.Spread = contracts.Float(s2_signals.Spread(bids, asks))

	view.RecentPrice = contracts.Float(s.tape.WeightedRecentPrice(snap.Trades, snap.SnapshotMinute))
	view.ChangeVsSettlement = contracts.Float(s.tape.PriceChangeVsSettlement(snap.Trades, snap.MCP, snap.SnapshotMinute))
	view.Quality = s.quality.Check(snap)

	if !view.Quality.Passed {
		log.WithFields(map[string]interface{}{
			"score":  view.Quality.Score,
			"issues": view.Quality.Issues,
		}).Debug("snapshot below quality threshold")
	}
	return view, nil
}

// RefreshStructure rebuilds the market structure index and caches it
func (s *Service) RefreshStructure(ctx context.Context) *contracts.MarketStructure {
	start := time.Now()
	built := s.indexer.Build(ctx)
	built.BuiltAt = built.BuiltAt.In(s.config.Location)
	s.metrics.ObserveStructure(len(built.Dates), built.ContractCount(), time.Since(start))

	s.mu.Lock()
	s.structure = built
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"dates":     len(built.Dates),
		"contracts": built.ContractCount(),
		"rows":      built.RowsScanned,
		"batches":   built.BatchesFetched,
	}).Info("market structure refreshed")
	return built
}

// Structure returns the cached market structure, building it on first use
func (s *Service) Structure(ctx context.Context) *contracts.MarketStructure {
	s.mu.RLock()
	cached := s.structure
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}
	return s.RefreshStructure(ctx)
}

// Status pings every registered backend
func (s *Service) Status(ctx context.Context) *Status {
	status := &Status{
		CheckedAt:  s.now().In(s.config.Location),
		Components: make(map[string]ComponentStatus, len(s.checks)),
	}

	for _, name := range s.checkNames {
		if err := s.checks[name].Ping(ctx); err != nil {
			status.Components[name] = ComponentStatus{Error: err.Error()}
			continue
		}
		status.Components[name] = ComponentStatus{Connected: true}
	}

	s.mu.RLock()
	if s.structure != nil {
		built := s.structure.BuiltAt
		status.StructureBuiltAt = &built
		status.StructureDates = len(s.structure.Dates)
		status.StructureContracts = s.structure.ContractCount()
	}
	s.mu.RUnlock()

	return status
}

func (s *Service) localSignals(recs []contracts.SignalRecord) []contracts.SignalRecord {
	out := make([]contracts.SignalRecord, len(recs))
	for i, rec := range recs {
		out[i] = rec.In(s.config.Location)
	}
	return out
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
