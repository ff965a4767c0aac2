package commands

import (
	"fmt"

	"github.com/wonny/phwatch/internal/dashboard"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/internal/realtime"
	"github.com/wonny/phwatch/internal/realtime/cache"
	"github.com/wonny/phwatch/internal/s0_data"
	"github.com/wonny/phwatch/internal/scheduler"
	"github.com/wonny/phwatch/internal/scheduler/jobs"
	"github.com/wonny/phwatch/pkg/config"
	"github.com/wonny/phwatch/pkg/logger"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Registry
	stores  *s0_data.Stores
	service *dashboard.Service
}

// bootstrap loads config, opens the store stack and builds the dashboard service
func bootstrap() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Metrics
	var reg *metrics.Registry
	if cfg.MetricsEnabled {
		reg = metrics.New()
	}

	// 4. Store stack
	stores, err := s0_data.Open(cfg, log, reg)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}

	// 5. Dashboard service
	service, err := dashboard.NewService(stores.Market, stores.Board, dashboard.ConfigFrom(cfg), reg, log)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("create dashboard service: %w", err)
	}
	if stores.Redis.Enabled() {
		service.AddHealthCheck("cache", stores.Redis)
	}
	if stores.DB != nil {
		service.AddHealthCheck("database", stores.DB)
	}

	return &app{cfg: cfg, log: log, metrics: reg, stores: stores, service: service}, nil
}

// Close releases the store connections
func (a *app) Close() {
	a.stores.Close()
}

// newScheduler registers the auto-refresh jobs. hub may be nil.
func (a *app) newScheduler(hub *realtime.Hub) (*scheduler.Scheduler, *cache.SignalCache, error) {
	sched := scheduler.New(a.log, a.metrics)
	signalCache := cache.NewSignalCache(a.cfg.SignalStaleAfter, a.log.WithComponent("signal_cache"))

	var broadcaster jobs.Broadcaster
	if hub != nil {
		broadcaster = hub
	}

	for _, job := range []scheduler.Job{
		jobs.NewOverviewRefreshJob(a.service, signalCache, broadcaster, a.cfg.RefreshSchedule, a.log),
		jobs.NewStructureRefreshJob(a.service, a.cfg.StructureSchedule, a.log),
		jobs.NewCacheCleanupJob(signalCache, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, nil, err
		}
	}
	return sched, signalCache, nil
}
