package jobs

import (
	"context"
	"errors"

	"github.com/wonny/phwatch/internal/dashboard"
	"github.com/wonny/phwatch/internal/realtime"
	"github.com/wonny/phwatch/internal/realtime/cache"
	"github.com/wonny/phwatch/pkg/logger"
)

// Broadcaster pushes messages to live clients
type Broadcaster interface {
	Broadcast(msg realtime.Message)
}

// OverviewRefreshJob rebuilds the overview, updates the live signal cache
// and pushes the overview plus newly opened trade signals to clients
type OverviewRefreshJob struct {
	service  *dashboard.Service
	cache    *cache.SignalCache
	hub      Broadcaster
	schedule string
	logger   *logger.Logger
}

// NewOverviewRefreshJob creates the refresh job. hub may be nil.
func NewOverviewRefreshJob(service *dashboard.Service, signalCache *cache.SignalCache, hub Broadcaster, schedule string, log *logger.Logger) *OverviewRefreshJob {
	return &OverviewRefreshJob{
		service:  service,
		cache:    signalCache,
		hub:      hub,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *OverviewRefreshJob) Name() string {
	return "refresh_overview"
}

// Schedule returns the configured cron schedule
func (j *OverviewRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes one refresh. A board failure fails the run so it is retried.
func (j *OverviewRefreshJob) Run(ctx context.Context) error {
	overview := j.service.Overview(ctx)
	if overview.Error != "" {
		return errors.New(overview.Error)
	}

	opened := make([]realtime.LatestSignal, 0)
	for _, row := range overview.Rows {
		sig := &realtime.LatestSignal{
			Contract:       row.Contract,
			SnapshotMinute: row.SnapshotMinute,
			TradeSignal:    row.TradeSignal,
			TimeSignal:     row.TimeSignal,
			ExcessStrength: row.ExcessStrength,
		}
		if _, isNew := j.cache.Update(sig); isNew {
			opened = append(opened, *sig)
		}
	}
	removed := j.cache.Retain(overview.ActiveContracts)

	if j.hub != nil {
		j.hub.Broadcast(realtime.NewMessage(realtime.MessageOverview, overview))
		for _, sig := range opened {
			j.hub.Broadcast(realtime.NewMessage(realtime.MessageAlert, sig))
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"active":  len(overview.ActiveContracts),
		"rows":    len(overview.Rows),
		"alerts":  len(overview.Alerts),
		"opened":  len(opened),
		"removed": removed,
		"errors":  len(overview.Errors),
	}).Debug("Overview refreshed")

	return nil
}
