package jobs

import (
	"context"

	"github.com/wonny/phwatch/internal/dashboard"
	"github.com/wonny/phwatch/pkg/logger"
)

// StructureRefreshJob rebuilds the market structure index
type StructureRefreshJob struct {
	service  *dashboard.Service
	schedule string
	logger   *logger.Logger
}

// NewStructureRefreshJob creates a new structure refresh job
func NewStructureRefreshJob(service *dashboard.Service, schedule string, log *logger.Logger) *StructureRefreshJob {
	return &StructureRefreshJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *StructureRefreshJob) Name() string {
	return "market_structure"
}

// Schedule returns the configured cron schedule
func (j *StructureRefreshJob) Schedule() string {
	return j.schedule
}

// Run rebuilds the index. The indexer never fails; only cancellation is reported.
func (j *StructureRefreshJob) Run(ctx context.Context) error {
	built := j.service.RefreshStructure(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"dates":     built.Dates,
		"contracts": built.ContractCount(),
	}).Debug("Market structure job finished")
	return nil
}
