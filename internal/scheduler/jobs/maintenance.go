package jobs

import (
	"context"

	"github.com/wonny/phwatch/internal/realtime/cache"
	"github.com/wonny/phwatch/pkg/logger"
)

// CacheCleanupJob drops stale signals from the live cache
type CacheCleanupJob struct {
	cache  *cache.SignalCache
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(signalCache *cache.SignalCache, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  signalCache,
		logger: log,
	}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

// Schedule runs at second 15 of every fifth minute, off the overview refresh
func (j *CacheCleanupJob) Schedule() string { return "15 */5 * * * *" }

// Run drops signals whose minute is older than the staleness TTL
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := j.cache.CleanStale()
	stats := j.cache.Stats()
	j.logger.WithFields(map[string]interface{}{
		"removed":    removed,
		"remaining":  stats.TotalCount,
		"open_long":  stats.OpenLongCount,
		"open_short": stats.OpenShortCount,
	}).Debug("signal cache swept")

	return nil
}
