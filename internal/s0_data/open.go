package s0_data

import (
	"fmt"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/config"
	"github.com/wonny/phwatch/pkg/database"
	"github.com/wonny/phwatch/pkg/httputil"
	"github.com/wonny/phwatch/pkg/logger"
	"github.com/wonny/phwatch/pkg/redis"
)

// Stores bundles the configured backends behind the contracts interfaces
type Stores struct {
	Market  contracts.MarketStore
	Board   contracts.ActiveContractSource
	Guard   *GuardedStore
	Backend string

	DB    *database.DB // nil for the rest backend
	Redis *redis.Client
}

// Open builds the store stack for cfg: backend → breaker/metrics → Redis cache
// ⭐ SSOT: the only place store backends are chosen
func Open(cfg *config.Config, log *logger.Logger, reg *metrics.Registry) (*Stores, error) {
	rc, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	stores := &Stores{Backend: cfg.StoreBackend, Redis: rc}

	var backend contracts.MarketStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.New(cfg)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stores.DB = db
		backend = NewPostgresRepository(db.Pool)

	case config.BackendREST:
		client := httputil.New(log.WithComponent("postgrest"))
		if rc.Enabled() {
			limiter := redis.NewRateLimiter(rc, cfg.Redis.Prefix)
			client = client.WithRateLimiter(limiter, redis.SupabaseQuota(cfg.Supabase.RPS))
		}
		backend = NewRESTRepository(client, cfg.Supabase.URL, cfg.Supabase.APIKey, cfg.Supabase.RPS)

	default:
		_ = rc.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	stores.Guard = NewGuardedStore(backend, cfg.StoreBackend, reg, log)
	stores.Market = stores.Guard

	var board contracts.ActiveContractSource = NewBoardReader(rc, cfg.Redis.BoardKey)
	if rc.Enabled() {
		cached := NewCachedStore(stores.Guard, redis.NewCache(rc, cfg.Redis.Prefix), cfg.CacheTTL, reg, log)
		stores.Market = cached
		board = NewCachedBoard(board, cached)
	}
	stores.Board = board

	log.WithFields(map[string]interface{}{
		"backend": cfg.StoreBackend,
		"redis":   rc.Enabled(),
	}).Info("store stack ready")

	return stores, nil
}

// Close releases every connection
func (s *Stores) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}
