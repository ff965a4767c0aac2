package s1_structure

import (
	"context"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/pkg/logger"
)

// Config bounds the market structure scan
type Config struct {
	MaxDates   int // trading dates kept in the result
	BatchSize  int // rows per page
	MaxBatches int // pages fetched at most
}

// DefaultConfig returns the scan bounds used by the dashboard
func DefaultConfig() Config {
	return Config{
		MaxDates:   3,
		BatchSize:  1000,
		MaxBatches: 30,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxDates <= 0 {
		c.MaxDates = def.MaxDates
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = def.MaxBatches
	}
	return c
}

// Indexer builds the date → contracts navigation index from the snapshot store
type Indexer struct {
	pager  contracts.ContractMinutePager
	config Config
	logger *logger.Logger
	now    func() time.Time
}

// NewIndexer creates a new Indexer
func NewIndexer(pager contracts.ContractMinutePager, config Config, log *logger.Logger) *Indexer {
	return &Indexer{
		pager:  pager,
		config: config.normalized(),
		logger: log.WithComponent("structure_indexer"),
		now:    time.Now,
	}
}

// Config returns the effective scan bounds
func (ix *Indexer) Config() Config {
	return ix.config
}

// Build pages recent (contract, minute) pairs newest first until one date more
// than MaxDates has been seen, then keeps the MaxDates most recent dates.
// Fetch errors and cancellation end the scan early; Build never fails.
// ⭐ SSOT: S1 market structure index
func (ix *Indexer) Build(ctx context.Context) *contracts.MarketStructure {
	cfg := ix.config
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	dates := make(map[string]struct{})

	result := &contracts.MarketStructure{
		Contracts: make(map[string][]string),
	}

	for i := 0; i < cfg.MaxBatches; i++ {
		if err := ctx.Err(); err != nil {
			ix.logger.WithError(err).WithField("batches", i).Warn("structure scan aborted")
			break
		}

		offset := i * cfg.BatchSize
		rows, err := ix.pager.FetchRecentContractMinutePairs(ctx, offset, cfg.BatchSize)
		if err != nil {
			ix.logger.WithError(err).WithFields(map[string]interface{}{
				"offset":  offset,
				"batches": i,
			}).Error("structure scan fetch failed, keeping partial result")
			break
		}
		if len(rows) == 0 {
			break
		}

		result.BatchesFetched++
		result.RowsScanned += len(rows)

		for _, row := range rows {
			if _, ok := seen[row.Contract]; ok {
				continue
			}
			seen[row.Contract] = struct{}{}
			ids = append(ids, row.Contract)

			if parsed, err := Parse(row.Contract); err == nil {
				dates[parsed.Date] = struct{}{}
			}
		}

		if len(dates) >= cfg.MaxDates+1 {
			break
		}
	}

	groups := GroupByDate(ids)
	delete(groups, OthersKey)

	ordered := SortDates(groups)
	if len(ordered) > cfg.MaxDates {
		ordered = ordered[:cfg.MaxDates]
	}

	result.Dates = ordered
	for _, date := range ordered {
		result.Contracts[date] = groups[date]
	}
	result.BuiltAt = ix.now()

	ix.logger.WithFields(map[string]interface{}{
		"dates":     len(result.Dates),
		"contracts": result.ContractCount(),
		"batches":   result.BatchesFetched,
		"rows":      result.RowsScanned,
	}).Debug("market structure built")

	return result
}
