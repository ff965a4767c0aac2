package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/realtime"
	"github.com/wonny/phwatch/pkg/logger"
)

// SignalCache is an in-memory cache of the latest signal per contract
// ⭐ SSOT: live signal state is cached here only
type SignalCache struct {
	mu      sync.RWMutex
	signals map[string]*realtime.LatestSignal
	ttl     time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

// NewSignalCache creates a cache; signals older than ttl are marked stale
func NewSignalCache(ttl time.Duration, log *logger.Logger) *SignalCache {
	return &SignalCache{
		signals: make(map[string]*realtime.LatestSignal),
		ttl:     ttl,
		logger:  log,
		now:     time.Now,
	}
}

// Update stores sig unless an entry with a newer minute exists.
// opened reports that the contract moved into OPEN_LONG/OPEN_SHORT (or
// flipped between them) with this update.
func (c *SignalCache) Update(sig *realtime.LatestSignal) (accepted, opened bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.signals[sig.Contract]
	if exists {
		// Don't accept older data
		if sig.SnapshotMinute.Before(existing.SnapshotMinute) {
			c.logger.WithFields(map[string]interface{}{
				"contract": sig.Contract,
				"new_time": sig.SnapshotMinute,
				"old_time": existing.SnapshotMinute,
			}).Debug("Rejected older signal")
			return false, false
		}
		if sig.SnapshotMinute.Equal(existing.SnapshotMinute) && sameSignal(sig, existing) {
			return false, false
		}
	}

	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = c.now()
	}
	sig.IsStale = c.isStale(sig)
	c.signals[sig.Contract] = sig

	opened = sig.TradeSignal.IsTrade() && (!exists || existing.TradeSignal != sig.TradeSignal)
	if opened {
		c.logger.WithFields(map[string]interface{}{
			"contract":    sig.Contract,
			"tradeSignal": sig.TradeSignal,
			"minute":      sig.SnapshotMinute,
		}).Info("Trade signal opened")
	}
	return true, opened
}

// Get retrieves the latest signal of one contract
func (c *SignalCache) Get(contract string) (realtime.LatestSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sig, exists := c.signals[contract]
	if !exists {
		return realtime.LatestSignal{}, false
	}
	out := *sig
	out.IsStale = c.isStale(sig)
	return out, true
}

// GetAll returns copies of every cached signal, ordered by contract
func (c *SignalCache) GetAll() []realtime.LatestSignal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]realtime.LatestSignal, 0, len(c.signals))
	for _, sig := range c.signals {
		cp := *sig
		cp.IsStale = c.isStale(sig)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contract < out[j].Contract })
	return out
}

// Alerts returns the cached contracts currently in OPEN_LONG/OPEN_SHORT
func (c *SignalCache) Alerts() []realtime.LatestSignal {
	all := c.GetAll()
	alerts := make([]realtime.LatestSignal, 0)
	for _, sig := range all {
		if sig.TradeSignal.IsTrade() {
			alerts = append(alerts, sig)
		}
	}
	return alerts
}

// Retain drops contracts that are no longer on the live board
func (c *SignalCache) Retain(active []string) int {
	keep := make(map[string]struct{}, len(active))
	for _, code := range active {
		keep[code] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for code := range c.signals {
		if _, ok := keep[code]; !ok {
			delete(c.signals, code)
			removed++
		}
	}
	return removed
}

// Delete removes one contract
func (c *SignalCache) Delete(contract string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.signals, contract)
}

// Clear empties the cache
func (c *SignalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.signals = make(map[string]*realtime.LatestSignal)
	c.logger.Info("Cleared signal cache")
}

// Len returns the number of cached contracts
func (c *SignalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.signals)
}

// CleanStale removes signals whose minute is older than the TTL
func (c *SignalCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for code, sig := range c.signals {
		if c.isStale(sig) {
			delete(c.signals, code)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned stale signals from cache")
	}

	return count
}

// Stats returns cache statistics
func (c *SignalCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		TotalCount: len(c.signals),
	}

	for _, sig := range c.signals {
		if c.isStale(sig) {
			stats.StaleCount++
		}

		switch sig.TradeSignal {
		case contracts.OpenLong:
			stats.OpenLongCount++
		case contracts.OpenShort:
			stats.OpenShortCount++
		default:
			stats.NoneCount++
		}
	}

	stats.FreshCount = stats.TotalCount - stats.StaleCount

	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	TotalCount     int `json:"total_count"`
	FreshCount     int `json:"fresh_count"`
	StaleCount     int `json:"stale_count"`
	OpenLongCount  int `json:"open_long_count"`
	OpenShortCount int `json:"open_short_count"`
	NoneCount      int `json:"none_count"`
}

func (c *SignalCache) isStale(sig *realtime.LatestSignal) bool {
	return c.ttl > 0 && c.now().Sub(sig.SnapshotMinute) > c.ttl
}

func sameSignal(a, b *realtime.LatestSignal) bool {
	if a.TradeSignal != b.TradeSignal {
		return false
	}
	if a.TimeSignal == nil || b.TimeSignal == nil {
		return a.TimeSignal == nil && b.TimeSignal == nil
	}
	return *a.TimeSignal == *b.TimeSignal
}
