package dashboard

import (
	"time"

	"github.com/wonny/phwatch/internal/s0_data/quality"
	"github.com/wonny/phwatch/internal/s1_structure"
	"github.com/wonny/phwatch/internal/s2_signals"
	"github.com/wonny/phwatch/pkg/config"
)

// Config holds the view parameters of the dashboard service
type Config struct {
	Location         *time.Location // every timestamp leaving the service is expressed here
	TargetVolume     float64
	SignalThreshold  float64
	MatchTolerance   time.Duration
	HistoryLimit     int
	TimelineLimit    int
	FetchConcurrency int
	SignalStaleAfter time.Duration

	Structure s1_structure.Config
	Quality   quality.Config
}

// DefaultConfig mirrors the environment defaults of pkg/config
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:         loc,
		TargetVolume:     s2_signals.DefaultTargetVolume,
		SignalThreshold:  s2_signals.DefaultSignalThreshold,
		MatchTolerance:   s2_signals.DefaultMatchTolerance,
		HistoryLimit:     1000,
		TimelineLimit:    2000,
		FetchConcurrency: 8,
		SignalStaleAfter: 10 * time.Minute,
		Structure:        s1_structure.DefaultConfig(),
		Quality:          quality.DefaultConfig(),
	}
}

// ConfigFrom derives the service configuration from the application config
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.Location = cfg.Market.Location()
	c.TargetVolume = cfg.Market.TargetVolume
	c.SignalThreshold = cfg.Market.SignalThreshold
	c.MatchTolerance = cfg.Market.MatchTolerance
	c.HistoryLimit = cfg.Market.HistoryLimit
	c.TimelineLimit = cfg.Market.TimelineLimit
	c.FetchConcurrency = cfg.Market.FetchConcurrency
	c.SignalStaleAfter = cfg.SignalStaleAfter
	c.Structure = s1_structure.Config{
		MaxDates:   cfg.Market.MaxDates,
		BatchSize:  cfg.Market.BatchSize,
		MaxBatches: cfg.Market.MaxBatches,
	}
	return c
}
