package jobs

import (
	"go.uber.org/zap"
)

// CacheSweepJobName is the scheduler name of the cache sweep
const CacheSweepJobName = "cache_sweep"

// DefaultCacheSweepCron runs the sweep every five minutes
const DefaultCacheSweepCron = "@every 5m"

// Sweeper drops expired entries and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// CacheSweepJob purges expired entries from the in-process cache. Reads
// already ignore expired entries; the sweep bounds memory.
type CacheSweepJob struct {
	cache  Sweeper
	logger *zap.Logger
}

func NewCacheSweepJob(cache Sweeper, logger *zap.Logger) *CacheSweepJob {
	return &CacheSweepJob{cache: cache, logger: logger}
}

func (j *CacheSweepJob) Run() {
	if removed := j.cache.Sweep(); removed > 0 {
		j.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
	}
}

// RegisterCacheSweep schedules the sweep. An empty expression uses the default.
func RegisterCacheSweep(s *Scheduler, cache Sweeper, cronExpr string, logger *zap.Logger) error {
	if cronExpr == "" {
		cronExpr = DefaultCacheSweepCron
	}
	return s.AddJob(CacheSweepJobName, cronExpr, NewCacheSweepJob(cache, logger).Run)
}
