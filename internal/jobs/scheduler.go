// Package jobs runs periodic maintenance on robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger routes cron's own messages through zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs named jobs on cron expressions. A job that is still running
// when its next tick arrives is skipped; a panicking job is recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron").Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", zap.Strings("jobs", s.JobNames()))
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// AddJob registers job under name. cronExpr accepts the six-field form with
// seconds as well as descriptors such as "@every 5m".
func (s *Scheduler) AddJob(name string, cronExpr string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.jobs[name]; taken {
		return fmt.Errorf("job %q is already scheduled", name)
	}

	log := s.logger.With(zap.String("job", name))
	id, err := s.cron.AddFunc(cronExpr, func() {
		started := time.Now()
		job()
		log.Debug("job run finished", zap.Duration("took", time.Since(started)))
	})
	if err != nil {
		return fmt.Errorf("schedule %q with %q: %w", name, cronExpr, err)
	}

	s.jobs[name] = id
	log.Info("job scheduled", zap.String("schedule", cronExpr))
	return nil
}

func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q is not scheduled", name)
	}
	s.cron.Remove(id)
	delete(s.jobs, name)
	return nil
}

// JobNames returns the registered job names, sorted
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
