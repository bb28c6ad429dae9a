package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper cancels pending appointments whose slot has already started.
type Sweeper interface {
	ExpireStalePending(ctx context.Context) (int, error)
}

// Scheduler runs background jobs on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger
}

func NewScheduler(schedule string, loc *time.Location, sweeper Sweeper, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger.Sugar()}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
		),
		sweeper: sweeper,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the jobs and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler")

	s.sweep()
	s.cron.Start()

	<-ctx.Done()

	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sweeper.ExpireStalePending(ctx)
	if err != nil {
		s.logger.Error("Failed to expire stale appointments", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired stale appointments", zap.Int("count", n))
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
