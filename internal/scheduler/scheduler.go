package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
)

// Cycle is one unit of scheduled work. The context carries a logger tagged
// with the cycle id.
type Cycle func(ctx context.Context) error

type Scheduler struct {
	interval time.Duration
	cycle    Cycle
	logger   *logrus.Logger
	cron     *cron.Cron
}

func NewScheduler(interval time.Duration, cycle Cycle, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		interval: interval,
		cycle:    cycle,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Run executes a cycle right away and then every interval until ctx is
// done. A failing cycle stops the schedule and its error is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		if err := s.runCycle(ctx); err != nil {
			select {
			case errChan <- err:
			default:
			}
		}
	}))
	s.cron.Start()
	defer s.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("Context canceled, stopping publish loop")
		return nil
	case err := <-errChan:
		return err
	}
}

// Stop the scheduler and wait for a running cycle to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	entry := s.logger.WithField("cycle_id", uuid.NewString())
	if err := s.cycle(logging.With(ctx, entry)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		entry.WithError(err).Error("Publish cycle failed")
		return err
	}
	entry.Infof("SLEEPING for %d", int(s.interval.Seconds()))
	return nil
}
