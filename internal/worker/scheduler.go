package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds one scheduler tick end to end.
const jobTimeout = 10 * time.Minute

// SchedulerFacade exposes the subset of application functionality the
// scheduler triggers periodically.
type SchedulerFacade interface {
	RunScheduledOrders(ctx context.Context) error
	NotifyTimedOutOrders(ctx context.Context) error
}

// Scheduler fires the periodic fulfillment triggers: dispatching due orders
// and sweeping for timed out ones.
type Scheduler struct {
	facade       SchedulerFacade
	dispatchSpec string
	sweepSpec    string
	cron         *cron.Cron
	logger       *slog.Logger
}

// NewScheduler constructs the cron-backed scheduler.
func NewScheduler(facade SchedulerFacade, dispatchSpec, sweepSpec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		facade:       facade,
		dispatchSpec: dispatchSpec,
		sweepSpec:    sweepSpec,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.dispatchSpec, s.job("run scheduled orders", s.facade.RunScheduledOrders)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.sweepSpec, s.job("notify timed out orders", s.facade.NotifyTimedOutOrders)); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled job failed",
				slog.String("job", name),
				slog.String("error", err.Error()))
		}
	}
}
