package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

// Job is a scheduled task. It receives a context bounded by the job timeout.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. A run that is still going when
// its next tick arrives is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *log.Logger
	timeout time.Duration
}

func NewScheduler(timeout time.Duration, logger *log.Logger) *Scheduler {
	logger = logger.WithComponent(log.ComponentWorker)
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add schedules job under a standard five-field cron spec or a descriptor
// such as "@hourly".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.logger.Info("Job scheduled", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled job failed", "job", name, log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled job finished", "job", name, log.FieldDuration, time.Since(start).Milliseconds())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs reports how many jobs are scheduled.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}

// Reconciler is satisfied by services.Reconciler.
type Reconciler interface {
	Check(ctx context.Context) ([]core.SpendDrift, error)
	Fix(ctx context.Context) ([]core.SpendDrift, error)
}

// ReconcileJob checks category spend against approved expenses, repairing
// drift when fix is set.
func ReconcileJob(r Reconciler, fix bool, logger *log.Logger) Job {
	logger = logger.WithComponent(log.ComponentReconcile)
	return func(ctx context.Context) error {
		check := r.Check
		if fix {
			check = r.Fix
		}
		drifts, err := check(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if len(drifts) == 0 {
			logger.InfoContext(ctx, "Budget spend consistent", log.FieldOperation, log.OpReconcile)
			return nil
		}
		for _, d := range drifts {
			logger.WarnContext(ctx, "Spend drift",
				log.FieldCategoryID, d.CategoryID,
				log.FieldEventID, d.EventID,
				"recorded_cents", d.Recorded.Cents,
				"computed_cents", d.Computed.Cents,
				"repaired", fix)
		}
		return nil
	}
}
