// Package scheduler runs the periodic ledger jobs: keeping the portfolio
// summary cache warm and logging a digest of loans close to completion.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/logger"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const jobTimeout = time.Minute

// Reporter is the part of the report service the jobs need.
type Reporter interface {
	WarmUp(ctx context.Context) error
	CompletingLoans(ctx context.Context) ([]*domain.LoanView, error)
}

type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
}

// cronLogger routes cron's own messages (including recovered panics) to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// New registers the warm-up and digest jobs. Specs use six fields, seconds first,
// and are evaluated in the configured time zone.
func New(cfg *config.Config, reporter Reporter) (*Scheduler, error) {
	cl := cronLogger{log: logger.L().Sugar().With("component", "scheduler")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.GetSchedulerLocation()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, reporter: reporter}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{name: "cache-warmup", spec: cfg.Scheduler.CacheWarmupSpec, run: s.RunWarmUp},
		{name: "completion-digest", spec: cfg.Scheduler.DigestSpec, run: s.RunDigest},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		logger.Info("job scheduled", zap.String("job", job.name), zap.String("spec", job.spec))
	}

	return s, nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			logger.Error("job failed", err, zap.String("job", name))
			return
		}
		logger.Info("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	}
}

// RunWarmUp recomputes the portfolio summary into the cache.
func (s *Scheduler) RunWarmUp(ctx context.Context) error {
	return s.reporter.WarmUp(ctx)
}

// RunDigest logs every approved loan whose remaining balance is below two installments.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	loans, err := s.reporter.CompletingLoans(ctx)
	if err != nil {
		return err
	}

	for _, l := range loans {
		logger.Info("loan nearly repaid",
			zap.String("loan_id", l.LoanID),
			zap.String("borrower", l.DisplayName()),
			zap.String("remaining", utils.FormatINR(l.Figures.Remaining, 2)),
			zap.String("installment", utils.FormatINR(l.Figures.Installment, 2)),
		)
	}
	logger.Info("completion digest", zap.Int("loans", len(loans)))
	return nil
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
