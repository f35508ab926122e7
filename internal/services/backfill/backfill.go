// Package backfill holds the one-shot operator jobs that repair or complete
// stored data. Every job is idempotent, supports a dry run and returns a
// domain.Report.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// Job names, also used as lock keys and metric labels
const (
	JobLinkCredits      = "link-credits"
	JobRelinkItems      = "relink-items"
	JobBackfillPeriods  = "backfill-periods"
	JobBackfillInvoices = "backfill-invoices"
	JobReconcileAll     = "reconcile-all"
)

const (
	lockPrefix     = "royalty:job:"
	defaultLockTTL = 15 * time.Minute
)

// Config tunes the jobs
type Config struct {
	Matcher matcher.Config
	LockTTL time.Duration
}

// Service runs the backfill jobs
type Service struct {
	store      ports.Store
	commission ports.CommissionResolver
	reconciler *reconciliation.Reconciler
	locker     ports.JobLocker
	logger     *zap.Logger
	cfg        Config
}

// NewService creates a backfill service. A nil locker runs jobs without
// overlap protection.
func NewService(
	store ports.Store,
	commission ports.CommissionResolver,
	reconciler *reconciliation.Reconciler,
	locker ports.JobLocker,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Service{
		store:      store,
		commission: commission,
		reconciler: reconciler,
		locker:     locker,
		logger:     logger.Named("backfill"),
		cfg:        cfg,
	}
}

// lock takes the job lock. The returned release is always safe to call.
func (s *Service) lock(ctx context.Context, job string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	l, err := s.locker.Obtain(ctx, lockPrefix+job, s.cfg.LockTTL)
	if err != nil {
		s.logger.Warn("job not started", zap.String("job", job), zap.Error(err))
		return nil, err
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release job lock", zap.String("job", job), zap.Error(err))
		}
	}, nil
}

// run executes fn under the job lock and fills in the report bookkeeping.
// fn returns an error only when the whole job must stop; per-record problems
// go to report.Fail.
func (s *Service) run(ctx context.Context, job string, apply bool, fn func(ctx context.Context, report *domain.Report) error) (*domain.Report, error) {
	release, err := s.lock(ctx, job)
	if err != nil {
		return nil, err
	}
	defer release()

	report := domain.NewReport(job, apply, timeutil.Now())
	s.logger.Info("job started", zap.String("job", job), zap.Bool("apply", apply))

	if err := fn(ctx, report); err != nil {
		report.Finish(timeutil.Now())
		observability.RecordJob(job, "aborted", report.Duration.Seconds(),
			report.Matched, report.Unmatched, report.Updated, report.Skipped, report.Errors)
		s.logger.Error("job aborted", zap.String("job", job), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", job, err)
	}

	report.Finish(timeutil.Now())
	observability.RecordJob(job, report.Outcome(), report.Duration.Seconds(),
		report.Matched, report.Unmatched, report.Updated, report.Skipped, report.Errors)
	s.logger.Info(report.Summary(), zap.Duration("duration", report.Duration))
	return report, nil
}

// ReconcileAll runs the reconciler over every user under the job lock
func (s *Service) ReconcileAll(ctx context.Context, apply bool) (*domain.Report, []*reconciliation.Result, error) {
	release, err := s.lock(ctx, JobReconcileAll)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return s.reconciler.ReconcileAll(ctx, apply)
}

func (s *Service) newMatcher(ctx context.Context, tx ports.DBTX) (*matcher.Matcher, map[string]*domain.User, error) {
	users, err := s.store.Users.List(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return matcher.New(users, s.cfg.Matcher), byID, nil
}
