package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

const (
	DefaultExpiryBatchSize = 500
	sweepLockKey           = "points-ledger:sweep"
)

// SweepResult summarises one expiry run. LeaseHeld is set when the run was
// skipped because another process owned the sweep lease.
type SweepResult struct {
	Cutoff    time.Time `json:"cutoff"`
	Expired   int       `json:"expired"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	LeaseHeld bool      `json:"leaseHeld,omitempty"`
}

// ExpiryService expires pending transactions older than a cutoff.
type ExpiryService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Locker     Locker
	LockTTL    time.Duration
	MaxAgeDays int
	BatchSize  int
	Metrics    *Metrics
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewExpiryService(db *gorm.DB, ledger *LedgerService, locker Locker, maxAgeDays int, lockTTL time.Duration, metrics *Metrics, log logrus.FieldLogger) *ExpiryService {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &ExpiryService{
		DB:         db,
		Ledger:     ledger,
		Locker:     locker,
		LockTTL:    lockTTL,
		MaxAgeDays: maxAgeDays,
		BatchSize:  DefaultExpiryBatchSize,
		Metrics:    metrics,
		Log:        log,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

type expiryCandidate struct {
	ID        string
	CreatedAt time.Time
}

// ExpirePending expires every pending transaction created strictly before
// now - maxAgeDays, oldest first, one atomic unit per transaction. Rows that a
// concurrent decision already resolved are counted as skipped.
func (s *ExpiryService) ExpirePending(ctx context.Context, maxAgeDays int) (*SweepResult, error) {
	if maxAgeDays <= 0 {
		return nil, apperror.Validation("maxAgeDays must be positive, got %d", maxAgeDays)
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultExpiryBatchSize
	}

	res := &SweepResult{Cutoff: s.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)}
	note := fmt.Sprintf("auto-expired after %d days", maxAgeDays)
	t := transition{to: models.StatusExpired, approvedBy: SystemActor, notes: &note, source: SourceSweep}

	var last *expiryCandidate
	for {
		q := s.DB.WithContext(ctx).Model(&models.PointTransaction{}).
			Select("id, created_at").
			Where("status = ? AND created_at < ?", string(models.StatusPending), res.Cutoff)
		if last != nil {
			q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", last.CreatedAt, last.CreatedAt, last.ID)
		}
		var candidates []expiryCandidate
		if err := q.Order("created_at ASC, id ASC").Limit(batch).Scan(&candidates).Error; err != nil {
			return res, apperror.Persistence(err)
		}

		for i := range candidates {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			_, err := s.Ledger.applyTransition(ctx, candidates[i].ID, t)
			switch {
			case err == nil:
				res.Expired++
			case errors.Is(err, apperror.ErrInvalidState):
				res.Skipped++
			case errors.Is(err, apperror.ErrNotFound):
				res.Failed++
			default:
				return res, err
			}
		}

		if len(candidates) < batch {
			break
		}
		last = &candidates[len(candidates)-1]
	}

	s.Log.WithFields(logrus.Fields{
		"cutoff":  res.Cutoff,
		"expired": res.Expired,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}).Info("expiry sweep finished")
	return res, nil
}

// Sweep runs ExpirePending with the configured age under the sweep lease.
func (s *ExpiryService) Sweep(ctx context.Context) (*SweepResult, error) {
	ok, err := s.Locker.Acquire(ctx, sweepLockKey, s.LockTTL)
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	if !ok {
		s.Metrics.sweepLeaseHeld()
		s.Log.Info("expiry sweep skipped, lease held elsewhere")
		return &SweepResult{LeaseHeld: true}, nil
	}
	defer func() {
		if err := s.Locker.Release(context.Background(), sweepLockKey); err != nil {
			s.Log.WithError(err).Warn("release sweep lease")
		}
	}()

	start := time.Now()
	res, err := s.ExpirePending(ctx, s.MaxAgeDays)
	s.Metrics.sweepFinished(time.Since(start).Seconds())
	return res, err
}

// StartScheduler registers Sweep on the cron spec and starts the scheduler.
func (s *ExpiryService) StartScheduler(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		s.Log.Info("running scheduled expiry sweep")
		if _, err := s.Sweep(context.Background()); err != nil {
			s.Log.WithError(err).Error("scheduled expiry sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}
	c.Start()
	s.Log.WithField("schedule", spec).Info("expiry scheduler started")
	return c, nil
}
