package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

const day = 24 * time.Hour

func newExpiry(ledger *LedgerService, locker Locker) *ExpiryService {
	s := NewExpiryService(testDB, ledger, locker, 30, time.Minute, nil, nullLogger())
	s.Now = func() time.Time { return baseTime }
	return s
}

// createAt records a pending transaction as if it was created at ts.
func createAt(t *testing.T, ledger *LedgerService, ts time.Time, userID uint, points int) *models.PointTransaction {
	t.Helper()
	prev := ledger.Now
	ledger.Now = func() time.Time { return ts }
	defer func() { ledger.Now = prev }()
	return createPending(t, ledger, userID, points, "")
}

func TestExpirePendingBoundary(t *testing.T) {
	ledger := newLedger(t)
	expiry := newExpiry(ledger, nil)
	createUser(t, 1)

	old := createAt(t, ledger, baseTime.Add(-31*day), 1, 4)
	recent := createAt(t, ledger, baseTime.Add(-29*day), 1, 6)

	res, err := expiry.ExpirePending(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, baseTime.Add(-30*day), res.Cutoff)

	expired := loadTransaction(t, old.ID)
	assert.Equal(t, models.StatusExpired, expired.Status)
	require.NotNil(t, expired.Notes)
	assert.Equal(t, "auto-expired after 30 days", *expired.Notes)
	require.NotNil(t, expired.ApprovedBy)
	assert.Equal(t, SystemActor, *expired.ApprovedBy)

	assert.Equal(t, models.StatusPending, loadTransaction(t, recent.ID).Status)
	assert.Equal(t, 6, loadUser(t, 1).PendingPoints)
	assertInvariants(t, 1)
}

func TestExpirePendingWalksBatches(t *testing.T) {
	ledger := newLedger(t)
	expiry := newExpiry(ledger, nil)
	expiry.BatchSize = 2
	createUser(t, 1)

	for i := 0; i < 5; i++ {
		createAt(t, ledger, baseTime.Add(-40*day).Add(time.Duration(i)*time.Minute), 1, 1)
	}
	approved := createAt(t, ledger, baseTime.Add(-50*day), 1, 9)
	_, err := ledger.Approve(context.Background(), approved.ID, "admin1", nil)
	require.NoError(t, err)

	res, err := expiry.ExpirePending(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Expired)
	assert.Equal(t, models.StatusApproved, loadTransaction(t, approved.ID).Status)
	assertInvariants(t, 1)

	res, err = expiry.ExpirePending(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, res.Expired, "second run is a no-op")
}

func TestExpirePendingRejectsNonPositiveAge(t *testing.T) {
	expiry := newExpiry(newLedger(t), nil)
	_, err := expiry.ExpirePending(context.Background(), 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestConcurrentSweepsExpireOnce(t *testing.T) {
	ledger := newLedger(t)
	createUser(t, 1)
	for i := 0; i < 6; i++ {
		createAt(t, ledger, baseTime.Add(-45*day), 1, 2)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := newExpiry(ledger, nil).ExpirePending(context.Background(), 30)
			if assert.NoError(t, err) {
				mu.Lock()
				total += res.Expired
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, total)
	assert.Equal(t, 0, loadUser(t, 1).PendingPoints)
	assertInvariants(t, 1)
}

func TestSweepSkipsRowDecidedMidTransition(t *testing.T) {
	ledger := newLedger(t)
	createUser(t, 1)
	raced := createAt(t, ledger, baseTime.Add(-40*day), 1, 4)
	createAt(t, ledger, baseTime.Add(-35*day), 1, 1)

	armRacer(t, raced.ID, models.StatusApproved)
	res, err := newExpiry(ledger, nil).ExpirePending(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, models.StatusPending, loadTransaction(t, raced.ID).Status)
	assert.Equal(t, 4, loadUser(t, 1).PendingPoints)
	assertInvariants(t, 1)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (heldLocker) Release(context.Context, string) error                        { return nil }

func TestSweepSkipsWhenLeaseHeld(t *testing.T) {
	ledger := newLedger(t)
	createUser(t, 1)
	old := createAt(t, ledger, baseTime.Add(-60*day), 1, 3)

	expiry := newExpiry(ledger, heldLocker{})
	expiry.Metrics = MustNewMetrics(prometheus.NewRegistry())

	res, err := expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, res.LeaseHeld)
	assert.Equal(t, models.StatusPending, loadTransaction(t, old.ID).Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(expiry.Metrics.sweepSkipped))

	expiry.Locker = NoopLocker{}
	res, err = expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
}

func TestStartSchedulerRejectsBadSpec(t *testing.T) {
	expiry := newExpiry(newLedger(t), nil)
	_, err := expiry.StartScheduler("not a cron spec")
	assert.Error(t, err)

	c, err := expiry.StartScheduler("0 0 * * *")
	require.NoError(t, err)
	c.Stop()
}
