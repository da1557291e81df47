package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

// Drift compares a user's stored balances with the sums of their transactions.
type Drift struct {
	UserId            uint `json:"userId"`
	StoredPending     int  `json:"storedPending"`
	ComputedPending   int  `json:"computedPending"`
	StoredAvailable   int  `json:"storedAvailable"`
	ComputedAvailable int  `json:"computedAvailable"`
	Fixed             bool `json:"fixed"`
}

func (d Drift) InSync() bool {
	return d.StoredPending == d.ComputedPending && d.StoredAvailable == d.ComputedAvailable
}

// ReconcileService recomputes balances from the transaction history.
type ReconcileService struct {
	DB  *gorm.DB
	UoW *UnitOfWork
	Log logrus.FieldLogger
}

func NewReconcileService(db *gorm.DB, log logrus.FieldLogger) *ReconcileService {
	return &ReconcileService{DB: db, UoW: NewUnitOfWork(db), Log: log}
}

// ReconcileUser reports the user's drift, and overwrites the stored pending and
// available balances with the computed ones when fix is set. Total points is
// monotonic history and is left alone.
func (s *ReconcileService) ReconcileUser(ctx context.Context, userID uint, fix bool) (*Drift, error) {
	var drift Drift
	err := s.UoW.Do(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := forUpdate(tx).Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user %d not found", userID)
			}
			return err
		}

		pending, err := sumPoints(tx, userID, models.StatusPending)
		if err != nil {
			return err
		}
		available, err := sumPoints(tx, userID, models.StatusApproved)
		if err != nil {
			return err
		}

		drift = Drift{
			UserId:            userID,
			StoredPending:     user.PendingPoints,
			ComputedPending:   pending,
			StoredAvailable:   user.AvailablePoints,
			ComputedAvailable: available,
		}
		if drift.InSync() || !fix {
			return nil
		}
		err = tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"pending_points":   pending,
			"available_points": available,
		}).Error
		if err != nil {
			return err
		}
		drift.Fixed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !drift.InSync() {
		s.Log.WithFields(logrus.Fields{
			"user_id":            userID,
			"stored_pending":     drift.StoredPending,
			"computed_pending":   drift.ComputedPending,
			"stored_available":   drift.StoredAvailable,
			"computed_available": drift.ComputedAvailable,
			"fixed":              drift.Fixed,
		}).Warn("balance drift detected")
	}
	return &drift, nil
}

// ReconcileAll walks every user in id order and returns the ones that drifted.
func (s *ReconcileService) ReconcileAll(ctx context.Context, fix bool) ([]Drift, error) {
	const pageSize = 500
	drifts := []Drift{}
	var lastID uint
	for {
		var ids []uint
		err := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return drifts, apperror.Persistence(err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return drifts, err
			}
			d, err := s.ReconcileUser(ctx, id, fix)
			if err != nil {
				return drifts, err
			}
			if !d.InSync() {
				drifts = append(drifts, *d)
			}
		}
		if len(ids) < pageSize {
			return drifts, nil
		}
		lastID = ids[len(ids)-1]
	}
}

func sumPoints(tx *gorm.DB, userID uint, status models.TransactionStatus) (int, error) {
	var sum int64
	err := tx.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND status = ?", userID, string(status)).
		Scan(&sum).Error
	return int(sum), err
}
