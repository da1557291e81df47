package services

import (
	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

// BalanceDelta is a signed change to a user's running totals.
type BalanceDelta struct {
	Pending   int
	Available int
	Total     int
}

func (d BalanceDelta) IsZero() bool {
	return d.Pending == 0 && d.Available == 0 && d.Total == 0
}

// deltaFor returns the balance movement of a transaction entering status.
func deltaFor(status models.TransactionStatus, points int, fromPending bool) BalanceDelta {
	var d BalanceDelta
	if fromPending {
		d.Pending = -points
	}
	switch status {
	case models.StatusPending:
		d.Pending += points
	case models.StatusApproved:
		d.Available = points
		d.Total = points
	}
	return d
}

// BalanceStore mutates the per-user running totals. It only works on the tx it
// is handed so every change shares the caller's atomic unit.
type BalanceStore struct{}

func NewBalanceStore() *BalanceStore {
	return &BalanceStore{}
}

// Apply adds delta to the user's columns with in-place arithmetic. A missing
// user is a NotFoundError.
func (b *BalanceStore) Apply(tx *gorm.DB, userID uint, delta BalanceDelta) error {
	if delta.IsZero() {
		return b.mustExist(tx, userID)
	}

	updates := map[string]interface{}{}
	if delta.Pending != 0 {
		updates["pending_points"] = gorm.Expr("pending_points + ?", delta.Pending)
	}
	if delta.Available != 0 {
		updates["available_points"] = gorm.Expr("available_points + ?", delta.Available)
	}
	if delta.Total != 0 {
		updates["total_points"] = gorm.Expr("total_points + ?", delta.Total)
	}

	res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("user %d not found", userID)
	}
	return nil
}

func (b *BalanceStore) mustExist(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperror.NotFound("user %d not found", userID)
	}
	return nil
}
