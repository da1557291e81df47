package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

const (
	SourceAdmin   = "admin"
	SourceContent = "content"
	SourceSweep   = "sweep"

	SystemActor = "system"
)

// Actor is the authenticated caller behind a request.
type Actor struct {
	ID    string
	Admin bool
}

type CreateTransactionDTO struct {
	UserId      uint                     `json:"userId" validate:"required"`
	ActionType  string                   `json:"actionType" validate:"required,actiontype"`
	ReferenceId *string                  `json:"referenceId" validate:"omitempty,max=100"`
	Points      int                      `json:"points" validate:"min=-2147483648,max=2147483647"`
	Description string                   `json:"description" validate:"required,max=1000"`
	Status      models.TransactionStatus `json:"status" validate:"omitempty,oneof=pending approved"`
	Notes       *string                  `json:"notes"`
	Actor       Actor                    `json:"-" validate:"-"`
}

type TransitionDTO struct {
	ID         string  `json:"id" validate:"required"`
	Action     string  `json:"action" validate:"required,oneof=approve reject"`
	ApprovedBy string  `json:"approvedBy" validate:"required,max=100"`
	Notes      *string `json:"notes"`
}

// transition describes a move out of pending.
type transition struct {
	to         models.TransactionStatus
	approvedBy string
	notes      *string
	source     string
}

// LedgerService records point transactions and moves them through
// pending -> approved|rejected|expired, keeping the owner's balances in step.
type LedgerService struct {
	DB       *gorm.DB
	UoW      *UnitOfWork
	Balances *BalanceStore
	Metrics  *Metrics
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewLedgerService(db *gorm.DB, metrics *Metrics, log logrus.FieldLogger) *LedgerService {
	return &LedgerService{
		DB:       db,
		UoW:      NewUnitOfWork(db),
		Balances: NewBalanceStore(),
		Metrics:  metrics,
		Log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create records a new transaction. Pending transactions add to the user's
// pending balance, approved ones (admin only) go straight to available and total.
func (s *LedgerService) Create(ctx context.Context, data CreateTransactionDTO) (*models.PointTransaction, error) {
	data.ActionType = strings.TrimSpace(data.ActionType)
	data.Description = strings.TrimSpace(data.Description)
	if data.ReferenceId != nil && strings.TrimSpace(*data.ReferenceId) == "" {
		data.ReferenceId = nil
	}
	if err := validateStruct(data); err != nil {
		return nil, err
	}

	status := data.Status
	if status == "" {
		status = models.StatusPending
	}

	now := s.Now()
	trx := models.PointTransaction{
		ID:          uuid.NewString(),
		UserId:      data.UserId,
		ActionType:  data.ActionType,
		ReferenceId: data.ReferenceId,
		Points:      data.Points,
		Description: data.Description,
		Status:      status,
		Notes:       data.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if status == models.StatusApproved {
		if !data.Actor.Admin {
			return nil, apperror.Forbidden("only administrators may record approved transactions")
		}
		if data.Actor.ID == "" {
			return nil, apperror.Validation("approvedBy is required")
		}
		approvedBy := data.Actor.ID
		trx.ApprovedBy = &approvedBy
		trx.ApprovedAt = &now
	}

	// Balance first: it takes the user row lock before the insert needs it and
	// rejects unknown users.
	err := s.UoW.Do(ctx, func(tx *gorm.DB) error {
		if err := s.Balances.Apply(tx, trx.UserId, deltaFor(status, trx.Points, false)); err != nil {
			return err
		}
		return tx.Create(&trx).Error
	})
	if err != nil {
		s.logFailure(err, logrus.Fields{"user_id": data.UserId, "action_type": data.ActionType}, "create transaction")
		return nil, err
	}

	s.Metrics.transactionCreated(string(status))
	s.Log.WithFields(logrus.Fields{
		"transaction_id": trx.ID,
		"user_id":        trx.UserId,
		"status":         trx.Status,
		"points":         trx.Points,
	}).Info("transaction recorded")
	return &trx, nil
}

func (s *LedgerService) Approve(ctx context.Context, id, approvedBy string, notes *string) (*models.PointTransaction, error) {
	return s.applyTransition(ctx, id, transition{to: models.StatusApproved, approvedBy: approvedBy, notes: notes, source: SourceAdmin})
}

func (s *LedgerService) Reject(ctx context.Context, id, approvedBy string, notes *string) (*models.PointTransaction, error) {
	return s.applyTransition(ctx, id, transition{to: models.StatusRejected, approvedBy: approvedBy, notes: notes, source: SourceAdmin})
}

// Transition dispatches an approve or reject request.
func (s *LedgerService) Transition(ctx context.Context, data TransitionDTO) (*models.PointTransaction, error) {
	data.Action = strings.ToLower(strings.TrimSpace(data.Action))
	data.ApprovedBy = strings.TrimSpace(data.ApprovedBy)
	if err := validateStruct(data); err != nil {
		return nil, err
	}
	if data.Action == "approve" {
		return s.Approve(ctx, data.ID, data.ApprovedBy, data.Notes)
	}
	return s.Reject(ctx, data.ID, data.ApprovedBy, data.Notes)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.PointTransaction, error) {
	var trx models.PointTransaction
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("transaction %s not found", id)
	}
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	return &trx, nil
}

func (s *LedgerService) applyTransition(ctx context.Context, id string, t transition) (*models.PointTransaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.Validation("id is required")
	}
	if strings.TrimSpace(t.approvedBy) == "" {
		return nil, apperror.Validation("approvedBy is required")
	}

	var trx models.PointTransaction
	err := s.UoW.Do(ctx, func(tx *gorm.DB) error {
		var err error
		trx, err = s.transitionTx(tx, id, t)
		return err
	})
	if err != nil {
		s.logFailure(err, logrus.Fields{"transaction_id": id, "to": t.to, "source": t.source}, "transition")
		return nil, err
	}

	s.Metrics.transitionApplied(string(t.to), t.source)
	s.Log.WithFields(logrus.Fields{
		"transaction_id": trx.ID,
		"user_id":        trx.UserId,
		"status":         trx.Status,
		"source":         t.source,
	}).Info("transaction transitioned")
	return &trx, nil
}

// transitionTx moves one pending row to t.to inside tx. The status update is
// guarded on status = pending so a concurrent winner leaves zero rows affected.
func (s *LedgerService) transitionTx(tx *gorm.DB, id string, t transition) (models.PointTransaction, error) {
	var trx models.PointTransaction
	if err := forUpdate(tx).Where("id = ?", id).First(&trx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return trx, apperror.NotFound("transaction %s not found", id)
		}
		return trx, err
	}
	if trx.Status != models.StatusPending {
		return trx, apperror.InvalidState("transaction %s is already %s", id, trx.Status)
	}

	now := s.Now()
	updates := map[string]interface{}{
		"status":      string(t.to),
		"approved_by": t.approvedBy,
		"approved_at": now,
		"updated_at":  now,
	}
	if t.notes != nil {
		updates["notes"] = *t.notes
	}
	res := tx.Model(&models.PointTransaction{}).
		Where("id = ? AND status = ?", id, string(models.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return trx, res.Error
	}
	if res.RowsAffected != 1 {
		return trx, apperror.InvalidState("transaction %s is no longer pending", id)
	}

	if err := s.Balances.Apply(tx, trx.UserId, deltaFor(t.to, trx.Points, true)); err != nil {
		return trx, err
	}

	trx.Status = t.to
	trx.ApprovedBy = &t.approvedBy
	trx.ApprovedAt = &now
	trx.UpdatedAt = now
	if t.notes != nil {
		trx.Notes = t.notes
	}
	return trx, nil
}

func (s *LedgerService) logFailure(err error, fields logrus.Fields, op string) {
	entry := s.Log.WithFields(fields).WithError(err)
	if apperror.IsClientError(err) {
		entry.Warn(op + " refused")
		return
	}
	entry.Error(op + " failed")
}
