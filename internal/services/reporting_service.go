package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"points-service/internal/models"
	"points-service/pkg/apperror"
	"points-service/pkg/common"
)

const (
	DefaultPendingLimit = 50
	MaxPendingLimit     = 500
)

type ReportingService struct {
	DB *gorm.DB
}

func NewReportingService(db *gorm.DB) *ReportingService {
	return &ReportingService{DB: db}
}

// TransactionFilter narrows a transaction listing. StartDate is inclusive,
// EndDate exclusive.
type TransactionFilter struct {
	UserId      *uint      `json:"userId"`
	ActionType  string     `json:"actionType" validate:"omitempty,actiontype"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending approved rejected expired"`
	ReferenceId string     `json:"referenceId" validate:"max=100"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Page        int        `json:"page" validate:"gte=0,lte=100000"`
	Limit       int        `json:"limit" validate:"gte=0,lte=100"`
}

// GetTransactions lists transactions newest first.
func (s *ReportingService) GetTransactions(ctx context.Context, f TransactionFilter) (common.PaginationResult, error) {
	if err := validateStruct(f); err != nil {
		return common.PaginationResult{}, err
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return common.PaginationResult{}, apperror.Validation("endDate must not be before startDate")
	}
	page, limit, offset := common.NormalizePage(f.Page, f.Limit)

	query := s.DB.WithContext(ctx).Model(&models.PointTransaction{})
	if f.UserId != nil {
		query = query.Where("user_id = ?", *f.UserId)
	}
	if f.ActionType != "" {
		query = query.Where("action_type = ?", f.ActionType)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ReferenceId != "" {
		query = query.Where("reference_id = ?", f.ReferenceId)
	}
	if f.StartDate != nil {
		query = query.Where("created_at >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		query = query.Where("created_at < ?", f.EndDate.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, apperror.Persistence(err)
	}

	transactions := []models.PointTransaction{}
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&transactions).Error
	if err != nil {
		return common.PaginationResult{}, apperror.Persistence(err)
	}
	return common.PaginateResponse(transactions, total, page, limit, "transactions fetched"), nil
}

// GetPendingTransactions returns the moderation queue, oldest first.
func (s *ReportingService) GetPendingTransactions(ctx context.Context, limit int) ([]models.PointTransaction, error) {
	if limit < 0 || limit > MaxPendingLimit {
		return nil, apperror.Validation("limit must be between 1 and %d", MaxPendingLimit)
	}
	if limit == 0 {
		limit = DefaultPendingLimit
	}
	transactions := []models.PointTransaction{}
	err := s.DB.WithContext(ctx).
		Where("status = ?", string(models.StatusPending)).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	return transactions, nil
}

type SummaryBreakdown struct {
	ActionType string `json:"actionType"`
	Status     string `json:"status"`
	Count      int64  `json:"count"`
	Points     int64  `json:"points"`
}

type UserSummary struct {
	UserId          uint               `json:"userId"`
	Username        string             `json:"username"`
	PendingPoints   int                `json:"pendingPoints"`
	AvailablePoints int                `json:"availablePoints"`
	TotalPoints     int                `json:"totalPoints"`
	Breakdown       []SummaryBreakdown `json:"breakdown"`
}

// GetUserSummary returns the user's balances with per action and status totals.
func (s *ReportingService) GetUserSummary(ctx context.Context, userID uint) (*UserSummary, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user %d not found", userID)
	}
	if err != nil {
		return nil, apperror.Persistence(err)
	}

	breakdown := []SummaryBreakdown{}
	err = s.DB.WithContext(ctx).Model(&models.PointTransaction{}).
		Select("action_type, status, COUNT(*) AS count, COALESCE(SUM(points), 0) AS points").
		Where("user_id = ?", userID).
		Group("action_type, status").
		Order("action_type ASC, status ASC").
		Scan(&breakdown).Error
	if err != nil {
		return nil, apperror.Persistence(err)
	}

	return &UserSummary{
		UserId:          user.ID,
		Username:        user.Username,
		PendingPoints:   user.PendingPoints,
		AvailablePoints: user.AvailablePoints,
		TotalPoints:     user.TotalPoints,
		Breakdown:       breakdown,
	}, nil
}
