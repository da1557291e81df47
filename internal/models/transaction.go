package models

import (
	"time"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
	StatusExpired  TransactionStatus = "expired"
)

// IsTerminal reports whether no transition may leave the status.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Known action categories. The set is open: any upper snake case token is accepted.
const (
	ActionLike           = "LIKE"
	ActionDislike        = "DISLIKE"
	ActionRating         = "RATING"
	ActionUploadExercise = "UPLOAD_EXERCISE"
	ActionUploadLibrary  = "UPLOAD_LIBRARY"
	ActionDemoCenter     = "DEMO_CENTER"
)

type PointTransaction struct {
	ID          string            `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	UserId      uint              `gorm:"column:user_id;not null;index:idx_ptx_user_status" json:"userId"`
	ActionType  string            `gorm:"column:action_type;size:50;not null" json:"actionType"`
	ReferenceId *string           `gorm:"column:reference_id;size:100;index:idx_ptx_reference_status" json:"referenceId"`
	Points      int               `gorm:"column:points;not null" json:"points"`
	Description string            `gorm:"column:description;type:text;not null" json:"description"`
	Status      TransactionStatus `gorm:"column:status;size:20;not null;default:pending;index:idx_ptx_user_status;index:idx_ptx_reference_status;index:idx_ptx_status_created" json:"status"`
	ApprovedBy  *string           `gorm:"column:approved_by;size:100" json:"approvedBy"`
	ApprovedAt  *time.Time        `gorm:"column:approved_at" json:"approvedAt"`
	Notes       *string           `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt   time.Time         `gorm:"column:created_at;index:idx_ptx_status_created" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}
