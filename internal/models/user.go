package models

import (
	"time"
)

// User is the ledger's view of a site user: identity comes from the identity
// provider, the point columns are owned by the ledger.
type User struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Username        string    `gorm:"column:username;size:255" json:"username"`
	PendingPoints   int       `gorm:"column:pending_points;not null;default:0" json:"pendingPoints"`
	AvailablePoints int       `gorm:"column:available_points;not null;default:0" json:"availablePoints"`
	TotalPoints     int       `gorm:"column:total_points;not null;default:0" json:"totalPoints"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
