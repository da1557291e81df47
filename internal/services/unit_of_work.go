package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"points-service/pkg/apperror"
)

// UnitOfWork runs a closure inside one storage transaction: commit when it
// returns nil, rollback on any error or panic. Errors outside the taxonomy
// surface as PersistenceError.
type UnitOfWork struct {
	DB *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{DB: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return apperror.Persistence(u.DB.WithContext(ctx).Transaction(fn))
}

// forUpdate adds a row lock to the next query. SQLite has no row locks, writers
// are serialized by the database lock instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
