package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"points-service/internal/models"
	"points-service/pkg/apperror"
)

type UserService struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func NewUserService(db *gorm.DB, log logrus.FieldLogger) *UserService {
	return &UserService{DB: db, Log: log}
}

type RegisterUserDTO struct {
	ID       uint   `json:"id" validate:"required"`
	Username string `json:"username" validate:"max=255"`
}

// RegisterUser makes the user known to the ledger with zeroed balances. It is
// idempotent: an existing row keeps its balances and only picks up a new username.
func (s *UserService) RegisterUser(ctx context.Context, data RegisterUserDTO) (*models.User, error) {
	data.Username = strings.TrimSpace(data.Username)
	if err := validateStruct(data); err != nil {
		return nil, err
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if data.Username != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
		}
	}

	user := models.User{ID: data.ID, Username: data.Username}
	if err := s.DB.WithContext(ctx).Clauses(onConflict).Create(&user).Error; err != nil {
		s.Log.WithError(err).WithField("user_id", data.ID).Error("register user failed")
		return nil, apperror.Persistence(err)
	}
	return s.GetUser(ctx, data.ID)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	return &user, nil
}
