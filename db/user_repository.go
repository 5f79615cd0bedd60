package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// UserRepository is the read-only view of the user directory this service
// needs: identity lookups for projections and handle lookups for mention
// resolution.
type UserRepository interface {
	FindUserByID(id uuid.UUID) (*models.User, error)
	FindUsersByIDs(ids []uuid.UUID) ([]models.User, error)
	FindUsersByHandles(handles []string) ([]models.User, error)
}

type userRepo struct {
	DB *gorm.DB
}

// NewUserRepo creates a new instance of UserRepository
func NewUserRepo(db *GormDB) UserRepository {
	return &userRepo{db.DB}
}

func (r *userRepo) FindUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindUsersByIDs(ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch users by ids")
	}
	return users, nil
}

func (r *userRepo) FindUsersByHandles(handles []string) ([]models.User, error) {
	var users []models.User
	if len(handles) == 0 {
		return users, nil
	}
	if err := r.DB.Where("handle IN ?", handles).Or("first_name IN ?", handles).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch users by handles")
	}
	return users, nil
}
