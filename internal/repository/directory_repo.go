package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/model"
)

// DirectoryRepository reads the user/department rows grant association
// validates its targets against.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ? AND is_active = true", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *DirectoryRepository) UserExists(ctx context.Context, id string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	var count int64
	err = r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND is_active = true", uid).
		Count(&count).Error
	return count > 0, err
}

func (r *DirectoryRepository) DepartmentExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Department{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}
