package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/model"
)

type LibraryRepository struct {
	db *gorm.DB
}

func NewLibraryRepository(db *gorm.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

func (r *LibraryRepository) Create(ctx context.Context, lib *model.Library) error {
	return r.db.WithContext(ctx).Create(lib).Error
}

func (r *LibraryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Library, error) {
	var lib model.Library
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lib).Error
	if err != nil {
		return nil, err
	}
	return &lib, nil
}

// FindByCollectionName matches case-sensitively across active and disabled
// libraries; the collection name keys the downstream vector index.
func (r *LibraryRepository) FindByCollectionName(ctx context.Context, name string) (*model.Library, error) {
	var lib model.Library
	err := r.db.WithContext(ctx).Where("collection_name = ?", name).First(&lib).Error
	if err != nil {
		return nil, err
	}
	return &lib, nil
}

func (r *LibraryRepository) ExistsByCollectionName(ctx context.Context, name string) (bool, error) {
	_, err := r.FindByCollectionName(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *LibraryRepository) Update(ctx context.Context, lib *model.Library) error {
	return r.db.WithContext(ctx).Save(lib).Error
}

func (r *LibraryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LibraryStatus) error {
	return r.db.WithContext(ctx).Model(&model.Library{}).
		Where("id = ?", id).
		Update("status", status).Error
}

type LibraryFilter struct {
	Name           string
	Status         model.LibraryStatus
	DepartmentCode string

	// Visibility scoping: when set, only libraries with an active grant for
	// this user or department are returned.
	VisibleToUser string
	VisibleToDept string
}

func (r *LibraryRepository) List(ctx context.Context, filter LibraryFilter, limit, offset int) ([]model.Library, int64, error) {
	var libs []model.Library
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Library{})

	if filter.Name != "" {
		query = query.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DepartmentCode != "" {
		query = query.Where("department_code = ?", filter.DepartmentCode)
	}
	if filter.VisibleToUser != "" || filter.VisibleToDept != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM lib_permission_grants g WHERE g.library_id = libraries.id AND g.status = ? AND g.deleted_at IS NULL"+
				" AND ((g.target_type = ? AND g.target_id = ?) OR (g.target_type = ? AND g.target_id = ?)))",
			model.GrantStatusActive,
			model.TargetTypeUser, filter.VisibleToUser,
			model.TargetTypeDepartment, filter.VisibleToDept)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&libs).Error
	return libs, total, err
}

func (r *LibraryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Library{}).Error
}
