package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/model"
)

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// ActiveGrants returns the active grants for one target on one library.
// Disabled grants are absent from resolution.
func (r *GrantRepository) ActiveGrants(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID) ([]model.PermissionGrant, error) {
	var grants []model.PermissionGrant
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND library_id = ? AND status = ?",
			targetType, targetID, libraryID, model.GrantStatusActive).
		Find(&grants).Error
	return grants, err
}

func (r *GrantRepository) ExistsActive(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID, privilege model.PrivilegeType) (bool, error) {
	var grant model.PermissionGrant
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND library_id = ? AND privilege_type = ? AND status = ?",
			targetType, targetID, libraryID, privilege, model.GrantStatusActive).
		First(&grant).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *GrantRepository) Create(ctx context.Context, grant *model.PermissionGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// UpsertBatch creates the grants that do not already exist as active rows
// with the same (target_type, target_id, library_id, privilege_type). The
// whole batch runs in one transaction; nothing is persisted on error. The
// unique active-grant index backstops the check-then-insert against
// concurrent associates; losing that race counts as already-exists.
func (r *GrantRepository) UpsertBatch(ctx context.Context, grants []model.PermissionGrant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range grants {
			g := &grants[i]
			var existing model.PermissionGrant
			err := tx.
				Where("target_type = ? AND target_id = ? AND library_id = ? AND privilege_type = ? AND status = ?",
					g.TargetType, g.TargetID, g.LibraryID, g.PrivilegeType, model.GrantStatusActive).
				First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(g).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return err
			}
		}
		return nil
	})
}

type GrantFilter struct {
	LibraryID  uuid.UUID
	TargetType model.TargetType
	TargetID   string
	Status     model.GrantStatus
}

func (r *GrantRepository) List(ctx context.Context, filter GrantFilter, limit, offset int) ([]model.PermissionGrant, int64, error) {
	var grants []model.PermissionGrant
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PermissionGrant{})

	if filter.LibraryID != uuid.Nil {
		query = query.Where("library_id = ?", filter.LibraryID)
	}
	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != "" {
		query = query.Where("target_id = ?", filter.TargetID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&grants).Error
	return grants, total, err
}

func (r *GrantRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.PermissionGrant, error) {
	var grants []model.PermissionGrant
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&grants).Error
	return grants, err
}

func (r *GrantRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.PermissionGrant{}).Error
}

func (r *GrantRepository) SetStatus(ctx context.Context, ids []uuid.UUID, status model.GrantStatus) error {
	return r.db.WithContext(ctx).Model(&model.PermissionGrant{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}

// DeleteByLibraryID removes every grant referencing the library, so no
// dangling grants survive a library delete.
func (r *GrantRepository) DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("library_id = ?", libraryID).Delete(&model.PermissionGrant{}).Error
}
