package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type DocumentFilter struct {
	State    model.DocumentState
	FileName string
}

func (r *DocumentRepository) FindByLibraryID(ctx context.Context, libraryID uuid.UUID, filter DocumentFilter, limit, offset int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("library_id = ?", libraryID)

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.FileName != "" {
		query = query.Where("file_name LIKE ?", "%"+filter.FileName+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&docs).Error
	return docs, total, err
}

func (r *DocumentRepository) CountByLibraryID(ctx context.Context, libraryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("library_id = ?", libraryID).
		Count(&count).Error
	return count, err
}

// PendingIDs returns documents awaiting a worker, oldest first. Used to
// requeue on startup.
func (r *DocumentRepository) PendingIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("state = ?", model.DocumentStatePending).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ClaimPending moves a pending document to processing under a lease. The
// conditional update guarantees a single owner: a second claim for the same
// id matches zero rows and reports claimed=false.
func (r *DocumentRepository) ClaimPending(ctx context.Context, id uuid.UUID, owner string, leaseTTL time.Duration) (*model.Document, bool, error) {
	expires := time.Now().Add(leaseTTL)
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND state = ?", id, model.DocumentStatePending).
		Updates(map[string]interface{}{
			"state":            model.DocumentStateProcessing,
			"lease_owner":      owner,
			"lease_expires_at": expires,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	doc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// ExtendLease renews the heartbeat for a held lease. Losing the row (deleted
// document or reaped lease) is not an error; the worker finds out when it
// tries to record an outcome.
func (r *DocumentRepository) ExtendLease(ctx context.Context, id uuid.UUID, owner string, leaseTTL time.Duration) error {
	expires := time.Now().Add(leaseTTL)
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND state = ? AND lease_owner = ?", id, model.DocumentStateProcessing, owner).
		Update("lease_expires_at", expires).Error
}

// CompleteWithChunks records a successful run: the document flips to
// completed and its chunk set is written, all in one transaction. The state
// and owner predicate re-checks existence so a document deleted mid-flight is
// never resurrected; in that case nothing is written and apperr.KindNotFound
// is returned.
func (r *DocumentRepository) CompleteWithChunks(ctx context.Context, id uuid.UUID, owner string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return apperr.Ingestionf("refusing to complete document %s with zero chunks", id)
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Document{}).
			Where("id = ? AND state = ? AND lease_owner = ?", id, model.DocumentStateProcessing, owner).
			Updates(map[string]interface{}{
				"state":            model.DocumentStateCompleted,
				"chunk_count":      len(chunks),
				"error_message":    "",
				"processed_at":     now,
				"lease_owner":      "",
				"lease_expires_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("document")
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Create(&chunks).Error
	})
}

// MarkFailed records a terminal failure. Owner is matched when set so a
// worker that lost its lease cannot clobber a sweep outcome.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, owner string, message string) error {
	query := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND state = ?", id, model.DocumentStateProcessing)
	if owner != "" {
		query = query.Where("lease_owner = ?", owner)
	}
	res := query.Updates(map[string]interface{}{
		"state":            model.DocumentStateFailed,
		"error_message":    message,
		"chunk_count":      0,
		"lease_owner":      "",
		"lease_expires_at": nil,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("document")
	}
	return nil
}

// FailStalled reaps processing documents whose lease expired before `now`,
// marking them failed with the given timeout message. Returns how many rows
// were reaped.
func (r *DocumentRepository) FailStalled(ctx context.Context, now time.Time, message string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("state = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?",
			model.DocumentStateProcessing, now).
		Updates(map[string]interface{}{
			"state":            model.DocumentStateFailed,
			"error_message":    message,
			"chunk_count":      0,
			"lease_owner":      "",
			"lease_expires_at": nil,
		})
	return res.RowsAffected, res.Error
}

// DeleteWithChunks removes the document and cascades its chunk set in one
// transaction.
func (r *DocumentRepository) DeleteWithChunks(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Document{}).Error
	})
}

// DeleteByLibraryID cascades documents and their chunks on library delete.
func (r *DocumentRepository) DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&model.Document{}).Where("library_id = ?", libraryID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Where("document_id IN ?", ids).Delete(&model.Chunk{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("library_id = ?", libraryID).Delete(&model.Document{}).Error
	})
}
