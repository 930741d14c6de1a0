package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]model.Chunk, int64, error) {
	var chunks []model.Chunk
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("document_id = ?", documentID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("order_index ASC").Limit(limit).Offset(offset).Find(&chunks).Error
	return chunks, total, err
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}

// ChunkMatch is one similarity search hit over a library's chunks.
type ChunkMatch struct {
	model.Chunk
	Distance float64 `gorm:"column:distance" json:"-"`
}

// SearchByLibrary performs a cosine-distance search over the chunks of every
// completed document in the library. Chunks exist only for completed
// documents, but the join keeps a half-written migration from leaking rows.
func (r *ChunkRepository) SearchByLibrary(ctx context.Context, libraryID uuid.UUID, embedding interface{}, topK int) ([]ChunkMatch, error) {
	var matches []ChunkMatch
	err := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, document_chunks.embedding <=> ? AS distance", embedding).
		Joins("JOIN documents ON documents.id = document_chunks.document_id AND documents.deleted_at IS NULL").
		Where("documents.library_id = ? AND documents.state = ?", libraryID, model.DocumentStateCompleted).
		Where("document_chunks.deleted_at IS NULL").
		Order("distance ASC").
		Limit(topK).
		Find(&matches).Error
	return matches, err
}
