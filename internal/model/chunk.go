package model

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one ordered text segment produced from a completed document.
// Chunks are written all-or-nothing by the coordinator and never mutated
// afterwards; OrderIndex is contiguous per document starting at 0.
type Chunk struct {
	BaseModel
	DocumentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"document_id"`
	OrderIndex int             `gorm:"not null" json:"order_index"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	TokenCount int             `gorm:"default:0" json:"token_count"`
	PageNumber int             `gorm:"default:0" json:"page_number"`
	VectorRef  string          `gorm:"size:100" json:"vector_ref"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
}

func (Chunk) TableName() string {
	return "document_chunks"
}
