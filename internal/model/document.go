package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentState string

const (
	DocumentStatePending    DocumentState = "pending"
	DocumentStateProcessing DocumentState = "processing"
	DocumentStateCompleted  DocumentState = "completed"
	DocumentStateFailed     DocumentState = "failed"
)

// Terminal reports whether no further transition may leave the state.
// A failed document is retried by submitting a new one, never by mutating
// the failed record in place.
func (s DocumentState) Terminal() bool {
	return s == DocumentStateCompleted || s == DocumentStateFailed
}

// Document is one ingested file's processing record within a library. State
// transitions are owned exclusively by the ingestion coordinator; the lease
// columns track the single worker allowed to process the document at a time.
type Document struct {
	BaseModel
	LibraryID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"library_id"`
	FileReference string        `gorm:"size:512;not null" json:"file_reference"`
	FileName      string        `gorm:"size:255" json:"file_name"`
	FileSize      int64         `json:"file_size"`
	ChunkSize     int           `gorm:"not null" json:"chunk_size"`
	ChunkOverlap  int           `gorm:"not null" json:"chunk_overlap"`
	State         DocumentState `gorm:"size:20;default:'pending';index" json:"state"`
	ErrorMessage  string        `gorm:"type:text" json:"error_message,omitempty"`
	ChunkCount    int           `gorm:"default:0" json:"chunk_count"`
	SubmittedBy   uuid.UUID     `gorm:"type:uuid;index" json:"submitted_by"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`

	LeaseOwner     string     `gorm:"size:64" json:"-"`
	LeaseExpiresAt *time.Time `gorm:"index" json:"-"`

	Library *Library `gorm:"foreignKey:LibraryID" json:"library,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
