package model

type LibraryStatus string

const (
	LibraryStatusActive   LibraryStatus = "active"
	LibraryStatusDisabled LibraryStatus = "disabled"
)

// Library is a named container of documents sharing one embedding model and
// default chunking parameters. CollectionName and EmbeddingModel key the
// downstream vector index and are fixed at creation.
type Library struct {
	BaseModel
	Name                string        `gorm:"size:255;not null" json:"name"`
	CollectionName      string        `gorm:"size:255;not null;uniqueIndex" json:"collection_name"`
	DepartmentCode      string        `gorm:"size:64;index" json:"department_code"`
	Description         string        `gorm:"type:text" json:"description"`
	EmbeddingModel      string        `gorm:"size:100;not null" json:"embedding_model"`
	ChunkSizeDefault    int           `gorm:"default:512" json:"chunk_size_default"`
	ChunkOverlapDefault int           `gorm:"default:50" json:"chunk_overlap_default"`
	SimilarityThreshold float64       `gorm:"default:0.6" json:"similarity_threshold"`
	MaxChunks           int           `gorm:"default:10" json:"max_chunks"`
	Status              LibraryStatus `gorm:"size:20;default:'active';index" json:"status"`

	// Stats (computed)
	DocumentCount int64 `gorm:"-" json:"document_count,omitempty"`
}

func (Library) TableName() string {
	return "libraries"
}

func (l *Library) Disabled() bool {
	return l.Status == LibraryStatusDisabled
}
