package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	FindByLibraryID(ctx context.Context, libraryID uuid.UUID, filter repository.DocumentFilter, limit, offset int) ([]model.Document, int64, error)
	DeleteWithChunks(ctx context.Context, id uuid.UUID) error
}

type FileHandleStore interface {
	FindByReference(ctx context.Context, reference string) (*model.UploadedFile, error)
}

// Ingestor is the coordinator surface the ledger drives: hand over a pending
// document, or abandon in-flight work for a deleted one.
type Ingestor interface {
	Enqueue(id uuid.UUID) error
	Cancel(id uuid.UUID)
}

type DocumentService struct {
	documents DocumentStore
	libraries LibraryGetter
	files     FileHandleStore
	perms     PermissionChecker
	ingestor  Ingestor
	logger    *slog.Logger
}

func NewDocumentService(documents DocumentStore, libraries LibraryGetter, files FileHandleStore, perms PermissionChecker, ingestor Ingestor) *DocumentService {
	return &DocumentService{
		documents: documents,
		libraries: libraries,
		files:     files,
		perms:     perms,
		ingestor:  ingestor,
		logger:    slog.Default().With("component", "document_service"),
	}
}

type SubmitDocumentInput struct {
	LibraryID     uuid.UUID `json:"library_id" binding:"required"`
	FileReference string    `json:"file_reference" binding:"required"`
	ChunkSize     int       `json:"chunk_size"`
	ChunkOverlap  int       `json:"chunk_overlap"`
}

// Submit validates and records a pending document, then hands it to the
// coordinator. It returns immediately; processing outcome is discovered by
// subsequent reads.
func (s *DocumentService) Submit(ctx context.Context, actor model.Identity, input SubmitDocumentInput) (*model.Document, error) {
	if err := s.perms.Require(ctx, actor, input.LibraryID, model.PrivilegeWrite); err != nil {
		return nil, err
	}

	lib, err := s.libraries.FindByID(ctx, input.LibraryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("library")
		}
		return nil, err
	}
	if lib.Disabled() {
		return nil, apperr.LibraryDisabled(lib.Name)
	}

	// Zero chunk params fall back to the library defaults.
	if input.ChunkSize == 0 && input.ChunkOverlap == 0 {
		input.ChunkSize = lib.ChunkSizeDefault
		input.ChunkOverlap = lib.ChunkOverlapDefault
	}
	if err := validateChunkParams(input.ChunkSize, input.ChunkOverlap); err != nil {
		return nil, err
	}

	file, err := s.files.FindByReference(ctx, input.FileReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validationf("unknown file_reference %q", input.FileReference)
		}
		return nil, err
	}

	doc := &model.Document{
		LibraryID:     input.LibraryID,
		FileReference: file.Reference,
		FileName:      file.OriginName,
		FileSize:      file.Size,
		ChunkSize:     input.ChunkSize,
		ChunkOverlap:  input.ChunkOverlap,
		State:         model.DocumentStatePending,
		SubmittedBy:   actor.ActorID,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	// A full pool leaves the document pending; the periodic requeue task
	// picks it up.
	if err := s.ingestor.Enqueue(doc.ID); err != nil {
		s.logger.Warn("enqueue failed, document stays pending", "document_id", doc.ID, "error", err)
	}

	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document")
		}
		return nil, err
	}
	if err := s.perms.Require(ctx, actor, doc.LibraryID, model.PrivilegeRead); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, actor model.Identity, libraryID uuid.UUID, filter repository.DocumentFilter, limit, offset int) ([]model.Document, int64, error) {
	if err := s.perms.Require(ctx, actor, libraryID, model.PrivilegeRead); err != nil {
		return nil, 0, err
	}
	return s.documents.FindByLibraryID(ctx, libraryID, filter, limit, offset)
}

// Delete removes documents and cascades their chunks. Idempotent: ids that no
// longer exist are skipped. In-flight work is abandoned via the coordinator,
// and the coordinator's final-write predicate keeps a late success from
// resurrecting a deleted record.
func (s *DocumentService) Delete(ctx context.Context, actor model.Identity, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.Validationf("ids must not be empty")
	}

	for _, id := range ids {
		doc, err := s.documents.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if err := s.perms.Require(ctx, actor, doc.LibraryID, model.PrivilegeWrite); err != nil {
			return err
		}

		s.ingestor.Cancel(id)
		if err := s.documents.DeleteWithChunks(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
