package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

type LibraryStore interface {
	Create(ctx context.Context, lib *model.Library) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Library, error)
	ExistsByCollectionName(ctx context.Context, name string) (bool, error)
	Update(ctx context.Context, lib *model.Library) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.LibraryStatus) error
	List(ctx context.Context, filter repository.LibraryFilter, limit, offset int) ([]model.Library, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LibraryGrantStore covers the grant cleanup a library delete cascades into,
// plus the manage grant handed to the creator.
type LibraryGrantStore interface {
	Create(ctx context.Context, grant *model.PermissionGrant) error
	DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error
}

type LibraryDocumentStore interface {
	CountByLibraryID(ctx context.Context, libraryID uuid.UUID) (int64, error)
	DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error
}

// PermissionChecker gates library operations by resolved privilege.
type PermissionChecker interface {
	Require(ctx context.Context, actor model.Identity, libraryID uuid.UUID, min model.Privilege) error
}

type LibraryService struct {
	libraries LibraryStore
	grants    LibraryGrantStore
	documents LibraryDocumentStore
	perms     PermissionChecker
}

func NewLibraryService(libraries LibraryStore, grants LibraryGrantStore, documents LibraryDocumentStore, perms PermissionChecker) *LibraryService {
	return &LibraryService{libraries: libraries, grants: grants, documents: documents, perms: perms}
}

type CreateLibraryInput struct {
	Name                string  `json:"name" binding:"required"`
	CollectionName      string  `json:"collection_name" binding:"required"`
	DepartmentCode      string  `json:"department_code"`
	Description         string  `json:"description"`
	EmbeddingModel      string  `json:"embedding_model" binding:"required"`
	ChunkSizeDefault    int     `json:"chunk_size_default"`
	ChunkOverlapDefault int     `json:"chunk_overlap_default"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxChunks           int     `json:"max_chunks"`
}

// Create registers a library and grants the creator manage on it. Fails with
// ConflictError when the collection name is already taken, case-sensitively.
func (s *LibraryService) Create(ctx context.Context, actor model.Identity, input CreateLibraryInput) (*model.Library, error) {
	if input.Name == "" || input.CollectionName == "" || input.EmbeddingModel == "" {
		return nil, apperr.Validationf("name, collection_name and embedding_model are required")
	}
	if input.ChunkSizeDefault == 0 {
		input.ChunkSizeDefault = 512
	}
	if input.MaxChunks == 0 {
		input.MaxChunks = 10
	}
	if input.SimilarityThreshold == 0 {
		input.SimilarityThreshold = 0.6
	}
	if err := validateChunkParams(input.ChunkSizeDefault, input.ChunkOverlapDefault); err != nil {
		return nil, err
	}

	taken, err := s.libraries.ExistsByCollectionName(ctx, input.CollectionName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflictf("collection_name %q already exists", input.CollectionName)
	}

	lib := &model.Library{
		Name:                input.Name,
		CollectionName:      input.CollectionName,
		DepartmentCode:      input.DepartmentCode,
		Description:         input.Description,
		EmbeddingModel:      input.EmbeddingModel,
		ChunkSizeDefault:    input.ChunkSizeDefault,
		ChunkOverlapDefault: input.ChunkOverlapDefault,
		SimilarityThreshold: input.SimilarityThreshold,
		MaxChunks:           input.MaxChunks,
		Status:              model.LibraryStatusActive,
	}
	if err := s.libraries.Create(ctx, lib); err != nil {
		return nil, err
	}

	// Creator manages their own library; superusers hold manage implicitly.
	if !actor.IsSuperuser {
		grant := &model.PermissionGrant{
			TargetType:    model.TargetTypeUser,
			TargetID:      actor.ActorID.String(),
			LibraryID:     lib.ID,
			PrivilegeType: model.PrivilegeTypeManage,
			Status:        model.GrantStatusActive,
		}
		if err := s.grants.Create(ctx, grant); err != nil {
			return nil, err
		}
	}

	return lib, nil
}

func (s *LibraryService) Get(ctx context.Context, actor model.Identity, id uuid.UUID, includeStats bool) (*model.Library, error) {
	if err := s.perms.Require(ctx, actor, id, model.PrivilegeRead); err != nil {
		return nil, err
	}
	lib, err := s.libraries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("library")
		}
		return nil, err
	}
	if includeStats {
		count, err := s.documents.CountByLibraryID(ctx, id)
		if err != nil {
			return nil, err
		}
		lib.DocumentCount = count
	}
	return lib, nil
}

type UpdateLibraryInput struct {
	Name                *string  `json:"name"`
	CollectionName      *string  `json:"collection_name"`
	DepartmentCode      *string  `json:"department_code"`
	Description         *string  `json:"description"`
	EmbeddingModel      *string  `json:"embedding_model"`
	ChunkSizeDefault    *int     `json:"chunk_size_default"`
	ChunkOverlapDefault *int     `json:"chunk_overlap_default"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	MaxChunks           *int     `json:"max_chunks"`
}

// Update applies mutable fields. CollectionName and EmbeddingModel key the
// downstream vector index and are rejected with ImmutableFieldError.
func (s *LibraryService) Update(ctx context.Context, actor model.Identity, id uuid.UUID, input UpdateLibraryInput) (*model.Library, error) {
	if err := s.perms.Require(ctx, actor, id, model.PrivilegeManage); err != nil {
		return nil, err
	}
	lib, err := s.libraries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("library")
		}
		return nil, err
	}

	if input.CollectionName != nil && *input.CollectionName != lib.CollectionName {
		return nil, apperr.ImmutableField("collection_name")
	}
	if input.EmbeddingModel != nil && *input.EmbeddingModel != lib.EmbeddingModel {
		return nil, apperr.ImmutableField("embedding_model")
	}

	if input.Name != nil {
		lib.Name = *input.Name
	}
	if input.DepartmentCode != nil {
		lib.DepartmentCode = *input.DepartmentCode
	}
	if input.Description != nil {
		lib.Description = *input.Description
	}
	if input.ChunkSizeDefault != nil {
		lib.ChunkSizeDefault = *input.ChunkSizeDefault
	}
	if input.ChunkOverlapDefault != nil {
		lib.ChunkOverlapDefault = *input.ChunkOverlapDefault
	}
	if input.SimilarityThreshold != nil {
		lib.SimilarityThreshold = *input.SimilarityThreshold
	}
	if input.MaxChunks != nil {
		lib.MaxChunks = *input.MaxChunks
	}
	if err := validateChunkParams(lib.ChunkSizeDefault, lib.ChunkOverlapDefault); err != nil {
		return nil, err
	}

	if err := s.libraries.Update(ctx, lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// SetStatus enables or disables the library. Disabling blocks new document
// submissions only; existing documents, chunks and grants are untouched.
func (s *LibraryService) SetStatus(ctx context.Context, actor model.Identity, id uuid.UUID, status model.LibraryStatus) error {
	if status != model.LibraryStatusActive && status != model.LibraryStatusDisabled {
		return apperr.Validationf("invalid status %q", status)
	}
	if err := s.perms.Require(ctx, actor, id, model.PrivilegeManage); err != nil {
		return err
	}
	if _, err := s.libraries.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("library")
		}
		return err
	}
	return s.libraries.UpdateStatus(ctx, id, status)
}

// List returns the libraries the actor can see. Superusers see everything;
// everyone else sees the libraries where they or their department hold an
// active grant.
func (s *LibraryService) List(ctx context.Context, actor model.Identity, filter repository.LibraryFilter, limit, offset int) ([]model.Library, int64, error) {
	if !actor.IsSuperuser {
		filter.VisibleToUser = actor.ActorID.String()
		filter.VisibleToDept = actor.DepartmentCode
	}
	return s.libraries.List(ctx, filter, limit, offset)
}

// Delete removes the library and cascades its documents, chunks and grants.
// Workers still processing one of the cascaded documents lose the
// state/owner predicate on their final write and record nothing.
func (s *LibraryService) Delete(ctx context.Context, actor model.Identity, id uuid.UUID) error {
	if err := s.perms.Require(ctx, actor, id, model.PrivilegeManage); err != nil {
		return err
	}
	if _, err := s.libraries.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := s.documents.DeleteByLibraryID(ctx, id); err != nil {
		return err
	}
	if err := s.grants.DeleteByLibraryID(ctx, id); err != nil {
		return err
	}
	return s.libraries.Delete(ctx, id)
}

func validateChunkParams(size, overlap int) error {
	if size < 100 || size > 10000 {
		return apperr.Validationf("chunk_size must be in [100, 10000], got %d", size)
	}
	if overlap < 0 || overlap > 500 {
		return apperr.Validationf("chunk_overlap must be in [0, 500], got %d", overlap)
	}
	if overlap >= size {
		return apperr.Validationf("chunk_overlap (%d) must be smaller than chunk_size (%d)", overlap, size)
	}
	return nil
}
