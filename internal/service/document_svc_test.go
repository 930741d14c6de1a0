package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

type fakeDocumentStore struct {
	docs map[uuid.UUID]*model.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[uuid.UUID]*model.Document)}
}

func (s *fakeDocumentStore) Create(ctx context.Context, doc *model.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeDocumentStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *fakeDocumentStore) FindByLibraryID(ctx context.Context, libraryID uuid.UUID, filter repository.DocumentFilter, limit, offset int) ([]model.Document, int64, error) {
	var matched []model.Document
	for _, doc := range s.docs {
		if doc.LibraryID != libraryID {
			continue
		}
		if filter.State != "" && doc.State != filter.State {
			continue
		}
		matched = append(matched, *doc)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *fakeDocumentStore) DeleteWithChunks(ctx context.Context, id uuid.UUID) error {
	delete(s.docs, id)
	return nil
}

type fakeFileStore struct {
	files map[string]*model.UploadedFile
}

func (s *fakeFileStore) FindByReference(ctx context.Context, reference string) (*model.UploadedFile, error) {
	f, ok := s.files[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

type fakeIngestor struct {
	enqueued  []uuid.UUID
	cancelled []uuid.UUID
	err       error
}

func (i *fakeIngestor) Enqueue(id uuid.UUID) error {
	if i.err != nil {
		return i.err
	}
	i.enqueued = append(i.enqueued, id)
	return nil
}

func (i *fakeIngestor) Cancel(id uuid.UUID) {
	i.cancelled = append(i.cancelled, id)
}

type docFixture struct {
	svc      *DocumentService
	docs     *fakeDocumentStore
	ingestor *fakeIngestor
	lib      *model.Library
	file     *model.UploadedFile
	actor    model.Identity
}

func newDocFixture(perms PermissionChecker) *docFixture {
	lib := &model.Library{
		Name:                "policies",
		CollectionName:      "kb_policies",
		EmbeddingModel:      "text-embedding-3-small",
		ChunkSizeDefault:    512,
		ChunkOverlapDefault: 50,
		Status:              model.LibraryStatusActive,
	}
	lib.ID = uuid.New()
	libs := &fakeLibraryGetter{libraries: map[uuid.UUID]*model.Library{lib.ID: lib}}

	file := &model.UploadedFile{
		Reference:  "files/abc/handbook.txt",
		OriginName: "handbook.txt",
		Size:       2048,
	}
	file.ID = uuid.New()
	files := &fakeFileStore{files: map[string]*model.UploadedFile{file.Reference: file}}

	docs := newFakeDocumentStore()
	ingestor := &fakeIngestor{}
	if perms == nil {
		perms = stubPerms{}
	}

	return &docFixture{
		svc:      NewDocumentService(docs, libs, files, perms, ingestor),
		docs:     docs,
		ingestor: ingestor,
		lib:      lib,
		file:     file,
		actor:    model.Identity{ActorID: uuid.New(), DepartmentCode: "ENG"},
	}
}

func TestSubmitDocumentDefaultsFromLibrary(t *testing.T) {
	f := newDocFixture(nil)

	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatePending, doc.State)
	assert.Equal(t, 512, doc.ChunkSize)
	assert.Equal(t, 50, doc.ChunkOverlap)
	assert.Equal(t, "handbook.txt", doc.FileName)
	assert.Equal(t, int64(2048), doc.FileSize)
	assert.Equal(t, f.actor.ActorID, doc.SubmittedBy)
	assert.Equal(t, []uuid.UUID{doc.ID}, f.ingestor.enqueued)
}

func TestSubmitDocumentExplicitParamsOverride(t *testing.T) {
	f := newDocFixture(nil)

	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
		ChunkSize:     1000,
		ChunkOverlap:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, doc.ChunkSize)
	assert.Equal(t, 100, doc.ChunkOverlap)
}

func TestSubmitDocumentOverlapBoundary(t *testing.T) {
	f := newDocFixture(nil)

	_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
		ChunkSize:     300,
		ChunkOverlap:  300,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
		ChunkSize:     300,
		ChunkOverlap:  299,
	})
	assert.NoError(t, err)
}

func TestSubmitDocumentRequiresWrite(t *testing.T) {
	denied := stubPerms{err: apperr.PermissionDenied("read only")}
	f := newDocFixture(denied)

	_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
	assert.Empty(t, f.docs.docs)
}

func TestSubmitDocumentDisabledLibrary(t *testing.T) {
	f := newDocFixture(nil)
	f.lib.Status = model.LibraryStatusDisabled

	_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	assert.True(t, apperr.Is(err, apperr.KindLibraryDisabled))
}

func TestSubmitDocumentUnknownLibrary(t *testing.T) {
	f := newDocFixture(nil)

	_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     uuid.New(),
		FileReference: f.file.Reference,
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitDocumentUnknownFileReference(t *testing.T) {
	f := newDocFixture(nil)

	_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: "files/nope/missing.txt",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, f.docs.docs)
}

func TestSubmitDocumentSurvivesEnqueueFailure(t *testing.T) {
	f := newDocFixture(nil)
	f.ingestor.err = assert.AnError

	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatePending, doc.State)
	assert.Contains(t, f.docs.docs, doc.ID)
}

func TestGetDocument(t *testing.T) {
	f := newDocFixture(nil)

	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), f.actor, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, err = f.svc.Get(context.Background(), f.actor, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListDocumentsFiltersByState(t *testing.T) {
	f := newDocFixture(nil)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
			LibraryID:     f.lib.ID,
			FileReference: f.file.Reference,
		})
		require.NoError(t, err)
	}
	// flip one to completed directly in the store
	for _, doc := range f.docs.docs {
		doc.State = model.DocumentStateCompleted
		break
	}

	all, total, err := f.svc.List(context.Background(), f.actor, f.lib.ID, repository.DocumentFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(3), total)

	pending, total, err := f.svc.List(context.Background(), f.actor, f.lib.ID,
		repository.DocumentFilter{State: model.DocumentStatePending}, 20, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, int64(2), total)
}

func TestDeleteDocumentsIdempotent(t *testing.T) {
	f := newDocFixture(nil)

	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	require.NoError(t, err)

	ids := []uuid.UUID{doc.ID, uuid.New()}
	require.NoError(t, f.svc.Delete(context.Background(), f.actor, ids))
	assert.Empty(t, f.docs.docs)
	assert.Equal(t, []uuid.UUID{doc.ID}, f.ingestor.cancelled)

	// a second delete of the same ids is a no-op
	require.NoError(t, f.svc.Delete(context.Background(), f.actor, ids))
}

func TestDeleteDocumentsRequiresWrite(t *testing.T) {
	f := newDocFixture(nil)
	doc, err := f.svc.Submit(context.Background(), f.actor, SubmitDocumentInput{
		LibraryID:     f.lib.ID,
		FileReference: f.file.Reference,
	})
	require.NoError(t, err)

	denied := newDocFixture(stubPerms{err: apperr.PermissionDenied("read only")})
	denied.docs.docs = f.docs.docs

	err = denied.svc.Delete(context.Background(), denied.actor, []uuid.UUID{doc.ID})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
	assert.Contains(t, f.docs.docs, doc.ID)
}
