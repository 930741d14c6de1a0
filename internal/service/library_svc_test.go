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

type fakeLibraryStore struct {
	libraries  map[uuid.UUID]*model.Library
	lastFilter repository.LibraryFilter
}

func newFakeLibraryStore(libs ...*model.Library) *fakeLibraryStore {
	s := &fakeLibraryStore{libraries: make(map[uuid.UUID]*model.Library)}
	for _, lib := range libs {
		s.libraries[lib.ID] = lib
	}
	return s
}

func (s *fakeLibraryStore) Create(ctx context.Context, lib *model.Library) error {
	if lib.ID == uuid.Nil {
		lib.ID = uuid.New()
	}
	cp := *lib
	s.libraries[lib.ID] = &cp
	return nil
}

func (s *fakeLibraryStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Library, error) {
	lib, ok := s.libraries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *lib
	return &cp, nil
}

func (s *fakeLibraryStore) ExistsByCollectionName(ctx context.Context, name string) (bool, error) {
	for _, lib := range s.libraries {
		if lib.CollectionName == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeLibraryStore) Update(ctx context.Context, lib *model.Library) error {
	if _, ok := s.libraries[lib.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *lib
	s.libraries[lib.ID] = &cp
	return nil
}

func (s *fakeLibraryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LibraryStatus) error {
	lib, ok := s.libraries[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	lib.Status = status
	return nil
}

func (s *fakeLibraryStore) List(ctx context.Context, filter repository.LibraryFilter, limit, offset int) ([]model.Library, int64, error) {
	s.lastFilter = filter
	var matched []model.Library
	for _, lib := range s.libraries {
		if filter.Status != "" && lib.Status != filter.Status {
			continue
		}
		if filter.DepartmentCode != "" && lib.DepartmentCode != filter.DepartmentCode {
			continue
		}
		matched = append(matched, *lib)
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

func (s *fakeLibraryStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.libraries, id)
	return nil
}

func (s *fakeGrantStore) DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error {
	kept := s.grants[:0]
	for _, g := range s.grants {
		if g.LibraryID != libraryID {
			kept = append(kept, g)
		}
	}
	s.grants = kept
	return nil
}

type fakeLibDocStore struct {
	counts  map[uuid.UUID]int64
	deleted []uuid.UUID
}

func (s *fakeLibDocStore) CountByLibraryID(ctx context.Context, libraryID uuid.UUID) (int64, error) {
	return s.counts[libraryID], nil
}

func (s *fakeLibDocStore) DeleteByLibraryID(ctx context.Context, libraryID uuid.UUID) error {
	s.deleted = append(s.deleted, libraryID)
	delete(s.counts, libraryID)
	return nil
}

// stubPerms grants everything unless err is set.
type stubPerms struct {
	err error
}

func (p stubPerms) Require(ctx context.Context, actor model.Identity, libraryID uuid.UUID, min model.Privilege) error {
	return p.err
}

func libFixture(perms PermissionChecker) (*LibraryService, *fakeLibraryStore, *fakeGrantStore, *fakeLibDocStore) {
	libs := newFakeLibraryStore()
	grants := &fakeGrantStore{}
	docs := &fakeLibDocStore{counts: make(map[uuid.UUID]int64)}
	if perms == nil {
		perms = stubPerms{}
	}
	return NewLibraryService(libs, grants, docs, perms), libs, grants, docs
}

func TestCreateLibraryDefaultsAndCreatorGrant(t *testing.T) {
	svc, _, grants, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	assert.Equal(t, 512, lib.ChunkSizeDefault)
	assert.Equal(t, 0, lib.ChunkOverlapDefault)
	assert.Equal(t, 0.6, lib.SimilarityThreshold)
	assert.Equal(t, 10, lib.MaxChunks)
	assert.Equal(t, model.LibraryStatusActive, lib.Status)

	require.Len(t, grants.grants, 1)
	g := grants.grants[0]
	assert.Equal(t, model.TargetTypeUser, g.TargetType)
	assert.Equal(t, actor.ActorID.String(), g.TargetID)
	assert.Equal(t, lib.ID, g.LibraryID)
	assert.Equal(t, model.PrivilegeTypeManage, g.PrivilegeType)
}

func TestCreateLibrarySuperuserGetsNoGrant(t *testing.T) {
	svc, _, grants, _ := libFixture(nil)
	super := model.Identity{ActorID: uuid.New(), IsSuperuser: true}

	_, err := svc.Create(context.Background(), super, CreateLibraryInput{
		Name:           "audit",
		CollectionName: "kb_audit",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	assert.Empty(t, grants.grants)
}

func TestCreateLibraryDuplicateCollectionName(t *testing.T) {
	svc, _, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}
	input := CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	}

	_, err := svc.Create(context.Background(), actor, input)
	require.NoError(t, err)

	input.Name = "policies v2"
	_, err = svc.Create(context.Background(), actor, input)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateLibraryValidatesChunkParams(t *testing.T) {
	svc, _, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"size below minimum", 50, 0},
		{"size above maximum", 20000, 0},
		{"overlap above maximum", 1000, 501},
		{"overlap equals size", 300, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), actor, CreateLibraryInput{
				Name:                "x",
				CollectionName:      "kb_" + tc.name,
				EmbeddingModel:      "m",
				ChunkSizeDefault:    tc.size,
				ChunkOverlapDefault: tc.overlap,
			})
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestUpdateLibraryImmutableFields(t *testing.T) {
	svc, _, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	other := "kb_other"
	_, err = svc.Update(context.Background(), actor, lib.ID, UpdateLibraryInput{CollectionName: &other})
	assert.True(t, apperr.Is(err, apperr.KindImmutableField))

	otherModel := "text-embedding-3-large"
	_, err = svc.Update(context.Background(), actor, lib.ID, UpdateLibraryInput{EmbeddingModel: &otherModel})
	assert.True(t, apperr.Is(err, apperr.KindImmutableField))

	// echoing the current value back is not a change
	same := lib.CollectionName
	_, err = svc.Update(context.Background(), actor, lib.ID, UpdateLibraryInput{CollectionName: &same})
	assert.NoError(t, err)
}

func TestUpdateLibraryPartialFields(t *testing.T) {
	svc, libs, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	name := "renamed"
	size := 1024
	updated, err := svc.Update(context.Background(), actor, lib.ID, UpdateLibraryInput{
		Name:             &name,
		ChunkSizeDefault: &size,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 1024, updated.ChunkSizeDefault)
	assert.Equal(t, lib.EmbeddingModel, updated.EmbeddingModel)

	stored, err := libs.FindByID(context.Background(), lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
}

func TestUpdateLibraryRevalidatesChunkParams(t *testing.T) {
	svc, _, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	// overlap raised to the current size must be rejected
	overlap := lib.ChunkSizeDefault
	_, err = svc.Update(context.Background(), actor, lib.ID, UpdateLibraryInput{ChunkOverlapDefault: &overlap})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetLibraryWithStats(t *testing.T) {
	svc, _, _, docs := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	docs.counts[lib.ID] = 7

	got, err := svc.Get(context.Background(), actor, lib.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.DocumentCount)

	got, err = svc.Get(context.Background(), actor, lib.ID, false)
	require.NoError(t, err)
	assert.Zero(t, got.DocumentCount)
}

func TestGetLibraryDeniedWithoutRead(t *testing.T) {
	denied := stubPerms{err: apperr.PermissionDenied("no access")}
	svc, libs, _, _ := libFixture(denied)

	lib := &model.Library{Name: "x", CollectionName: "kb_x"}
	lib.ID = uuid.New()
	require.NoError(t, libs.Create(context.Background(), lib))

	_, err := svc.Get(context.Background(), model.Identity{ActorID: uuid.New()}, lib.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
}

func TestSetStatusTogglesLibrary(t *testing.T) {
	svc, libs, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(context.Background(), actor, lib.ID, model.LibraryStatusDisabled))
	stored, _ := libs.FindByID(context.Background(), lib.ID)
	assert.True(t, stored.Disabled())

	require.NoError(t, svc.SetStatus(context.Background(), actor, lib.ID, model.LibraryStatusActive))
	stored, _ = libs.FindByID(context.Background(), lib.ID)
	assert.False(t, stored.Disabled())

	err = svc.SetStatus(context.Background(), actor, lib.ID, "archived")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeleteLibraryCascades(t *testing.T) {
	svc, libs, grants, docs := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New()}

	lib, err := svc.Create(context.Background(), actor, CreateLibraryInput{
		Name:           "policies",
		CollectionName: "kb_policies",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	docs.counts[lib.ID] = 3

	require.NoError(t, svc.Delete(context.Background(), actor, lib.ID))

	_, err = libs.FindByID(context.Background(), lib.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, grants.grants)
	assert.Contains(t, docs.deleted, lib.ID)
}

func TestListLibrariesScopedToActorGrants(t *testing.T) {
	svc, libs, _, _ := libFixture(nil)
	actor := model.Identity{ActorID: uuid.New(), DepartmentCode: "ENG"}

	_, _, err := svc.List(context.Background(), actor, repository.LibraryFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, actor.ActorID.String(), libs.lastFilter.VisibleToUser)
	assert.Equal(t, "ENG", libs.lastFilter.VisibleToDept)
}

func TestListLibrariesSuperuserUnscoped(t *testing.T) {
	svc, libs, _, _ := libFixture(nil)
	super := model.Identity{ActorID: uuid.New(), DepartmentCode: "ENG", IsSuperuser: true}

	_, _, err := svc.List(context.Background(), super, repository.LibraryFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, libs.lastFilter.VisibleToUser)
	assert.Empty(t, libs.lastFilter.VisibleToDept)
}

func TestDeleteLibraryMissingIsNoError(t *testing.T) {
	svc, _, _, _ := libFixture(nil)
	err := svc.Delete(context.Background(), model.Identity{ActorID: uuid.New()}, uuid.New())
	assert.NoError(t, err)
}
