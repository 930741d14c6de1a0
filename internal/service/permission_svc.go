package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

// GrantStore is the slice of the grant repository the permission service
// consumes.
type GrantStore interface {
	ActiveGrants(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID) ([]model.PermissionGrant, error)
	ExistsActive(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID, privilege model.PrivilegeType) (bool, error)
	Create(ctx context.Context, grant *model.PermissionGrant) error
	UpsertBatch(ctx context.Context, grants []model.PermissionGrant) error
	List(ctx context.Context, filter repository.GrantFilter, limit, offset int) ([]model.PermissionGrant, int64, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.PermissionGrant, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
	SetStatus(ctx context.Context, ids []uuid.UUID, status model.GrantStatus) error
}

// Directory validates grant targets against known users and departments.
type Directory interface {
	UserExists(ctx context.Context, id string) (bool, error)
	DepartmentExists(ctx context.Context, code string) (bool, error)
}

// LibraryGetter loads a library by id; grants must reference existing
// libraries.
type LibraryGetter interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Library, error)
}

// PrivilegeCache caches the max privilege per (target, library) pair. Grants
// change rarely relative to resolve volume; every grant mutation invalidates
// the affected pairs. Implementations are best-effort: a miss or a cache
// error falls through to the grant store.
type PrivilegeCache interface {
	Get(ctx context.Context, key string) (model.Privilege, bool)
	Set(ctx context.Context, key string, privilege model.Privilege)
	Invalidate(ctx context.Context, keys ...string)
}

// MaxPrivilege resolves a grant set to its highest privilege ordinal. Pure
// function over the union of grant sets: user-level grants never override
// department-level grants in either direction, a new tier slots in by
// extending the ordinal mapping only.
func MaxPrivilege(grants []model.PermissionGrant) model.Privilege {
	best := model.PrivilegeNone
	for _, g := range grants {
		if g.Status != model.GrantStatusActive {
			continue
		}
		if p := g.PrivilegeType.Ordinal(); p > best {
			best = p
		}
	}
	return best
}

type PermissionService struct {
	grants    GrantStore
	directory Directory
	libraries LibraryGetter
	cache     PrivilegeCache
}

func NewPermissionService(grants GrantStore, directory Directory, libraries LibraryGetter, cache PrivilegeCache) *PermissionService {
	if cache == nil {
		cache = noopCache{}
	}
	return &PermissionService{grants: grants, directory: directory, libraries: libraries, cache: cache}
}

func cacheKey(targetType model.TargetType, targetID string, libraryID uuid.UUID) string {
	return fmt.Sprintf("perm:%s:%s:%s", targetType, targetID, libraryID)
}

// Resolve computes the actor's effective privilege on the library: the max
// ordinal across the actor's user grants and their department's grants, or
// none. A superuser short-circuits to manage without consulting grants.
func (s *PermissionService) Resolve(ctx context.Context, actor model.Identity, libraryID uuid.UUID) (model.Privilege, error) {
	if actor.IsSuperuser {
		return model.PrivilegeManage, nil
	}

	best, err := s.targetPrivilege(ctx, model.TargetTypeUser, actor.ActorID.String(), libraryID)
	if err != nil {
		return model.PrivilegeNone, err
	}

	if actor.DepartmentCode != "" {
		deptPriv, err := s.targetPrivilege(ctx, model.TargetTypeDepartment, actor.DepartmentCode, libraryID)
		if err != nil {
			return model.PrivilegeNone, err
		}
		if deptPriv > best {
			best = deptPriv
		}
	}

	return best, nil
}

func (s *PermissionService) targetPrivilege(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID) (model.Privilege, error) {
	key := cacheKey(targetType, targetID, libraryID)
	if p, ok := s.cache.Get(ctx, key); ok {
		return p, nil
	}

	grants, err := s.grants.ActiveGrants(ctx, targetType, targetID, libraryID)
	if err != nil {
		return model.PrivilegeNone, err
	}

	p := MaxPrivilege(grants)
	s.cache.Set(ctx, key, p)
	return p, nil
}

// Require resolves and fails with PermissionDenied when the actor does not
// hold at least min.
func (s *PermissionService) Require(ctx context.Context, actor model.Identity, libraryID uuid.UUID, min model.Privilege) error {
	p, err := s.Resolve(ctx, actor, libraryID)
	if err != nil {
		return err
	}
	if !p.AtLeast(min) {
		return apperr.PermissionDenied(fmt.Sprintf("requires %s privilege on library %s, actor holds %s", min, libraryID, p))
	}
	return nil
}

// CreateGrant creates a single grant. Creating a second active grant with an
// identical (target_type, target_id, library_id, privilege_type) is a no-op:
// the existing grant is left alone and created=false is returned.
func (s *PermissionService) CreateGrant(ctx context.Context, grant *model.PermissionGrant) (bool, error) {
	if err := s.validateGrant(ctx, grant.TargetType, grant.TargetID, grant.LibraryID, grant.PrivilegeType); err != nil {
		return false, err
	}

	exists, err := s.grants.ExistsActive(ctx, grant.TargetType, grant.TargetID, grant.LibraryID, grant.PrivilegeType)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	grant.Status = model.GrantStatusActive
	if err := s.grants.Create(ctx, grant); err != nil {
		// A concurrent associate won the race on the unique active-grant
		// index; the identical grant exists, same no-op as above.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	s.cache.Invalidate(ctx, cacheKey(grant.TargetType, grant.TargetID, grant.LibraryID))
	return true, nil
}

// BatchAssociate upserts one grant per target id, atomically: if any target
// is unknown the whole batch fails and nothing is persisted.
func (s *PermissionService) BatchAssociate(ctx context.Context, targetType model.TargetType, targetIDs []string, libraryID uuid.UUID, privilege model.PrivilegeType) error {
	if len(targetIDs) == 0 {
		return apperr.Validationf("target_ids must not be empty")
	}
	if !privilege.Valid() {
		return apperr.Validationf("invalid privilege_type %q", privilege)
	}
	if targetType != model.TargetTypeUser && targetType != model.TargetTypeDepartment {
		return apperr.Validationf("invalid target_type %q", targetType)
	}
	if _, err := s.libraries.FindByID(ctx, libraryID); err != nil {
		return apperr.NotFound("library")
	}

	for _, id := range targetIDs {
		ok, err := s.targetExists(ctx, targetType, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.BatchAssociationf("unknown %s %q; no grants were created", targetType, id)
		}
	}

	grants := make([]model.PermissionGrant, 0, len(targetIDs))
	keys := make([]string, 0, len(targetIDs))
	for _, id := range targetIDs {
		grants = append(grants, model.PermissionGrant{
			TargetType:    targetType,
			TargetID:      id,
			LibraryID:     libraryID,
			PrivilegeType: privilege,
			Status:        model.GrantStatusActive,
		})
		keys = append(keys, cacheKey(targetType, id, libraryID))
	}

	if err := s.grants.UpsertBatch(ctx, grants); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, keys...)
	return nil
}

// ListGrants is scoped: superusers list freely, everyone else must name a
// library and hold manage on it.
func (s *PermissionService) ListGrants(ctx context.Context, actor model.Identity, filter repository.GrantFilter, limit, offset int) ([]model.PermissionGrant, int64, error) {
	if !actor.IsSuperuser {
		if filter.LibraryID == uuid.Nil {
			return nil, 0, apperr.Validationf("library_id is required")
		}
		if err := s.Require(ctx, actor, filter.LibraryID, model.PrivilegeManage); err != nil {
			return nil, 0, err
		}
	}
	return s.grants.List(ctx, filter, limit, offset)
}

func (s *PermissionService) ListGrantsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.PermissionGrant, error) {
	return s.grants.FindByIDs(ctx, ids)
}

// DeleteGrants removes grants by id and invalidates the affected cache pairs.
func (s *PermissionService) DeleteGrants(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.Validationf("ids must not be empty")
	}
	grants, err := s.grants.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.grants.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	s.invalidateFor(ctx, grants)
	return nil
}

// SetGrantStatus toggles grants between active and disabled. A disabled grant
// is absent from resolution.
func (s *PermissionService) SetGrantStatus(ctx context.Context, ids []uuid.UUID, status model.GrantStatus) error {
	if len(ids) == 0 {
		return apperr.Validationf("ids must not be empty")
	}
	if status != model.GrantStatusActive && status != model.GrantStatusDisabled {
		return apperr.Validationf("invalid status %q", status)
	}
	grants, err := s.grants.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.grants.SetStatus(ctx, ids, status); err != nil {
		return err
	}
	s.invalidateFor(ctx, grants)
	return nil
}

func (s *PermissionService) invalidateFor(ctx context.Context, grants []model.PermissionGrant) {
	keys := make([]string, 0, len(grants))
	for _, g := range grants {
		keys = append(keys, cacheKey(g.TargetType, g.TargetID, g.LibraryID))
	}
	if len(keys) > 0 {
		s.cache.Invalidate(ctx, keys...)
	}
}

func (s *PermissionService) validateGrant(ctx context.Context, targetType model.TargetType, targetID string, libraryID uuid.UUID, privilege model.PrivilegeType) error {
	if !privilege.Valid() {
		return apperr.Validationf("invalid privilege_type %q", privilege)
	}
	if targetType != model.TargetTypeUser && targetType != model.TargetTypeDepartment {
		return apperr.Validationf("invalid target_type %q", targetType)
	}
	if targetID == "" {
		return apperr.Validationf("target_id must not be empty")
	}
	if _, err := s.libraries.FindByID(ctx, libraryID); err != nil {
		return apperr.NotFound("library")
	}
	ok, err := s.targetExists(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validationf("unknown %s %q", targetType, targetID)
	}
	return nil
}

func (s *PermissionService) targetExists(ctx context.Context, targetType model.TargetType, targetID string) (bool, error) {
	if targetType == model.TargetTypeUser {
		return s.directory.UserExists(ctx, targetID)
	}
	return s.directory.DepartmentExists(ctx, targetID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (model.Privilege, bool) { return model.PrivilegeNone, false }
func (noopCache) Set(context.Context, string, model.Privilege)        {}
func (noopCache) Invalidate(context.Context, ...string)               {}
