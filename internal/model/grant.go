package model

import (
	"github.com/google/uuid"
)

type TargetType string

const (
	TargetTypeUser       TargetType = "user"
	TargetTypeDepartment TargetType = "department"
)

type PrivilegeType string

const (
	PrivilegeTypeRead   PrivilegeType = "read"
	PrivilegeTypeWrite  PrivilegeType = "write"
	PrivilegeTypeManage PrivilegeType = "manage"
)

type GrantStatus string

const (
	GrantStatusActive   GrantStatus = "active"
	GrantStatusDisabled GrantStatus = "disabled"
)

// PermissionGrant authorizes a user or a whole department on one library at
// one privilege level. At most one active grant may exist per
// (target_type, target_id, library_id, privilege_type); the partial unique
// index enforces it against concurrent writers, disabled rows are exempt.
type PermissionGrant struct {
	BaseModel
	TargetType    TargetType    `gorm:"size:20;not null;index:idx_grant_target;uniqueIndex:uniq_active_grant,where:status = 'active'" json:"target_type"`
	TargetID      string        `gorm:"size:64;not null;index:idx_grant_target;uniqueIndex:uniq_active_grant" json:"target_id"`
	LibraryID     uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:uniq_active_grant" json:"library_id"`
	PrivilegeType PrivilegeType `gorm:"size:20;not null;uniqueIndex:uniq_active_grant" json:"privilege_type"`
	Status        GrantStatus   `gorm:"size:20;default:'active';index" json:"status"`
	Description   string        `gorm:"type:text" json:"description,omitempty"`
}

func (PermissionGrant) TableName() string {
	return "lib_permission_grants"
}

// Privilege is the resolved capability level, ordered read < write < manage.
type Privilege int

const (
	PrivilegeNone Privilege = iota
	PrivilegeRead
	PrivilegeWrite
	PrivilegeManage
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeRead:
		return "read"
	case PrivilegeWrite:
		return "write"
	case PrivilegeManage:
		return "manage"
	default:
		return "none"
	}
}

func (p Privilege) AtLeast(min Privilege) bool {
	return p >= min
}

// Ordinal maps a grant privilege type onto the resolved ordering. Unknown
// types resolve to none rather than failing, so a future tier added to the
// column does not break existing resolution.
func (t PrivilegeType) Ordinal() Privilege {
	switch t {
	case PrivilegeTypeRead:
		return PrivilegeRead
	case PrivilegeTypeWrite:
		return PrivilegeWrite
	case PrivilegeTypeManage:
		return PrivilegeManage
	default:
		return PrivilegeNone
	}
}

func (t PrivilegeType) Valid() bool {
	return t == PrivilegeTypeRead || t == PrivilegeTypeWrite || t == PrivilegeTypeManage
}
